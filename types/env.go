package types

// ------------------------
// Temperature & humidity
// ------------------------

type TemperatureInfo struct {
	Sensor string `json:"sensor"` // "hdc2080", ...
	Addr   uint16 `json:"addr"`   // I2C address
	Bus    string `json:"bus"`    // "i2c0", ...
}

type HumidityInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

type EnvStatusInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
}

type HumidityValue struct {
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100 uint16 `json:"rh_x100"`
}

// EnvStatusValue mirrors the sensor's alarm/status flags for one reading.
type EnvStatusValue struct {
	DataReady bool `json:"data_ready"`
	TempHigh  bool `json:"temp_high"`
	TempLow   bool `json:"temp_low"`
	HumHigh   bool `json:"hum_high"`
	HumLow    bool `json:"hum_low"`
}
