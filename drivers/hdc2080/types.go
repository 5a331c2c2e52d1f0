package hdc2080

// SlaveAddr selects the 7-bit bus address of the device. The zero value is
// the factory default (ADDR pin low). AlternativeAddr encodes an explicit
// ADDR pin level.
type SlaveAddr struct {
	alternative bool
	pinHigh     bool
}

// AlternativeAddr returns the address selection for a strapped ADDR pin.
// pinHigh=false resolves to the same physical address as the default.
func AlternativeAddr(pinHigh bool) SlaveAddr {
	return SlaveAddr{alternative: true, pinHigh: pinHigh}
}

// Addr resolves the selection to the physical 7-bit bus address. Only bit 0
// ever differs from BaseAddress.
func (a SlaveAddr) Addr() uint8 {
	if a.alternative && a.pinHigh {
		return BaseAddress | 1
	}
	return BaseAddress
}

// MeasurementMode selects which quantities a measurement cycle produces.
// The zero value (temperature and humidity) is the device default.
type MeasurementMode uint8

const (
	TemperatureAndHumidity MeasurementMode = iota
	TemperatureOnly
)

// AutoMeasurementMode selects the device-side periodic sampling rate.
// The values are the exact CONFIG register encodings (AMM rate field plus
// DRDY enable) and must be written verbatim; they are a wire contract.
// There is no implicit default: APIs taking an AutoMeasurementMode always
// require the caller to state one explicitly.
type AutoMeasurementMode uint8

const (
	AutoDisabled    AutoMeasurementMode = 0x00
	AutoTwoMinutes  AutoMeasurementMode = 0x14
	AutoOneMinute   AutoMeasurementMode = 0x24
	AutoTenSeconds  AutoMeasurementMode = 0x34
	AutoFiveSeconds AutoMeasurementMode = 0x44
	AutoOneHertz    AutoMeasurementMode = 0x54
	AutoTwoHertz    AutoMeasurementMode = 0x64
	AutoFiveHertz   AutoMeasurementMode = 0x74
)

// Status is a snapshot of the STATUS register. All flag combinations are
// well-formed; equality is structural.
type Status struct {
	// DataReady reports a completed conversion awaiting readout.
	DataReady bool
	// HighTempExceeded reports the temperature high threshold was crossed.
	HighTempExceeded bool
	// LowTempExceeded reports the temperature low threshold was crossed.
	LowTempExceeded bool
	// HighHumidityExceeded reports the humidity high threshold was crossed.
	HighHumidityExceeded bool
	// LowHumidityExceeded reports the humidity low threshold was crossed.
	LowHumidityExceeded bool
}

// DecodeStatus extracts the named condition flags from a raw STATUS byte.
func DecodeStatus(b byte) Status {
	return Status{
		DataReady:            b&statusDataReady != 0,
		HighTempExceeded:     b&statusTempHigh != 0,
		LowTempExceeded:      b&statusTempLow != 0,
		HighHumidityExceeded: b&statusHumHigh != 0,
		LowHumidityExceeded:  b&statusHumLow != 0,
	}
}

// RH is an optional relative-humidity value. The zero value is "absent";
// a reading of 0 %RH stays distinguishable from no reading at all.
type RH struct {
	value float32
	valid bool
}

// SomeRH wraps a present relative-humidity value (%RH).
func SomeRH(v float32) RH { return RH{value: v, valid: true} }

// Value returns the reading and whether it is present.
func (h RH) Value() (float32, bool) { return h.value, h.valid }

// Measurement is one decoded measurement cycle. Humidity is present iff the
// cycle ran with TemperatureAndHumidity content mode. Values do not mutate
// after construction and carry no reference back to the bus or device.
type Measurement struct {
	// Temperature in °C.
	Temperature float32
	// Humidity in %RH; absent under TemperatureOnly.
	Humidity RH
	// Status snapshot taken with this measurement.
	Status Status
}

// DeciCelsius returns the temperature in tenths of °C for fixed-point
// consumers. The device range fits int16 comfortably.
func (m Measurement) DeciCelsius() int16 {
	return int16(m.Temperature*10 + sign(m.Temperature)*0.5)
}

// CentiRelHumidity returns hundredths of %RH and whether humidity is present.
func (m Measurement) CentiRelHumidity() (uint16, bool) {
	v, ok := m.Humidity.Value()
	if !ok {
		return 0, false
	}
	return uint16(v*100 + 0.5), true
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}
