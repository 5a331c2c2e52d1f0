// services/hal/adaptor_hdc2080.go
package hal

import (
	"context"
	"time"

	"envnode-go/drivers/hdc2080"
	"envnode-go/errcode"
	"envnode-go/types"
	"envnode-go/x/mathx"

	"tinygo.org/x/drivers"
)

// HDC2080Params is the device-specific config shape.
type HDC2080Params struct {
	// AltAddr selects the alternative address resolution; AddrPin is the
	// strapped ADDR pin level (only meaningful with AltAddr).
	AltAddr bool `json:"alt_addr,omitempty"`
	AddrPin bool `json:"addr_pin,omitempty"`
	// Mode: "both" (default) or "temp_only".
	Mode string `json:"mode,omitempty"`
	// IntPin optionally names the pin wired to the sensor's DRDY/INT line.
	IntPin *int `json:"int_pin,omitempty"`
	// PeriodMS overrides the default sampling period.
	PeriodMS int `json:"period_ms,omitempty"`
}

type hdc2080Adaptor struct {
	id    string
	busID string
	dev   hdc2080.Device
	mode  hdc2080.MeasurementMode
}

// NewHDC2080Adaptor builds an adaptor over the register-level driver.
// The I2C bus must already be configured.
func NewHDC2080Adaptor(id, busID string, bus drivers.I2C, p HDC2080Params) (Adaptor, error) {
	mode, ok := parseContentMode(p.Mode)
	if !ok {
		return nil, errcode.InvalidParams
	}

	var sel hdc2080.SlaveAddr
	if p.AltAddr {
		sel = hdc2080.AlternativeAddr(p.AddrPin)
	}

	a := &hdc2080Adaptor{
		id:    id,
		busID: busID,
		dev:   hdc2080.New(bus, sel),
		mode:  mode,
	}
	if err := a.dev.Configure(hdc2080.Config{Mode: mode}); err != nil {
		return nil, err
	}
	if p.IntPin != nil {
		// Drive the DRDY/INT line active-high, level mode.
		if err := a.dev.ConfigureInterruptPin(true, false); err != nil {
			return nil, err
		}
		if err := a.dev.SetInterruptEnable(hdc2080.IntDataReady); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *hdc2080Adaptor) ID() string { return a.id }

func (a *hdc2080Adaptor) Capabilities() []CapInfo {
	detail := func(d any) types.Info {
		return types.Info{SchemaVersion: 1, Driver: "hdc2080", Detail: d}
	}
	caps := []CapInfo{
		{Kind: string(types.KindTemperature), Info: detail(types.TemperatureInfo{
			Sensor: "hdc2080", Addr: a.dev.Address, Bus: a.busID,
		})},
		{Kind: string(types.KindEnvStatus), Info: detail(types.EnvStatusInfo{
			Sensor: "hdc2080", Addr: a.dev.Address, Bus: a.busID,
		})},
	}
	if a.mode == hdc2080.TemperatureAndHumidity {
		caps = append(caps, CapInfo{Kind: string(types.KindHumidity), Info: detail(types.HumidityInfo{
			Sensor: "hdc2080", Addr: a.dev.Address, Bus: a.busID,
		})})
	}
	return caps
}

func (a *hdc2080Adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if err := a.dev.Trigger(); err != nil {
		return 0, err
	}
	return a.dev.TriggerHint(), nil
}

func (a *hdc2080Adaptor) Collect(ctx context.Context) (Sample, error) {
	var m hdc2080.Measurement
	if err := a.dev.Collect(&m); err != nil {
		if err == hdc2080.ErrNotReady {
			return nil, ErrNotReady
		}
		return nil, err
	}

	ts := time.Now().UnixMilli()
	deci := mathx.Clamp(int32(m.DeciCelsius()), -400, 1250)
	s := Sample{
		{Kind: string(types.KindTemperature), Payload: types.TemperatureValue{DeciC: int16(deci)}, TsMs: ts},
		{Kind: string(types.KindEnvStatus), Payload: types.EnvStatusValue{
			DataReady: m.Status.DataReady,
			TempHigh:  m.Status.HighTempExceeded,
			TempLow:   m.Status.LowTempExceeded,
			HumHigh:   m.Status.HighHumidityExceeded,
			HumLow:    m.Status.LowHumidityExceeded,
		}, TsMs: ts},
	}
	if rh, ok := m.CentiRelHumidity(); ok {
		rhc := mathx.Clamp(int32(rh), 0, 10000)
		s = append(s, Reading{Kind: string(types.KindHumidity), Payload: types.HumidityValue{RHx100: uint16(rhc)}, TsMs: ts})
	}
	return s, nil
}

func (a *hdc2080Adaptor) Control(kind, method string, payload any) (any, error) {
	switch method {
	case "set_auto_mode":
		var p struct {
			Mode string `json:"mode"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.InvalidPayload
		}
		mode, ok := parseAutoMode(p.Mode)
		if !ok {
			return nil, errcode.InvalidPayload
		}
		return nil, a.dev.SetAutoMeasurementMode(mode)

	case "set_mode":
		var p struct {
			Mode string `json:"mode"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.InvalidPayload
		}
		mode, ok := parseContentMode(p.Mode)
		if !ok {
			return nil, errcode.InvalidPayload
		}
		// The capability set stays as advertised at instantiation;
		// readings for an unadvertised kind are dropped upstream.
		if err := a.dev.Configure(hdc2080.Config{Mode: mode}); err != nil {
			return nil, err
		}
		a.mode = mode
		return nil, nil

	case "heater":
		var p struct {
			On bool `json:"on"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.InvalidPayload
		}
		return nil, a.dev.EnableHeater(p.On)

	case "set_thresholds":
		var p struct {
			TempLow  *float32 `json:"temp_low"`
			TempHigh *float32 `json:"temp_high"`
			HumLow   *float32 `json:"hum_low"`
			HumHigh  *float32 `json:"hum_high"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.InvalidPayload
		}
		if p.TempLow != nil && p.TempHigh != nil {
			if err := a.dev.SetTemperatureThresholds(*p.TempLow, *p.TempHigh); err != nil {
				return nil, err
			}
		}
		if p.HumLow != nil && p.HumHigh != nil {
			if err := a.dev.SetHumidityThresholds(*p.HumLow, *p.HumHigh); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case "identify":
		manuf, err := a.dev.ManufacturerID()
		if err != nil {
			return nil, err
		}
		dev, err := a.dev.DeviceID()
		if err != nil {
			return nil, err
		}
		return map[string]any{"manufacturer_id": manuf, "device_id": dev}, nil

	default:
		return nil, ErrUnsupported
	}
}

// parseContentMode maps the config string onto the driver's content mode.
func parseContentMode(s string) (hdc2080.MeasurementMode, bool) {
	switch s {
	case "", "both":
		return hdc2080.TemperatureAndHumidity, true
	case "temp_only":
		return hdc2080.TemperatureOnly, true
	default:
		return 0, false
	}
}

// parseAutoMode maps control payload strings onto the fixed wire encodings.
func parseAutoMode(s string) (hdc2080.AutoMeasurementMode, bool) {
	switch s {
	case "disabled":
		return hdc2080.AutoDisabled, true
	case "two_minutes":
		return hdc2080.AutoTwoMinutes, true
	case "one_minute":
		return hdc2080.AutoOneMinute, true
	case "ten_seconds":
		return hdc2080.AutoTenSeconds, true
	case "five_seconds":
		return hdc2080.AutoFiveSeconds, true
	case "one_hz":
		return hdc2080.AutoOneHertz, true
	case "two_hz":
		return hdc2080.AutoTwoHertz, true
	case "five_hz":
		return hdc2080.AutoFiveHertz, true
	default:
		return 0, false
	}
}
