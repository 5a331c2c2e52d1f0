// Package hdc2080 provides a driver for the TI HDC2080 temperature/humidity
// sensor. It exposes a two-phase measurement API:
//
//	d.Trigger()              // start a conversion (fast register write)
//	err := d.Collect(&m)     // fetch when ready; returns ErrNotReady while busy
//
// For convenience, d.Read() performs trigger + bounded polling until ready.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package hdc2080

import (
	"time"

	"tinygo.org/x/drivers"
)

// Resolution selects the conversion resolution for a channel.
type Resolution uint8

const (
	Resolution14Bit Resolution = iota
	Resolution11Bit
	Resolution9Bit
)

// InterruptEnable is the INTERRUPT_ENABLE register bitmask.
type InterruptEnable byte

const (
	IntDataReady    InterruptEnable = statusDataReady
	IntTempHigh     InterruptEnable = statusTempHigh
	IntTempLow      InterruptEnable = statusTempLow
	IntHumidityHigh InterruptEnable = statusHumHigh
	IntHumidityLow  InterruptEnable = statusHumLow
)

func (b InterruptEnable) Has(flag InterruptEnable) bool { return b&flag != 0 }

// Config controls measurement content and non-hardware behaviour.
// All fields are optional.
type Config struct {
	// Mode defaults to TemperatureAndHumidity (the device default).
	Mode MeasurementMode
	// TemperatureResolution / HumidityResolution default to 14 bit.
	TemperatureResolution Resolution
	HumidityResolution    Resolution
	// PollInterval is used by Read() between Collect() attempts. Default 2 ms.
	PollInterval time.Duration
	// CollectTimeout bounds the total wait in Read(). Default 100 ms.
	CollectTimeout time.Duration
	// TriggerHint is the nominal conversion time, exposed to callers who
	// schedule Collect themselves without using Read(). Default 2 ms.
	TriggerHint time.Duration
}

// Device wraps an I2C connection to an HDC2080 device.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg Config

	// Fixed buffers to avoid per-call heap allocations.
	w [2]byte
	r [4]byte
}

// New creates a new HDC2080 connection on the resolved bus address.
// This function only creates the Device object; it does not touch the device.
func New(bus drivers.I2C, addr SlaveAddr) Device {
	return Device{
		bus:     bus,
		Address: uint16(addr.Addr()),
	}
}

// Configure validates and applies measurement configuration. It does not
// touch the bus; the content mode and resolutions are written with each
// Trigger. Invalid selections return ErrInvalidInput.
func (d *Device) Configure(cfgs ...Config) error {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Mode != TemperatureAndHumidity && c.Mode != TemperatureOnly {
		return ErrInvalidInput
	}
	if c.TemperatureResolution > Resolution9Bit || c.HumidityResolution > Resolution9Bit {
		return ErrInvalidInput
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Millisecond
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 100 * time.Millisecond
	}
	if c.TriggerHint <= 0 {
		c.TriggerHint = 2 * time.Millisecond
	}
	d.cfg = c
	return nil
}

// Mode returns the configured measurement content mode.
func (d *Device) Mode() MeasurementMode { return d.cfg.Mode }

// measConfigByte assembles the MEASUREMENT_CONFIGURATION value (no trigger bit).
func (d *Device) measConfigByte() byte {
	return byte(d.cfg.TemperatureResolution)<<measTResShift |
		byte(d.cfg.HumidityResolution)<<measHResShift |
		byte(d.cfg.Mode)<<measModeShift
}

// Trigger starts a single conversion. It is a quick register write with no
// blocking; the device then needs time to convert, see TriggerHint.
func (d *Device) Trigger() error {
	if d.cfg.PollInterval == 0 {
		if err := d.Configure(); err != nil {
			return err
		}
	}
	return d.writeRegister(regMeasConfig, d.measConfigByte()|measTrigger)
}

// TriggerHint returns the nominal conversion time to wait before Collect.
func (d *Device) TriggerHint() time.Duration {
	if d.cfg.TriggerHint > 0 {
		return d.cfg.TriggerHint
	}
	return 2 * time.Millisecond
}

// Status reads and decodes the STATUS register.
func (d *Device) Status() (Status, error) {
	b, err := d.readRegister(regStatus)
	if err != nil {
		return Status{}, err
	}
	return DecodeStatus(b), nil
}

// Collect attempts to read one measurement. If no conversion has completed
// yet, ErrNotReady is returned. Humidity is populated only when the content
// mode is TemperatureAndHumidity.
func (d *Device) Collect(out *Measurement) error {
	st, err := d.Status()
	if err != nil {
		return err
	}
	if !st.DataReady {
		return ErrNotReady
	}

	n := 4
	if d.cfg.Mode == TemperatureOnly {
		n = 2
	}
	if err := d.readBytes(regTempLow, d.r[:n]); err != nil {
		return err
	}

	traw := uint16(d.r[0]) | uint16(d.r[1])<<8
	m := Measurement{
		Temperature: float32(traw)*165/65536 - 40,
		Status:      st,
	}
	if d.cfg.Mode == TemperatureAndHumidity {
		hraw := uint16(d.r[2]) | uint16(d.r[3])<<8
		m.Humidity = SomeRH(float32(hraw) * 100 / 65536)
	}

	if out != nil {
		*out = m
	}
	return nil
}

// Read performs a full measurement cycle: Trigger followed by bounded
// polling until Collect succeeds or the timeout elapses.
func (d *Device) Read(out *Measurement) error {
	if err := d.Trigger(); err != nil {
		return err
	}
	deadline := time.Now().Add(d.cfg.CollectTimeout)
	for {
		err := d.Collect(out)
		switch err {
		case nil:
			return nil
		case ErrNotReady:
			if time.Now().After(deadline) {
				return ErrTimeout
			}
			time.Sleep(d.cfg.PollInterval)
			continue
		default:
			return err
		}
	}
}

// SoftReset issues a device soft reset. Give the device ~3ms afterwards; all
// configuration registers return to their power-on defaults.
func (d *Device) SoftReset() error {
	return d.writeRegister(regConfig, cfgSoftReset)
}

// SetAutoMeasurementMode writes the automatic measurement configuration.
// The encoding goes onto the wire verbatim; the heater and interrupt pin
// bits of the current CONFIG value are preserved. The mode must be one of
// the defined variants, otherwise ErrInvalidInput is returned without bus
// access.
func (d *Device) SetAutoMeasurementMode(mode AutoMeasurementMode) error {
	switch mode {
	case AutoDisabled, AutoTwoMinutes, AutoOneMinute, AutoTenSeconds,
		AutoFiveSeconds, AutoOneHertz, AutoTwoHertz, AutoFiveHertz:
	default:
		return ErrInvalidInput
	}
	cur, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	const keep = cfgHeatEn | cfgDrdyIntEn | cfgIntPol | cfgIntMode
	return d.writeRegister(regConfig, cur&keep|byte(mode))
}

// EnableHeater turns the integrated heater on or off (read-modify-write).
func (d *Device) EnableHeater(on bool) error {
	cur, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	if on {
		cur |= cfgHeatEn
	} else {
		cur &^= cfgHeatEn
	}
	return d.writeRegister(regConfig, cur)
}

// ConfigureInterruptPin enables the DRDY/INT output with the given
// polarity and mode. comparator=false selects level-sensitive operation.
func (d *Device) ConfigureInterruptPin(activeHigh, comparator bool) error {
	cur, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	cur &^= cfgIntPol | cfgIntMode
	cur |= cfgDrdyIntEn
	if activeHigh {
		cur |= cfgIntPol
	}
	if comparator {
		cur |= cfgIntMode
	}
	return d.writeRegister(regConfig, cur)
}

// SetInterruptEnable writes the INTERRUPT_ENABLE mask (absolute write).
func (d *Device) SetInterruptEnable(mask InterruptEnable) error {
	return d.writeRegister(regIntEnable, byte(mask))
}

// SetTemperatureThresholds programs the alarm window in °C. The window must
// be ordered and inside the device range [-40, 125].
func (d *Device) SetTemperatureThresholds(low, high float32) error {
	if low > high || low < -40 || high > 125 {
		return ErrInvalidInput
	}
	if err := d.writeRegister(regTempThrLow, tempToCode(low)); err != nil {
		return err
	}
	return d.writeRegister(regTempThrHi, tempToCode(high))
}

// SetHumidityThresholds programs the alarm window in %RH, range [0, 100].
func (d *Device) SetHumidityThresholds(low, high float32) error {
	if low > high || low < 0 || high > 100 {
		return ErrInvalidInput
	}
	if err := d.writeRegister(regHumThrLow, humToCode(low)); err != nil {
		return err
	}
	return d.writeRegister(regHumThrHi, humToCode(high))
}

// SetTemperatureOffset writes the raw temperature offset trim register.
// The byte uses the device's weighted-bit format (datasheet table 7-5).
func (d *Device) SetTemperatureOffset(raw byte) error {
	return d.writeRegister(regTempOffset, raw)
}

// SetHumidityOffset writes the raw humidity offset trim register.
func (d *Device) SetHumidityOffset(raw byte) error {
	return d.writeRegister(regHumOffset, raw)
}

// ManufacturerID reads the manufacturer identification word (0x5449, "TI").
func (d *Device) ManufacturerID() (uint16, error) {
	if err := d.readBytes(regManufIDLow, d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0]) | uint16(d.r[1])<<8, nil
}

// DeviceID reads the device identification word (0x07D0 for the HDC2080).
func (d *Device) DeviceID() (uint16, error) {
	if err := d.readBytes(regDeviceIDLo, d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0]) | uint16(d.r[1])<<8, nil
}

// ---------------- Low-level register access ----------------

func (d *Device) readRegister(reg byte) (byte, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:1]); err != nil {
		return 0, wrapBus(err)
	}
	return d.r[0], nil
}

func (d *Device) readBytes(reg byte, into []byte) error {
	d.w[0] = reg
	return wrapBus(d.bus.Tx(d.Address, d.w[:1], into))
}

func (d *Device) writeRegister(reg, val byte) error {
	d.w[0] = reg
	d.w[1] = val
	return wrapBus(d.bus.Tx(d.Address, d.w[:2], nil))
}

// ---------------- Quantisation helpers ----------------

// tempToCode maps °C onto the 8-bit threshold code: code = (t+40)/165*256.
func tempToCode(t float32) byte {
	c := int32((t+40)*256/165 + 0.5)
	if c < 0 {
		c = 0
	}
	if c > 255 {
		c = 255
	}
	return byte(c)
}

// humToCode maps %RH onto the 8-bit threshold code: code = h/100*256.
func humToCode(h float32) byte {
	c := int32(h*256/100 + 0.5)
	if c < 0 {
		c = 0
	}
	if c > 255 {
		c = 255
	}
	return byte(c)
}
