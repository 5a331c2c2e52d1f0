// Register addresses and bitfields used in the operation of the HDC2080.

package hdc2080

const (
	// 7-bit I2C address with the ADDR pin strapped low (100_0000b).
	BaseAddress = 0x40

	// --- Register sub-addresses (8-bit registers, LSB first for 16-bit pairs) ---

	// Measurement readouts
	regTempLow  = 0x00 // R
	regTempHigh = 0x01 // R
	regHumLow   = 0x02 // R
	regHumHigh  = 0x03 // R

	// Status / peaks
	regStatus  = 0x04 // R, cleared on read
	regTempMax = 0x05 // R
	regHumMax  = 0x06 // R

	// Interrupts, offsets, thresholds
	regIntEnable  = 0x07 // R/W
	regTempOffset = 0x08 // R/W, signed binary offset trim
	regHumOffset  = 0x09 // R/W
	regTempThrLow = 0x0A // R/W
	regTempThrHi  = 0x0B // R/W
	regHumThrLow  = 0x0C // R/W
	regHumThrHi   = 0x0D // R/W

	// Control
	regConfig     = 0x0E // R/W (soft_res, AMM rate, heater, DRDY/INT pin)
	regMeasConfig = 0x0F // R/W (resolutions, content mode, trigger)

	// Identification
	regManufIDLow = 0xFC // R, 0x49
	regManufIDHi  = 0xFD // R, 0x54
	regDeviceIDLo = 0xFE // R, 0xD0
	regDeviceIDHi = 0xFF // R, 0x07

	// --- STATUS (0x04) bit positions ---
	statusDataReady = 1 << 7
	statusTempHigh  = 1 << 6
	statusTempLow   = 1 << 5
	statusHumHigh   = 1 << 4
	statusHumLow    = 1 << 3

	// --- CONFIG (0x0E) bit helpers ---
	cfgSoftReset = 1 << 7
	cfgAMMMask   = 0x7 << 4
	cfgHeatEn    = 1 << 3
	cfgDrdyIntEn = 1 << 2
	cfgIntPol    = 1 << 1
	cfgIntMode   = 1 << 0

	// --- MEASUREMENT_CONFIGURATION (0x0F) bit helpers ---
	measTResShift = 6
	measHResShift = 4
	measModeMask  = 0x3 << 1
	measModeShift = 1
	measTrigger   = 1 << 0

	// Expected identification words.
	ManufacturerIDTI = 0x5449 // "TI"
	DeviceIDHDC2080  = 0x07D0
)
