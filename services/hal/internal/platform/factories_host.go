// services/hal/internal/platform/factories_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"sync"
	"time"

	"envnode-go/services/hal/internal/halcore"

	"tinygo.org/x/drivers"
)

// ----------------------------- I²C (host) ------------------------------------

// SimHDC2080 emulates an HDC2080 register file behind drivers.I2C so the
// host build runs the full measurement pipeline without hardware.
//
// Behaviour modelled: a write of [reg] sets the register pointer for the
// next read; [reg, val] writes val. Writing the trigger bit of 0x0F starts
// a conversion that completes after ConvDelay and raises DRDY in 0x04.
// Reading 0x04 clears the event flags. 0x0E bit 7 is soft reset.
type SimHDC2080 struct {
	mu   sync.Mutex
	Addr uint16

	regs    [256]byte
	pointer uint8

	// Raw sensor values served at conversion time.
	TempRaw uint16 // default ~25.0 °C
	HumRaw  uint16 // default ~55.0 %RH

	// ConvDelay delays DRDY after a trigger; zero means instant.
	ConvDelay time.Duration
	readyAt   time.Time

	// Fail, when set, is returned from every Tx.
	Fail error

	TxCount int
}

// NewSimHDC2080 returns an emulated sensor at the given 7-bit address.
func NewSimHDC2080(addr uint16) *SimHDC2080 {
	s := &SimHDC2080{
		Addr:    addr,
		TempRaw: 25821, // (25+40)/165 * 65536
		HumRaw:  36045, // 0.55 * 65536
	}
	s.regs[0xFC] = 0x49 // 'I'
	s.regs[0xFD] = 0x54 // 'T'
	s.regs[0xFE] = 0xD0
	s.regs[0xFF] = 0x07
	return s
}

func (s *SimHDC2080) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TxCount++
	if s.Fail != nil {
		return s.Fail
	}
	if addr != s.Addr {
		return errNack{}
	}

	if len(w) >= 1 {
		s.pointer = w[0]
	}
	if len(w) >= 2 {
		s.write(w[0], w[1])
	}
	for i := range r {
		r[i] = s.read(s.pointer + uint8(i))
	}
	return nil
}

func (s *SimHDC2080) write(reg, val byte) {
	switch reg {
	case 0x0E:
		if val&0x80 != 0 { // soft reset
			id := [4]byte{s.regs[0xFC], s.regs[0xFD], s.regs[0xFE], s.regs[0xFF]}
			s.regs = [256]byte{}
			s.regs[0xFC], s.regs[0xFD] = id[0], id[1]
			s.regs[0xFE], s.regs[0xFF] = id[2], id[3]
			return
		}
		s.regs[reg] = val
	case 0x0F:
		s.regs[reg] = val &^ 0x01
		if val&0x01 != 0 { // trigger
			s.readyAt = time.Now().Add(s.ConvDelay)
			s.latch()
		}
	default:
		s.regs[reg] = val
	}
}

func (s *SimHDC2080) read(reg byte) byte {
	if reg == 0x04 {
		v := s.regs[reg]
		if !s.readyAt.IsZero() && !time.Now().Before(s.readyAt) {
			v |= 0x80
			s.readyAt = time.Time{} // one DRDY per conversion
		}
		s.regs[reg] = 0 // event flags clear on read
		return v
	}
	return s.regs[reg]
}

// latch stores the current raw values into the output registers.
func (s *SimHDC2080) latch() {
	s.regs[0x00] = byte(s.TempRaw)
	s.regs[0x01] = byte(s.TempRaw >> 8)
	s.regs[0x02] = byte(s.HumRaw)
	s.regs[0x03] = byte(s.HumRaw >> 8)
}

// SetRaw atomically updates the raw values served on the next trigger.
func (s *SimHDC2080) SetRaw(temp, hum uint16) {
	s.mu.Lock()
	s.TempRaw, s.HumRaw = temp, hum
	s.mu.Unlock()
}

type errNack struct{}

func (errNack) Error() string { return "i2c: no ack" }

type hostI2CFactory struct {
	buses map[string]drivers.I2C
}

func (f *hostI2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// DefaultI2CFactory creates host buses "i2c0" and "i2c1", each carrying an
// emulated HDC2080 at the default address.
func DefaultI2CFactory() halcore.I2CBusFactory {
	return &hostI2CFactory{
		buses: map[string]drivers.I2C{
			"i2c0": NewSimHDC2080(0x40),
			"i2c1": NewSimHDC2080(0x40),
		},
	}
}

// I2CFactoryWith builds a factory over explicit bus instances, for tests.
func I2CFactoryWith(buses map[string]drivers.I2C) halcore.I2CBusFactory {
	return &hostI2CFactory{buses: buses}
}

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements halcore.GPIOPin and halcore.IRQPin for host builds. Set both
// drives the level and fires a registered IRQ handler on a matching edge.
type FakePin struct {
	mu      sync.Mutex
	number  int
	level   bool
	modeOut bool
	irqEdge halcore.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureInput(_ halcore.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	fire := irq != nil && irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if fire {
		irq() // ISR-style callback, must not block
	}
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	v := p.level
	p.mu.Unlock()
	return v
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = halcore.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) halcore.Edge {
	switch {
	case !old && new:
		return halcore.EdgeRising
	case old && !new:
		return halcore.EdgeFalling
	default:
		return halcore.EdgeNone
	}
}

func irqWanted(cfg, seen halcore.Edge) bool {
	if cfg == halcore.EdgeBoth {
		return seen == halcore.EdgeRising || seen == halcore.EdgeFalling
	}
	return cfg == seen
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *HostPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p, true
}

// Get exposes the underlying *FakePin for tests (e.g. to drive DRDY edges).
func (f *HostPinFactory) Get(n int) (*FakePin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	return p, ok
}

// DefaultPinFactory provides a host GPIO factory.
func DefaultPinFactory() halcore.PinFactory {
	return &HostPinFactory{pins: make(map[int]*FakePin)}
}
