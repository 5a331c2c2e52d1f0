// services/hal/hal.go
package hal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"envnode-go/bus"
	"envnode-go/errcode"
	"envnode-go/services/hal/internal/platform"
	"envnode-go/types"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// RunDefault wires the build-selected platform factories (RP2 hardware or
// the host simulation) and runs the service loop.
func RunDefault(ctx context.Context, conn *bus.Connection) {
	Run(ctx, conn, platform.DefaultI2CFactory(), platform.DefaultPinFactory())
}

func Run(ctx context.Context, conn *bus.Connection, i2cFactory I2CBusFactory, pinFactory PinFactory) {
	h := &service{
		conn:        conn,
		i2cFactory:  i2cFactory,
		pinFactory:  pinFactory,
		workers:     map[string]*measureWorker{},
		devices:     map[string]devEntry{},
		capToDev:    map[capKey]string{},
		nextCapID:   map[string]int{},
		devPeriodMS: map[string]int{},
		devNextDue:  map[string]time.Time{},
		results:     make(chan Result, 32),
		alertW:      newAlertWorker(32, 32),
		alertCancel: map[string]func(){},
	}
	h.alertW.Start(ctx)
	h.loop(ctx)
}

// -----------------------------------------------------------------------------
// Service state
// -----------------------------------------------------------------------------

type devEntry struct {
	adaptor Adaptor
	caps    map[string]int // kind -> numeric capability id
	busID   string
}

type capKey struct {
	kind string
	id   int
}

type service struct {
	conn       *bus.Connection
	i2cFactory I2CBusFactory
	pinFactory PinFactory

	workers map[string]*measureWorker
	devices map[string]devEntry

	capToDev  map[capKey]string
	nextCapID map[string]int

	devPeriodMS map[string]int
	devNextDue  map[string]time.Time

	timer *time.Timer

	// Results fan-in
	results chan Result

	// DRDY/INT alert support
	alertW      *alertWorker
	alertCancel map[string]func() // devID -> cancel function
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "hal"})
	ctrlSub := s.conn.Subscribe(bus.Topic{"hal", "capability", "+", "+", "control", "+"})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		drainTimer(s.timer)
	}

	var alertEv <-chan AlertEvent = s.alertW.Events()

	for {
		// (re)arm timer
		if next := s.earliestDevDue(); next.IsZero() {
			resetTimer(s.timer, time.Hour)
		} else {
			resetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg HALConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.applyConfig(ctx, cfg); err != nil {
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case <-s.timer.C:
			now := time.Now()
			for devID, due := range s.devNextDue {
				if !now.Before(due) {
					s.submitMeasure(devID, false)
					s.bumpDevNext(devID, now)
				}
			}

		case r := <-s.results:
			s.handleResult(r)

		case ev := <-alertEv:
			s.handleAlert(ev)
		}
	}
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

func (s *service) handleControl(msg *bus.Message) {
	// hal/capability/<kind>/<id:int>/control/<method>
	if len(msg.Topic) < 6 {
		return
	}
	kind, _ := msg.Topic[2].(string)
	idNum, ok := asInt(msg.Topic[3])
	if !ok || kind == "" {
		s.replyErr(msg, string(errcode.UnknownCapability))
		return
	}
	devID, ok := s.capToDev[capKey{kind: kind, id: idNum}]
	if !ok {
		s.replyErr(msg, string(errcode.UnknownCapability))
		return
	}
	method, _ := msg.Topic[5].(string)

	switch method {
	case "read_now":
		if s.submitMeasure(devID, true) {
			s.bumpDevNext(devID, time.Now())
			s.replyOK(msg, nil)
		} else {
			s.replyErr(msg, string(errcode.Busy))
		}
	case "set_rate":
		ms := parsePeriodMS(msg.Payload)
		if ms > 0 {
			s.devPeriodMS[devID] = clampInt(ms, 200, 3_600_000)
			s.bumpDevNext(devID, time.Now())
			s.replyOK(msg, map[string]any{"period_ms": s.devPeriodMS[devID]})
		} else {
			s.replyErr(msg, string(errcode.InvalidPayload))
		}
	default:
		ent := s.devices[devID]
		if ent.adaptor == nil {
			s.replyErr(msg, string(errcode.UnknownCapability))
			return
		}
		if res, err := ent.adaptor.Control(kind, method, msg.Payload); err == nil {
			s.replyOK(msg, map[string]any{"result": res})
		} else {
			s.replyErr(msg, string(controlErrCode(err)))
		}
	}
}

// controlErrCode classifies a Control error for the reply. Adaptors may
// already attach a specific code (bad payload), so honour that before
// falling back to the driver-error mapping.
func controlErrCode(err error) errcode.Code {
	if errors.Is(err, ErrUnsupported) {
		return errcode.Unsupported
	}
	if c := errcode.Of(err); c != errcode.Error {
		return c
	}
	return errcode.MapDriverErr(err)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *service) applyConfig(ctx context.Context, cfg HALConfig) error {
	seen := map[string]struct{}{}

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		seen[d.ID] = struct{}{}

		// Skip if already present (simple idempotence for now)
		if _, exists := s.devices[d.ID]; exists {
			continue
		}
		if d.Type != "hdc2080" {
			continue
		}
		// Require a valid I²C bus reference
		if d.BusRef.Type != "i2c" || d.BusRef.ID == "" {
			continue
		}
		i2c, ok := s.i2cFactory.ByID(d.BusRef.ID)
		if !ok {
			continue
		}
		// Ensure a worker for this bus
		if _, ok := s.workers[d.BusRef.ID]; !ok {
			w := NewWorker(WorkerConfig{}, s.results)
			w.Start(ctx)
			s.workers[d.BusRef.ID] = w
		}

		var p HDC2080Params
		if err := decodeJSON(d.Params, &p); err != nil {
			continue
		}
		ad, err := NewHDC2080Adaptor(d.ID, d.BusRef.ID, i2c, p)
		if err != nil {
			continue
		}

		// Record adaptor and publish retained capability info/state.
		entry := devEntry{adaptor: ad, busID: d.BusRef.ID, caps: map[string]int{}}

		for _, ci := range ad.Capabilities() {
			id := s.nextCapID[ci.Kind]
			s.nextCapID[ci.Kind]++

			entry.caps[ci.Kind] = id
			s.capToDev[capKey{kind: ci.Kind, id: id}] = d.ID

			s.pubRet(capTopicInt(ci.Kind, id, "info"), ci.Info)
			s.pubRet(capTopicInt(ci.Kind, id, "state"),
				types.CapabilityStatus{Link: types.LinkUp, TS: time.Now().UnixMilli()})
		}
		s.devices[d.ID] = entry

		// Schedule periodic sampling.
		period := p.PeriodMS
		if period <= 0 {
			period = 2000
		}
		s.devPeriodMS[d.ID] = clampInt(period, 200, 3_600_000)
		s.devNextDue[d.ID] = time.Now().Add(200 * time.Millisecond)

		// Watch the DRDY/INT line when wired.
		if p.IntPin != nil && s.pinFactory != nil {
			if pin, ok := s.pinFactory.ByNumber(*p.IntPin); ok {
				if irqPin, ok := pin.(IRQPin); ok {
					_ = irqPin.ConfigureInput(PullUp)
					if cancel, err := s.alertW.RegisterAlert(d.ID, irqPin, true, 5); err == nil {
						s.alertCancel[d.ID] = cancel
					}
				}
			}
		}
	}

	// Tidy-up: remove devices not in config
	for devID, ent := range s.devices {
		if _, ok := seen[devID]; ok {
			continue
		}
		for kind, id := range ent.caps {
			s.pubRet(capTopicInt(kind, id, "info"), nil)
			s.pubRet(capTopicInt(kind, id, "state"),
				types.CapabilityStatus{Link: types.LinkDown, TS: time.Now().UnixMilli()})
			delete(s.capToDev, capKey{kind: kind, id: id})
		}
		if c, ok := s.alertCancel[devID]; ok {
			c()
			delete(s.alertCancel, devID)
		}
		delete(s.devices, devID)
		delete(s.devPeriodMS, devID)
		delete(s.devNextDue, devID)
	}

	return nil
}

// -----------------------------------------------------------------------------
// Results, alerts, and helpers
// -----------------------------------------------------------------------------

func (s *service) submitMeasure(devID string, prio bool) bool {
	ent, ok := s.devices[devID]
	if !ok {
		return false
	}
	w := s.workers[ent.busID]
	if w == nil {
		return false
	}
	return w.Submit(MeasureReq{ID: devID, Adaptor: ent.adaptor, Prio: prio})
}

func (s *service) bumpDevNext(devID string, from time.Time) {
	period := time.Duration(clampInt(s.devPeriodMS[devID], 200, 3_600_000)) * time.Millisecond
	s.devNextDue[devID] = from.Add(period)
}

func (s *service) earliestDevDue() time.Time {
	var min time.Time
	for _, t := range s.devNextDue {
		if !t.IsZero() && (min.IsZero() || t.Before(min)) {
			min = t
		}
	}
	return min
}

func (s *service) handleResult(r Result) {
	ent, ok := s.devices[r.ID]
	if !ok {
		return
	}
	now := time.Now().UnixMilli()

	if r.Err != nil {
		code := string(errcode.MapDriverErr(r.Err))
		for kind, id := range ent.caps {
			s.pubRet(capTopicInt(kind, id, "state"),
				types.CapabilityStatus{Link: types.LinkDegraded, Error: code, TS: now})
		}
		return
	}
	// Publish each reading to its mapped capability id.
	for _, rd := range r.Sample {
		id, ok := ent.caps[rd.Kind]
		if !ok {
			continue
		}
		s.conn.Publish(s.conn.NewMessage(
			capTopicInt(rd.Kind, id, "value"),
			rd.Payload,
			false,
		))
		s.pubRet(capTopicInt(rd.Kind, id, "state"),
			types.CapabilityStatus{Link: types.LinkUp, TS: now})
	}
}

// handleAlert converts a DRDY/INT edge into a priority measurement.
func (s *service) handleAlert(ev AlertEvent) {
	if _, ok := s.devices[ev.DevID]; !ok {
		return
	}
	if s.submitMeasure(ev.DevID, true) {
		s.bumpDevNext(ev.DevID, ev.TS)
	}
}

func (s *service) publishState(level, status string, err error) {
	st := types.HALState{Level: level, Status: status, TS: time.Now().UnixMilli()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"hal", "state"}, st, true))
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	if extra == nil {
		s.conn.Reply(req, types.OKReply{OK: true}, false)
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, e string) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: e}, false)
}

func capTopicInt(kind string, id int, rest ...bus.Token) bus.Topic {
	base := bus.Topic{"hal", "capability", kind, id}
	return append(base, rest...)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func parsePeriodMS(p any) int {
	if m, ok := p.(map[string]any); ok {
		switch v := m["period_ms"].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		// Accept maps, structs, numbers… by marshaling then decoding to T.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

func asInt(t any) (int, bool) {
	switch v := t.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
