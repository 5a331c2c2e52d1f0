// services/hal/hal_integration_test.go
//go:build !rp2040 && !rp2350

package hal

import (
	"context"
	"testing"
	"time"

	"envnode-go/bus"
	"envnode-go/errcode"
	"envnode-go/services/hal/internal/platform"
	"envnode-go/types"

	"tinygo.org/x/drivers"
)

func recvOrTimeout(ch <-chan *bus.Message, d time.Duration) (*bus.Message, bool) {
	select {
	case m := <-ch:
		return m, true
	case <-time.After(d):
		return nil, false
	}
}

func TestHAL_EndToEnd_HDC2080(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(64)
	halConn := b.NewConnection("hal")
	conn := b.NewConnection("test")
	defer conn.Disconnect()

	// Subscribe to service state BEFORE starting so the initial retained
	// publish is observed.
	stateSub := conn.Subscribe(bus.T("hal", "state"))
	defer conn.Unsubscribe(stateSub)

	sim := platform.NewSimHDC2080(0x40)
	i2c := platform.I2CFactoryWith(map[string]drivers.I2C{"i2c0": sim})
	pins := platform.DefaultPinFactory()
	hostPins := pins.(*platform.HostPinFactory)

	go Run(ctx, halConn, i2c, pins)

	if _, ok := recvOrTimeout(stateSub.Channel(), 3*time.Second); !ok {
		t.Fatal("did not observe initial hal/state")
	}

	intPin := 6
	cfg := HALConfig{
		Version: 1,
		Buses:   []BusCfg{{ID: "i2c0", Type: "i2c"}},
		Devices: []DevCfg{{
			ID:     "env0",
			Type:   "hdc2080",
			BusRef: DevBusRef{ID: "i2c0", Type: "i2c"},
			Params: HDC2080Params{Mode: "both", PeriodMS: 400, IntPin: &intPin},
		}},
	}
	conn.Publish(conn.NewMessage(bus.T("config", "hal"), cfg, false))

	// Wait for level=ready.
	seenReady := false
	readyDeadline := time.Now().Add(5 * time.Second)
	for !seenReady && time.Now().Before(readyDeadline) {
		m, ok := recvOrTimeout(stateSub.Channel(), 500*time.Millisecond)
		if !ok {
			continue
		}
		if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
			seenReady = true
		}
	}
	if !seenReady {
		t.Fatal("did not observe hal/state level=ready")
	}

	// Retained capability info should be discoverable after the fact.
	infoSub := conn.Subscribe(bus.T("hal", "capability", "temperature", 0, "info"))
	defer conn.Unsubscribe(infoSub)
	if m, ok := recvOrTimeout(infoSub.Channel(), time.Second); !ok {
		t.Fatal("no retained temperature capability info")
	} else if info, ok := m.Payload.(types.Info); !ok || info.Driver != "hdc2080" {
		t.Fatalf("capability info payload = %#v", m.Payload)
	}

	// Periodic sampling should publish values.
	valSub := conn.Subscribe(bus.T("hal", "capability", "temperature", 0, "value"))
	defer conn.Unsubscribe(valSub)
	m, ok := recvOrTimeout(valSub.Channel(), 3*time.Second)
	if !ok {
		t.Fatal("no periodic temperature value")
	}
	tv, ok := m.Payload.(types.TemperatureValue)
	if !ok || tv.DeciC != 250 {
		t.Fatalf("temperature value = %#v, want 250 deci-degC", m.Payload)
	}

	humSub := conn.Subscribe(bus.T("hal", "capability", "humidity", 0, "value"))
	defer conn.Unsubscribe(humSub)
	if m, ok := recvOrTimeout(humSub.Channel(), 3*time.Second); !ok {
		t.Fatal("no periodic humidity value")
	} else if hv, ok := m.Payload.(types.HumidityValue); !ok || hv.RHx100 != 5500 {
		t.Fatalf("humidity value = %#v, want 5500 centi-%%RH", m.Payload)
	}

	// read_now via request/reply.
	readNow := bus.T("hal", "capability", "temperature", 0, "control", "read_now")
	reply, err := conn.RequestWait(ctx, conn.NewMessage(readNow, nil, false))
	if err != nil {
		t.Fatalf("read_now: %v", err)
	}
	if rm, ok := reply.Payload.(types.OKReply); !ok || !rm.OK {
		t.Fatalf("read_now reply = %#v", reply.Payload)
	}

	// Unknown capability id is rejected.
	badTopic := bus.T("hal", "capability", "temperature", 9, "control", "read_now")
	reply, err = conn.RequestWait(ctx, conn.NewMessage(badTopic, nil, false))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if rm, ok := reply.Payload.(types.ErrorReply); !ok || rm.OK || rm.Error == "" {
		t.Fatalf("expected error reply for unknown id, got %#v", reply.Payload)
	}

	// Adaptor-level codes must survive to the reply, not flatten to "error".
	autoMode := bus.T("hal", "capability", "temperature", 0, "control", "set_auto_mode")
	reply, err = conn.RequestWait(ctx, conn.NewMessage(autoMode, map[string]any{"mode": 12345}, false))
	if err != nil {
		t.Fatalf("set_auto_mode: %v", err)
	}
	if rm, ok := reply.Payload.(types.ErrorReply); !ok || rm.Error != string(errcode.InvalidPayload) {
		t.Fatalf("bad-payload reply = %#v, want %q", reply.Payload, errcode.InvalidPayload)
	}

	unknown := bus.T("hal", "capability", "temperature", 0, "control", "frobnicate")
	reply, err = conn.RequestWait(ctx, conn.NewMessage(unknown, nil, false))
	if err != nil {
		t.Fatalf("unknown method: %v", err)
	}
	if rm, ok := reply.Payload.(types.ErrorReply); !ok || rm.Error != string(errcode.Unsupported) {
		t.Fatalf("unknown-method reply = %#v, want %q", reply.Payload, errcode.Unsupported)
	}

	// A DRDY edge on the configured pin forces an immediate sample.
	sim.SetRaw(29791, 36045) // ~35.0 degC
	pin, ok := hostPins.Get(intPin)
	if !ok {
		t.Fatal("int pin was never configured")
	}
	drained := true
	for drained {
		_, drained = recvOrTimeout(valSub.Channel(), 50*time.Millisecond)
	}
	pin.Set(false)
	pin.Set(true)
	m, ok = recvOrTimeout(valSub.Channel(), 2*time.Second)
	if !ok {
		t.Fatal("no value after DRDY edge")
	}
	if tv, ok := m.Payload.(types.TemperatureValue); !ok || tv.DeciC < 340 || tv.DeciC > 360 {
		t.Fatalf("post-alert temperature = %#v, want about 350", m.Payload)
	}
}
