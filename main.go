package main

import (
	"context"
	"runtime"
	"time"

	"envnode-go/bus"
	"envnode-go/services/config"
	"envnode-go/services/hal"
	"envnode-go/services/heartbeat"
	"envnode-go/types"
)

func printTopicWith(prefix string, t bus.Topic) {
	print(prefix)
	print(" ")
	for i := 0; i < len(t); i++ {
		if i > 0 {
			print("/")
		}
		switch v := t[i].(type) {
		case string:
			print(v)
		case int:
			print(v)
		case int32:
			print(int(v))
		case int64:
			print(int(v))
		default:
			print("?")
		}
	}
	println()
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(3 * time.Second)
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "envnode")

	println("[main] bootstrapping bus ...")
	b := bus.NewBus(4)
	halConn := b.NewConnection("hal")
	cfgConn := b.NewConnection("config")
	hbConn := b.NewConnection("heartbeat")
	uiConn := b.NewConnection("ui")

	println("[main] subscribing to hal/# for diagnostics ...")
	mon := uiConn.Subscribe(bus.T("hal", "#"))
	go func() {
		for m := range mon.Channel() {
			printTopicWith("[monitor] <-", m.Topic)
		}
	}()

	println("[main] starting hal.Run ...")
	go hal.RunDefault(ctx, halConn)

	println("[main] starting heartbeat ...")
	_ = (&heartbeat.Service{}).Start(ctx, hbConn)

	// The config service publishes retained config/hal which brings the
	// sensor up; hal.Run consumes it whenever it arrives.
	println("[main] publishing embedded config ...")
	config.NewConfigService().Start(ctx, cfgConn)

	time.Sleep(500 * time.Millisecond)

	// Poke a one-shot reading, then sit in the demo loop.
	readNow := bus.T("hal", "capability", string(types.KindTemperature), 0, "control", "read_now")
	println("[main] sending read_now for temperature/0 ...")
	if reply, err := uiConn.RequestWait(ctx, uiConn.NewMessage(readNow, nil, false)); err != nil {
		println("[main] read_now error:", err.Error())
	} else {
		printTopicWith("[main] read_now reply on", reply.Topic)
	}

	for {
		printMem()
		time.Sleep(5 * time.Second)
	}
}

// printMem prints a compact snapshot of runtime memory stats.
// Uses builtin println to avoid fmt overhead/allocations.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
