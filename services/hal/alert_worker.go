// services/hal/alert_worker.go
package hal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AlertEvent is delivered when a watched DRDY/INT line fires.
type AlertEvent struct {
	DevID string
	Level int // 0/1 after polarity normalisation
	TS    time.Time
}

// alertWorker turns sensor interrupt edges into service events. The ISR
// path is a fast pin read plus a non-blocking channel send; debounce and
// polarity handling run on the worker goroutine.
type alertWorker struct {
	isrQ chan isrEvent
	outQ chan AlertEvent

	stopped chan struct{}

	mu     sync.RWMutex
	inputs map[string]*watch // devID -> watch

	drops uint32 // ISR drop counter
}

type isrEvent struct {
	devID string
	level bool // captured in ISR
}

type watch struct {
	devID      string
	pin        IRQPin
	activeHigh bool
	debounce   time.Duration
	lastEvent  time.Time
	cancelIRQ  func()
}

func newAlertWorker(isrBuf, outBuf int) *alertWorker {
	if isrBuf <= 0 {
		isrBuf = 64
	}
	if outBuf <= 0 {
		outBuf = 64
	}
	return &alertWorker{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan AlertEvent, outBuf),
		stopped: make(chan struct{}),
		inputs:  map[string]*watch{},
	}
}

func (w *alertWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

func (w *alertWorker) Events() <-chan AlertEvent { return w.outQ }

// RegisterAlert watches a sensor interrupt line. The returned cancel
// function detaches the IRQ and forgets the watch.
func (w *alertWorker) RegisterAlert(devID string, pin IRQPin, activeHigh bool, debounceMS int) (func(), error) {
	edge := EdgeFalling
	if activeHigh {
		edge = EdgeRising
	}

	wh := &watch{
		devID:      devID,
		pin:        pin,
		activeHigh: activeHigh,
		debounce:   time.Duration(debounceMS) * time.Millisecond,
	}

	// ISR handler: fast register read + non-blocking channel send.
	handler := func() {
		l := pin.Get()
		select {
		case w.isrQ <- isrEvent{devID: devID, level: l}:
		default:
			atomic.AddUint32(&w.drops, 1) // protect ISR path
		}
	}
	if err := pin.SetIRQ(edge, handler); err != nil {
		return nil, err
	}
	wh.cancelIRQ = func() { _ = pin.ClearIRQ() }

	w.mu.Lock()
	w.inputs[devID] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.inputs[devID]; ok {
			if cur.cancelIRQ != nil {
				cur.cancelIRQ()
			}
			delete(w.inputs, devID)
		}
		w.mu.Unlock()
	}, nil
}

func (w *alertWorker) handleISR(ev isrEvent) {
	w.mu.RLock()
	wh := w.inputs[ev.devID]
	w.mu.RUnlock()
	if wh == nil {
		return
	}

	// Only the asserted level is interesting.
	asserted := ev.level == wh.activeHigh
	if !asserted {
		return
	}

	now := time.Now()
	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		return
	}
	wh.lastEvent = now

	select {
	case w.outQ <- AlertEvent{DevID: ev.devID, Level: boolToInt(ev.level), TS: now}:
	default:
		// drop to protect system if consumer is slow
	}
}

func (w *alertWorker) ISRDrops() uint32 { return atomic.LoadUint32(&w.drops) }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
