// services/hal/types.go
package hal

import (
	"context"
	"time"

	"envnode-go/services/hal/internal/halcore"
	"envnode-go/types"
)

// Reading is one datum for one capability kind.
type Reading struct {
	Kind    string // e.g. "temperature", "humidity", "env_status"
	Payload any    // JSON-serialisable payload (fixed-point, struct, etc.)
	TsMs    int64  // producer timestamp
}

// Sample is a batch of readings collected together.
type Sample []Reading

// CapInfo describes one capability's retained info document.
type CapInfo struct {
	Kind string // capability kind
	Info types.Info
}

// Adaptor owns a concrete device/driver and exposes generic hooks.
// Adaptors must NOT touch the bus or spawn goroutines.
type Adaptor interface {
	ID() string
	// Static capability descriptions (published as retained).
	Capabilities() []CapInfo
	// Trigger a measurement and return suggested wait until Collect.
	Trigger(ctx context.Context) (collectAfter time.Duration, err error)
	// Collect attempts to fetch a measurement batch; may return ErrNotReady.
	Collect(ctx context.Context) (Sample, error)
	// Optional pass-through control for driver-specific methods.
	// Return (nil, ErrUnsupported) if not implemented for a method/kind.
	Control(kind, method string, payload any) (result any, err error)
}

// WorkerConfig centralises timings and limits.
type WorkerConfig struct {
	TriggerTimeout time.Duration
	CollectTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	InputQueueSize int
}

// MeasureReq asks the worker to trigger/collect for a given adaptor.
type MeasureReq struct {
	ID      string
	Adaptor Adaptor
	Prio    bool // true for read_now
}

// Result emitted by the worker.
type Result struct {
	ID     string
	Sample Sample
	Err    error
}

// ErrNotReady signals the worker to retry Collect after backoff.
var ErrNotReady = errNotReady{}

type errNotReady struct{}

func (errNotReady) Error() string { return "not ready" }

// ErrUnsupported for adaptor Control pass-through.
var ErrUnsupported = errUnsupported{}

type errUnsupported struct{}

func (errUnsupported) Error() string { return "unsupported" }

// ---- Platform abstractions (defined in internal/halcore, re-exported) ----

type (
	I2CBusFactory = halcore.I2CBusFactory
	Pull          = halcore.Pull
	Edge          = halcore.Edge
	GPIOPin       = halcore.GPIOPin
	IRQPin        = halcore.IRQPin
	PinFactory    = halcore.PinFactory
)

const (
	PullNone = halcore.PullNone
	PullUp   = halcore.PullUp
	PullDown = halcore.PullDown

	EdgeNone    = halcore.EdgeNone
	EdgeRising  = halcore.EdgeRising
	EdgeFalling = halcore.EdgeFalling
	EdgeBoth    = halcore.EdgeBoth
)
