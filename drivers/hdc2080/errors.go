package hdc2080

import "errors"

// Errors returned by the driver.
var (
	// ErrInvalidInput reports caller-supplied configuration or data the
	// driver cannot accept; the bus is never touched in that case.
	ErrInvalidInput = errors.New("hdc2080: invalid input data")
	// ErrNotReady reports no completed conversion is available yet.
	ErrNotReady = errors.New("hdc2080: not ready")
	// ErrTimeout reports a bounded Read exceeded its collect timeout.
	ErrTimeout = errors.New("hdc2080: timeout")
)

// BusError wraps an underlying I2C transport error. The cause is carried
// unchanged and remains reachable through Unwrap, so callers can classify
// with errors.Is/errors.As against their transport's error values.
type BusError[E error] struct {
	Cause E
}

func (e BusError[E]) Error() string { return "hdc2080: bus error: " + e.Cause.Error() }
func (e BusError[E]) Unwrap() error { return e.Cause }

// wrapBus classifies a transport failure. nil stays nil.
func wrapBus(err error) error {
	if err == nil {
		return nil
	}
	return BusError[error]{Cause: err}
}
