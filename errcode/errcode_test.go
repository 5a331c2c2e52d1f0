package errcode

import (
	"errors"
	"testing"

	"envnode-go/drivers/hdc2080"
)

func TestOf(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil must map to OK")
	}
	if Of(Busy) != Busy {
		t.Fatal("a bare Code must pass through")
	}
	wrapped := &E{C: UnknownBus, Err: errors.New("no such bus")}
	if Of(wrapped) != UnknownBus {
		t.Fatal("coder wrapper must yield its code")
	}
	if Of(errors.New("anything")) != Error {
		t.Fatal("unknown errors must fall back to Error")
	}
}

func TestMapDriverErr(t *testing.T) {
	cause := errors.New("nack")
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{hdc2080.ErrInvalidInput, InvalidParams},
		{hdc2080.ErrNotReady, NotReady},
		{hdc2080.ErrTimeout, Timeout},
		{hdc2080.BusError[error]{Cause: cause}, I2CError},
		{errors.New("misc"), Error},
	}
	for _, c := range cases {
		if got := MapDriverErr(c.err); got != c.want {
			t.Errorf("MapDriverErr(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
