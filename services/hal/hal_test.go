// services/hal/hal_test.go
package hal

import (
	"errors"
	"testing"

	"envnode-go/drivers/hdc2080"
	"envnode-go/errcode"
)

func TestControlErrCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want errcode.Code
	}{
		{"adaptor payload code", errcode.InvalidPayload, errcode.InvalidPayload},
		{"unknown method", ErrUnsupported, errcode.Unsupported},
		{"driver validation", hdc2080.ErrInvalidInput, errcode.InvalidParams},
		{"driver timeout", hdc2080.ErrTimeout, errcode.Timeout},
		{"opaque failure", errors.New("boom"), errcode.Error},
	}
	for _, tc := range cases {
		if got := controlErrCode(tc.err); got != tc.want {
			t.Errorf("%s: code = %q, want %q", tc.name, got, tc.want)
		}
	}
}
