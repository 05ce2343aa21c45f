package fault

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := NotSupported("GetProperty", "property %q", "Bogus")
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, `GetProperty: not supported: property "Bogus"`, err.Error())

	wrapped := fmt.Errorf("calling target: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotSupported)
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrConnectivity, "dial", io.EOF)
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "dial: connectivity failure: EOF", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "invalid state", err: InvalidState("SetFocus", "sheet %q", "Gone"), want: ErrInvalidState},
		{name: "bare sentinel", err: ErrNotInitialized, want: ErrNotInitialized},
		{name: "wrapped", err: fmt.Errorf("x: %w", ErrMalformedDescriptor), want: ErrMalformedDescriptor},
		{name: "foreign", err: errors.New("boom"), want: nil},
		{name: "nil", err: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
