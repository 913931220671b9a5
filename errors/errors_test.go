package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.class.String())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connect timeout", ErrConnectTimeout, true},
		{"scan timeout", ErrScanTimeout, true},
		{"lock timeout", ErrLockTimeout, true},
		{"grabber not ready", ErrGrabberNotReady, true},
		{"device busy", ErrDeviceBusy, true},
		{"device disposed", ErrDeviceDisposed, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped transient", fmt.Errorf("tick: %w", ErrDeviceBusy), true},
		{"access violation message", stderrors.New("access violation reading device memory"), true},
		{"unsupported format", ErrUnsupportedFormat, false},
		{"plain error", stderrors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(ErrUnsupportedFormat))
	assert.True(t, IsFatal(WrapFatal(stderrors.New("boom"), "session", "Connect", "construct camera")))
	assert.False(t, IsFatal(ErrDeviceBusy))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(nil))
	assert.Equal(t, ErrorTransient, Classify(ErrDeviceBusy))
	assert.Equal(t, ErrorFatal, Classify(ErrUnsupportedFormat))
	assert.Equal(t, ErrorInvalid, Classify(ErrDeviceNotFound))
	// Unknown errors default to transient so they stay retryable
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("mystery")))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "session", "Connect", "resolve"))

	base := stderrors.New("device unreachable")
	err := Wrap(base, "session", "Connect", "resolve")
	require.Error(t, err)
	assert.Equal(t, "session.Connect: resolve failed: device unreachable", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestWrapClassified(t *testing.T) {
	base := ErrGrabberNotReady

	err := WrapTransient(base, "bridge", "onImageInitialized", "fetch frame")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, ErrGrabberNotReady)

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, "bridge", ce.Component)
	assert.Equal(t, "onImageInitialized", ce.Operation)

	assert.NoError(t, WrapTransient(nil, "a", "b", "c"))
	assert.NoError(t, WrapFatal(nil, "a", "b", "c"))
	assert.NoError(t, WrapInvalid(nil, "a", "b", "c"))
}
