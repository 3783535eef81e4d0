// Package audio provides microphone capture and amplitude extraction for the
// lip-sync engine.
package audio

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrContextInit       = errors.New("audio context initialization failed")
	ErrCaptureDisabled   = errors.New("capture disabled")
	ErrCaptureCancelled  = errors.New("capture start cancelled")
	ErrCaptureClosed     = errors.New("capture closed")
)

// Analyser exposes the most recent time-domain buffer of a live stream.
type Analyser interface {
	// TimeDomain copies the latest samples into dst and returns the number of
	// bytes written. It never blocks; 0 means no data yet.
	TimeDomain(dst []byte) int

	// BitDepth is the sample width of the data returned by TimeDomain:
	// 8 (unsigned, centered on 128), 16 (signed) or 32 (float).
	BitDepth() int
}

// Stream is an acquired capture device.
type Stream interface {
	Analyser
	Close() error
}

// Source acquires capture streams. Acquire may block while a permission grant
// is pending and must honour ctx cancellation.
type Source interface {
	Acquire(ctx context.Context) (Stream, error)
}

// CaptureConfig holds capture device configuration
type CaptureConfig struct {
	DeviceName   string `mapstructure:"device_name"`   // Substring of the device name, empty = default
	SampleRate   uint32 `mapstructure:"sample_rate"`   // Default: 16000 Hz
	Channels     uint32 `mapstructure:"channels"`      // Default: 1 (mono)
	BufferFrames uint32 `mapstructure:"buffer_frames"` // Analyser window in frames, default 1024
}

// DefaultCaptureConfig returns sensible defaults
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DeviceName:   "",
		SampleRate:   16000,
		Channels:     1,
		BufferFrames: 1024,
	}
}
