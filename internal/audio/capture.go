package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/rs/zerolog"
)

// CaptureState is the lifecycle position of a Capture
type CaptureState string

const (
	CaptureIdle     CaptureState = "idle"
	CapturePending  CaptureState = "pending"
	CaptureActive   CaptureState = "active"
	CaptureDisabled CaptureState = "disabled"
	CaptureClosed   CaptureState = "closed"
)

// Capture owns at most one live stream from a Source. Start and Stop are
// idempotent; a start that is pending or active is never duplicated.
type Capture struct {
	source   Source
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu     sync.Mutex
	state  CaptureState
	stream Stream
	cancel context.CancelFunc
	gen    uint64
}

// NewCapture creates a capture bound to source. A nil source leaves capture
// permanently disabled.
func NewCapture(source Source, eventBus *bus.EventBus, logger zerolog.Logger) *Capture {
	state := CaptureIdle
	if source == nil {
		state = CaptureDisabled
	}
	return &Capture{
		source:   source,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "capture").Logger(),
		state:    state,
	}
}

// Start acquires a stream. It blocks until the source grants or refuses the
// device, ctx is cancelled, or Stop is called. Calling Start while a start is
// pending or a stream is active returns nil without touching the device.
func (c *Capture) Start(ctx context.Context) error {
	_, err := c.Acquire(ctx)
	return err
}

// Acquire is Start that also reports whether this call opened the device.
// It returns false with a nil error when a start was already pending or a
// stream was already active.
func (c *Capture) Acquire(ctx context.Context) (bool, error) {
	c.mu.Lock()
	switch c.state {
	case CapturePending, CaptureActive:
		c.mu.Unlock()
		return false, nil
	case CaptureDisabled:
		c.mu.Unlock()
		return false, ErrCaptureDisabled
	case CaptureClosed:
		c.mu.Unlock()
		return false, ErrCaptureClosed
	}
	c.state = CapturePending
	c.gen++
	gen := c.gen
	acquireCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Debug().Msg("Requesting capture device")
	stream, err := c.source.Acquire(acquireCtx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != CapturePending {
		// Stopped or closed while pending; whatever was acquired is released.
		cancel()
		if stream != nil {
			_ = stream.Close()
		}
		c.logger.Debug().Msg("Capture start cancelled")
		return false, ErrCaptureCancelled
	}

	if err == nil && stream == nil {
		err = ErrDeviceUnavailable
	}
	if err != nil {
		cancel()
		c.cancel = nil
		c.state = CaptureIdle
		eventType := bus.EventTypeCaptureFailed
		if errors.Is(err, ErrContextInit) {
			c.state = CaptureDisabled
			eventType = bus.EventTypeCaptureDisabled
		} else if ctxErr := acquireCtx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = errors.Join(ErrCaptureCancelled, err)
		}
		c.logger.Warn().Err(err).Str("state", string(c.state)).Msg("Capture start failed")
		c.eventBus.Publish(bus.Event{
			Type: eventType,
			Data: map[string]any{"error": err.Error()},
		})
		return false, err
	}

	c.stream = stream
	c.state = CaptureActive
	c.logger.Info().Int("bit_depth", stream.BitDepth()).Msg("Capture started")
	c.eventBus.Publish(bus.Event{Type: bus.EventTypeCaptureStarted})
	return true, nil
}

// Stop releases the active stream or abandons a pending start. It is a no-op
// when nothing is running.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(CaptureIdle)
}

// Close stops capture for good; later Starts return ErrCaptureClosed.
func (c *Capture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(CaptureClosed)
}

func (c *Capture) stopLocked(next CaptureState) {
	wasRunning := c.state == CapturePending || c.state == CaptureActive

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close capture stream")
		}
		c.stream = nil
	}

	switch {
	case next == CaptureClosed:
		c.state = CaptureClosed
	case wasRunning:
		c.state = CaptureIdle
	}
	if wasRunning {
		c.gen++
		c.logger.Info().Msg("Capture stopped")
		c.eventBus.Publish(bus.Event{Type: bus.EventTypeCaptureStopped})
	}
}

// State returns the current capture state
func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether a stream is delivering data
func (c *Capture) Active() bool {
	return c.State() == CaptureActive
}

// Analyser returns a poll-only view of the active stream, or nil.
func (c *Capture) Analyser() Analyser {
	if !c.Active() {
		return nil
	}
	return captureAnalyser{c}
}

type captureAnalyser struct{ c *Capture }

func (a captureAnalyser) TimeDomain(dst []byte) int {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	if a.c.stream == nil {
		return 0
	}
	return a.c.stream.TimeDomain(dst)
}

func (a captureAnalyser) BitDepth() int {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	if a.c.stream == nil {
		return 8
	}
	return a.c.stream.BitDepth()
}
