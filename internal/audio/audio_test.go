package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRMS(t *testing.T) {
	silence8 := make([]byte, 256)
	for i := range silence8 {
		silence8[i] = 128
	}
	full8 := make([]byte, 256)
	for i := range full8 {
		if i%2 == 0 {
			full8[i] = 0
		} else {
			full8[i] = 255
		}
	}
	half16 := make([]byte, 64)
	for i := 0; i < len(half16); i += 2 {
		binary.LittleEndian.PutUint16(half16[i:], uint16(int16(16384)))
	}
	quarter32 := make([]byte, 64)
	for i := 0; i < len(quarter32); i += 4 {
		binary.LittleEndian.PutUint32(quarter32[i:], math.Float32bits(-0.25))
	}

	tests := []struct {
		name     string
		data     []byte
		bitDepth int
		want     float64
		delta    float64
	}{
		{"empty", nil, 8, 0, 0},
		{"8-bit silence", silence8, 8, 0, 1e-9},
		{"8-bit full swing", full8, 8, 1, 0.01},
		{"16-bit half scale", half16, 16, 0.5, 1e-6},
		{"32-bit float", quarter32, 32, 0.25, 1e-6},
		{"odd trailing byte ignored", []byte{0, 0x40, 0x7f}, 16, 0.5, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateRMS(tt.data, tt.bitDepth), tt.delta)
		})
	}
}

type fixedAnalyser struct {
	data     []byte
	bitDepth int
}

func (f fixedAnalyser) TimeDomain(dst []byte) int { return copy(dst, f.data) }
func (f fixedAnalyser) BitDepth() int            { return f.bitDepth }

func TestExtractorSmoothingAndClamp(t *testing.T) {
	loud := make([]byte, 128)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 0
		} else {
			loud[i] = 255
		}
	}

	e := NewExtractor(0.3, 1.5, len(loud))

	first := e.Poll(fixedAnalyser{data: loud, bitDepth: 8})
	// smoothed ≈ 0.3, scaled by 1.5*4 then clamped
	assert.Equal(t, float32(1), first)

	for i := 0; i < 100; i++ {
		e.Poll(fixedAnalyser{data: loud, bitDepth: 8})
	}
	assert.Equal(t, float32(1), e.Amplitude(), "amplitude never exceeds 1")

	e.Reset()
	assert.Equal(t, float32(0), e.Amplitude())
	assert.Equal(t, float32(0), e.Poll(nil), "nil analyser is silence")
}

func TestExtractorDecaysOnSilence(t *testing.T) {
	e := NewExtractor(0.5, 1, 64)
	quiet := make([]byte, 64)
	for i := range quiet {
		quiet[i] = 128 + byte(8*(i%2))
	}
	a := e.Process(quiet, 8)
	require.Greater(t, a, float32(0))

	prev := a
	for i := 0; i < 10; i++ {
		next := e.Process(nil, 8)
		assert.Less(t, next, prev)
		prev = next
	}
}

func TestOnsetDetector(t *testing.T) {
	d := NewOnsetDetector(&OnsetConfig{StartThreshold: 0.3, StopThreshold: 0.1, StartFrames: 2, StopFrames: 2})

	assert.False(t, d.Process(0.5))
	assert.True(t, d.Process(0.5), "onset after StartFrames loud frames")
	assert.False(t, d.Process(0.5), "no repeated onset while active")
	assert.True(t, d.IsActive())

	d.Process(0.05)
	d.Process(0.05)
	assert.False(t, d.IsActive())

	d.Process(0.5)
	d.Reset()
	assert.False(t, d.Process(0.5), "reset clears the speech count")
}

func TestLatestBufferKeepsNewestBytes(t *testing.T) {
	lb := NewLatestBuffer(4)
	lb.Write([]byte{1, 2})
	lb.Write([]byte{3, 4, 5})

	dst := make([]byte, 8)
	n := lb.Snapshot(dst)
	assert.Equal(t, []byte{2, 3, 4, 5}, dst[:n])

	lb.Write([]byte{6, 7, 8, 9, 10})
	n = lb.Snapshot(dst)
	assert.Equal(t, []byte{7, 8, 9, 10}, dst[:n])

	lb.Reset()
	assert.Equal(t, 0, lb.Len())
}

// blockingSource holds Acquire until released, simulating a pending grant.
type blockingSource struct {
	mu       sync.Mutex
	release  chan struct{}
	calls    int
	closed   int
	acquired chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{release: make(chan struct{}), acquired: make(chan struct{}, 8)}
}

func (b *blockingSource) Acquire(ctx context.Context) (Stream, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.acquired <- struct{}{}

	select {
	case <-b.release:
		return &countingStream{src: b}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingSource) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type countingStream struct{ src *blockingSource }

func (c *countingStream) TimeDomain(dst []byte) int { return 0 }
func (c *countingStream) BitDepth() int            { return 8 }
func (c *countingStream) Close() error {
	c.src.mu.Lock()
	c.src.closed++
	c.src.mu.Unlock()
	return nil
}

func TestCaptureStartIsIdempotent(t *testing.T) {
	src := NewToneSource(220, 16000)
	c := NewCapture(src, bus.NewEventBus(), zerolog.Nop())

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 1, src.Acquired())
	assert.True(t, c.Active())
	assert.NotNil(t, c.Analyser())

	c.Stop()
	c.Stop()
	assert.Equal(t, CaptureIdle, c.State())
	assert.Nil(t, c.Analyser())
}

func TestCaptureStartWhilePendingDoesNotReacquire(t *testing.T) {
	src := newBlockingSource()
	c := NewCapture(src, nil, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()
	<-src.acquired

	assert.Equal(t, CapturePending, c.State())
	assert.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 1, src.Calls())

	close(src.release)
	require.NoError(t, <-errCh)
	assert.True(t, c.Active())
}

func TestCaptureAcquireReportsOnlyTheOpeningCall(t *testing.T) {
	src := NewToneSource(220, 16000)
	c := NewCapture(src, nil, zerolog.Nop())

	acquired, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = c.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, acquired, "already active")
	assert.Equal(t, 1, src.Acquired())

	c.Stop()
	acquired, err = c.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestCaptureStopWhilePendingReleasesLateStream(t *testing.T) {
	src := newBlockingSource()
	c := NewCapture(src, nil, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()
	<-src.acquired

	c.Stop()
	err := <-errCh
	assert.ErrorIs(t, err, ErrCaptureCancelled)
	assert.Equal(t, CaptureIdle, c.State())
	assert.False(t, c.Active())
}

func TestCaptureContextInitDisablesForever(t *testing.T) {
	src := NewToneSource(220, 16000)
	src.FailWith(ErrContextInit)

	b := bus.NewEventBus()
	disabled := make(chan struct{}, 1)
	b.Subscribe(bus.EventTypeCaptureDisabled, func(bus.Event) { disabled <- struct{}{} })

	c := NewCapture(src, b, zerolog.Nop())
	assert.ErrorIs(t, c.Start(context.Background()), ErrContextInit)
	assert.Equal(t, CaptureDisabled, c.State())

	src.FailWith(nil)
	assert.ErrorIs(t, c.Start(context.Background()), ErrCaptureDisabled)
	assert.Equal(t, 0, src.Acquired())

	select {
	case <-disabled:
	case <-time.After(time.Second):
		t.Fatal("disabled event not published")
	}
}

func TestCapturePermissionDeniedAllowsRetry(t *testing.T) {
	src := NewToneSource(220, 16000)
	src.FailWith(ErrPermissionDenied)
	c := NewCapture(src, nil, zerolog.Nop())

	err := c.Start(context.Background())
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.Equal(t, CaptureIdle, c.State())

	src.FailWith(nil)
	assert.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Active())
}

func TestCaptureCloseAndNilSource(t *testing.T) {
	c := NewCapture(NewToneSource(220, 16000), nil, zerolog.Nop())
	require.NoError(t, c.Start(context.Background()))
	c.Close()
	assert.Equal(t, CaptureClosed, c.State())
	assert.ErrorIs(t, c.Start(context.Background()), ErrCaptureClosed)

	none := NewCapture(nil, nil, zerolog.Nop())
	assert.ErrorIs(t, none.Start(context.Background()), ErrCaptureDisabled)
}

func TestToneStreamFeedsExtractor(t *testing.T) {
	src := NewToneSource(440, 16000)
	src.SetLevel(0.5)
	stream, err := src.Acquire(context.Background())
	require.NoError(t, err)

	e := NewExtractor(1, 1, 1024)
	amp := e.Poll(stream)
	// RMS of a sine at half scale is 0.5/sqrt(2), times 4
	assert.InDelta(t, 1.0, amp, 1e-6)

	src.SetLevel(0.05)
	amp = e.Poll(stream)
	assert.InDelta(t, 4*0.05/math.Sqrt2, amp, 0.02)
}
