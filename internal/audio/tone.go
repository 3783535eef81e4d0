package audio

import (
	"context"
	"math"
	"sync"
)

// ToneSource is a synthetic Source producing an 8-bit sine whose level can be
// changed while streaming. It stands in for a microphone in simulations and
// tests.
type ToneSource struct {
	mu        sync.Mutex
	level     float64
	frequency float64
	rate      float64
	err       error
	acquired  int
}

// NewToneSource creates a tone generator at the given frequency and sample
// rate.
func NewToneSource(frequency float64, sampleRate uint32) *ToneSource {
	return &ToneSource{
		frequency: frequency,
		rate:      float64(sampleRate),
	}
}

// SetLevel sets the peak level in [0,1]
func (t *ToneSource) SetLevel(level float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.level = math.Max(0, math.Min(1, level))
}

// FailWith makes subsequent Acquire calls return err. Pass nil to recover.
func (t *ToneSource) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Acquired returns how many streams have been handed out
func (t *ToneSource) Acquired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acquired
}

// Acquire implements Source
func (t *ToneSource) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	t.acquired++
	return &toneStream{source: t}, nil
}

type toneStream struct {
	source *ToneSource
	phase  float64
}

func (s *toneStream) TimeDomain(dst []byte) int {
	s.source.mu.Lock()
	level, freq, rate := s.source.level, s.source.frequency, s.source.rate
	s.source.mu.Unlock()

	step := 2 * math.Pi * freq / rate
	for i := range dst {
		v := 128 + 127*level*math.Sin(s.phase)
		dst[i] = byte(math.Round(v))
		s.phase += step
	}
	s.phase = math.Mod(s.phase, 2*math.Pi)
	return len(dst)
}

func (s *toneStream) BitDepth() int {
	return 8
}

func (s *toneStream) Close() error {
	return nil
}
