package lipsync

import (
	"math"
	"math/rand"
	"time"

	"github.com/normanking/cortexlipsync/internal/viseme"
)

// Rand is the random source used to pick patterns and vary intensity.
// *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// NewRand returns a deterministic generator for seed
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

const (
	baseIntensity   = 0.6
	intensityJitter = 0.35
	// Consonants keep the jaw slightly open.
	consonantOpenness = 0.2
)

// Scheduler plays random speech patterns into a target frame while the
// avatar speaks without a live signal. It keeps its own time as the sum of
// tick deltas.
type Scheduler struct {
	patterns []Pattern
	rng      Rand

	running   bool
	active    int
	step      int
	now       time.Duration
	stepStart time.Duration
}

// NewScheduler validates the library and binds the random source. A nil rng
// falls back to a time-seeded generator.
func NewScheduler(patterns []Pattern, rng Rand) (*Scheduler, error) {
	if err := ValidatePatterns(patterns); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(time.Now().UnixNano())
	}
	lib := make([]Pattern, len(patterns))
	copy(lib, patterns)
	return &Scheduler{patterns: lib, rng: rng}, nil
}

// Start begins a fresh random pattern at step 0. Starting a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.pick()
}

// Stop halts playback; the next Tick writes a zero target.
func (s *Scheduler) Stop() {
	s.running = false
}

func (s *Scheduler) Running() bool {
	return s.running
}

func (s *Scheduler) pick() {
	idx := s.rng.Intn(len(s.patterns))
	if idx < 0 || idx >= len(s.patterns) {
		idx = 0
	}
	s.active = idx
	s.step = 0
	s.stepStart = s.now
}

// Tick advances time by dt and writes the target frame for this instant.
func (s *Scheduler) Tick(dt time.Duration, target *viseme.Frame) {
	if dt > 0 {
		s.now += dt
	}
	target.Reset()
	if !s.running {
		return
	}

	step := s.patterns[s.active].Steps[s.step]
	elapsed := s.now - s.stepStart
	progress := float64(elapsed) / float64(step.Duration)
	progress = math.Max(0, math.Min(1, progress))

	intensity := float32(math.Sin(progress*math.Pi) * (baseIntensity + s.rng.Float64()*intensityJitter))
	target.Set(step.Viseme, intensity)
	if step.Viseme != viseme.Sil && step.Viseme != viseme.AA {
		target.Set(viseme.AA, intensity*consonantOpenness)
	}

	if elapsed >= step.Duration {
		s.step++
		if s.step >= len(s.patterns[s.active].Steps) {
			s.pick()
		}
		s.stepStart = s.now
	}
}

// Position reports the active pattern and step, for diagnostics.
func (s *Scheduler) Position() (pattern string, step int) {
	return s.patterns[s.active].Name, s.step
}
