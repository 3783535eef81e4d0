// Package lipsync drives mouth animation on a rigged avatar from either a
// procedural viseme scheduler or a live microphone envelope.
package lipsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/metrics"
	"github.com/normanking/cortexlipsync/internal/motion"
	"github.com/normanking/cortexlipsync/internal/rig"
	"github.com/normanking/cortexlipsync/internal/viseme"
	"github.com/rs/zerolog"
)

var ErrDisposed = errors.New("engine disposed")

// SpeakingProxy stands in for amplitude while the scheduler drives speech.
const SpeakingProxy = 0.55

// Driver names the source of the mouth target on a given tick
type Driver string

const (
	DriverNone      Driver = "none"
	DriverScheduler Driver = "scheduler"
	DriverAudio     Driver = "audio"
)

// Option configures an Engine
type Option func(*Engine)

// WithRand injects the random source used by the scheduler and the idle
// noise.
func WithRand(r Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithPatterns replaces the pattern library, bypassing patterns_file.
func WithPatterns(patterns []Pattern) Option {
	return func(e *Engine) {
		e.patterns = patterns
	}
}

// Snapshot is a read-only view of one engine frame.
type Snapshot struct {
	EngineID  string       `json:"engine_id"`
	Time      float64      `json:"t"`
	State     State        `json:"state"`
	Tier      string       `json:"tier"`
	Driver    Driver       `json:"driver"`
	Capture   string       `json:"capture"`
	Amplitude float32      `json:"amplitude"`
	Target    viseme.Frame `json:"target"`
	Visemes   viseme.Frame `json:"visemes"`
	Jaw       float32      `json:"jaw"`
	Head      mgl32.Vec3   `json:"head"`
	Torso     mgl32.Vec3   `json:"torso"`
	Glow      float32      `json:"glow"`
	Gesturing bool         `json:"gesturing"`
}

// Engine owns the full pipeline for one avatar. Tick, SetState and Snapshot
// are safe to call from different goroutines; the pipeline itself only moves
// inside Tick.
type Engine struct {
	id       string
	config   Config
	logger   zerolog.Logger
	eventBus *bus.EventBus

	rng      Rand
	patterns []Pattern

	capability *rig.Capability
	capture    *audio.Capture
	extractor  *audio.Extractor
	scheduler  *Scheduler
	blender    *Blender
	applier    *Applier
	motion     *motion.Layer

	mu        sync.Mutex
	state     State
	driver    Driver
	now       time.Duration
	amplitude float32
	target    viseme.Frame
	capturing bool
	disposed  bool
}

// NewEngine resolves the rig and builds the pipeline. A nil source leaves
// microphone capture disabled; a rig with no controls yields a silent but
// otherwise working engine.
func NewEngine(config Config, riggable rig.Riggable, source audio.Source, eventBus *bus.EventBus, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		id:       uuid.NewString(),
		config:   config,
		eventBus: eventBus,
		state:    StateIdle,
		driver:   DriverNone,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.With().Str("component", "lipsync").Str("engine_id", e.id).Logger()

	if e.patterns == nil {
		if config.PatternsFile != "" {
			patterns, err := LoadPatterns(config.PatternsFile)
			if err != nil {
				return nil, err
			}
			e.patterns = patterns
		} else {
			e.patterns = DefaultPatterns()
		}
	}
	if e.rng == nil {
		seed := config.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		e.rng = NewRand(seed)
	}

	scheduler, err := NewScheduler(e.patterns, e.rng)
	if err != nil {
		return nil, err
	}
	e.scheduler = scheduler

	e.capability = rig.Resolve(riggable, rig.NewMatcher(config.MouthMorphCandidates, config.JawBoneNames))
	e.capture = audio.NewCapture(source, eventBus, e.logger)
	e.extractor = audio.NewExtractor(config.MicSmoothing, config.MicGain, config.AnalyserBytes)
	e.blender = NewBlender(config.MorphSmoothing)
	e.applier = NewApplier(e.capability, config.BoneSmoothing, config.JawScale)
	e.motion = motion.NewLayer(e.capability, motion.Config{
		HeadIntensity:   config.HeadIntensity,
		TorsoIntensity:  config.TorsoIntensity,
		GestureCooldown: config.GestureCooldown,
	}, e.rng.Float64)

	tier := e.capability.Tier()
	metrics.SetTier(tier.String(), rig.TierNone.String(), rig.TierJawBone.String(), rig.TierFullViseme.String())

	logEvent := e.logger.Info().
		Str("tier", tier.String()).
		Int("slots", len(e.capability.Slots())).
		Int("canonical", e.capability.CanonicalCount())
	if jaw := e.capability.Jaw(); jaw != nil {
		logEvent = logEvent.Str("jaw", jaw.Name)
	}
	logEvent.Msg("Rig resolved")
	if tier == rig.TierNone {
		e.logger.Warn().Msg("Rig has no mouth controls, mouth output disabled")
	}

	e.eventBus.Publish(bus.Event{
		Type: bus.EventTypeRigResolved,
		Data: map[string]any{
			"engine_id": e.id,
			"tier":      tier.String(),
			"slots":     len(e.capability.Slots()),
		},
	})

	return e, nil
}

func (e *Engine) ID() string {
	return e.id
}

// Capability returns the resolved rig capability
func (e *Engine) Capability() *rig.Capability {
	return e.capability
}

// Tick advances the pipeline by dt. It never fails; after Dispose it does
// nothing.
func (e *Engine) Tick(dt time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return
	}
	if dt < 0 {
		dt = 0
	}
	started := time.Now()
	e.now += dt

	capturing := e.capture.Active()
	if e.capturing && !capturing {
		e.extractor.Reset()
		e.motion.ResetOnset()
	}
	e.capturing = capturing

	wantScheduler := e.state == StateSpeaking && !capturing
	if wantScheduler && !e.scheduler.Running() {
		e.scheduler.Start()
	} else if !wantScheduler && e.scheduler.Running() {
		e.scheduler.Stop()
	}

	var target viseme.Frame
	var speak float32
	e.scheduler.Tick(dt, &target)

	switch {
	case capturing:
		e.amplitude = e.extractor.Poll(e.capture.Analyser())
		target.Reset()
		target.Set(viseme.AA, e.amplitude)
		speak = e.amplitude
		e.driver = DriverAudio
	case wantScheduler:
		e.amplitude = 0
		speak = SpeakingProxy
		e.driver = DriverScheduler
	default:
		e.amplitude = 0
		e.driver = DriverNone
	}

	current := e.blender.Blend(&target)
	e.applier.Apply(current, &target)
	e.target = target

	if e.motion.Update(dt, motion.Input{SpeakIntensity: speak, GlowTarget: e.state.Glow()}) {
		metrics.Gestures.Inc()
		e.logger.Debug().Msg("Nod gesture")
		e.eventBus.Publish(bus.Event{
			Type: bus.EventTypeGesture,
			Data: map[string]any{"engine_id": e.id, "kind": "nod"},
		})
	}

	metrics.Ticks.Inc()
	metrics.Amplitude.Set(float64(e.amplitude))
	metrics.Glow.Set(float64(e.motion.Glow()))
	metrics.TickDuration.Observe(time.Since(started).Seconds())
}

// SetState switches the animation state. Any known state may follow any
// other; only unknown values are rejected.
func (e *Engine) SetState(state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownState, state)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	prev := e.state
	if prev == state {
		return nil
	}
	e.state = state

	metrics.StateTransitions.WithLabelValues(string(prev), string(state)).Inc()
	e.logger.Info().Str("from", string(prev)).Str("to", string(state)).Msg("State transition")
	e.eventBus.Publish(bus.Event{
		Type: bus.EventTypeStateChanged,
		Data: map[string]any{"engine_id": e.id, "from": string(prev), "to": string(state)},
	})
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StartCapture opens the microphone. It may block until permission is
// granted and returns early when ctx is cancelled or StopCapture is called.
// While a start is pending or capture is live it returns nil immediately.
func (e *Engine) StartCapture(ctx context.Context) error {
	e.mu.Lock()
	disposed := e.disposed
	e.mu.Unlock()
	if disposed {
		return ErrDisposed
	}

	acquired, err := e.capture.Acquire(ctx)
	switch {
	case err == nil:
		if acquired {
			metrics.CaptureStarts.WithLabelValues("ok").Inc()
		}
		return nil
	case errors.Is(err, audio.ErrCaptureCancelled):
		return err
	case errors.Is(err, audio.ErrContextInit):
		metrics.CaptureStarts.WithLabelValues("disabled").Inc()
		return fmt.Errorf("%w: %w", audio.ErrCaptureDisabled, err)
	case errors.Is(err, audio.ErrCaptureClosed):
		return ErrDisposed
	default:
		metrics.CaptureStarts.WithLabelValues("failed").Inc()
		return fmt.Errorf("start capture: %w", err)
	}
}

// StopCapture releases the microphone and drops the amplitude to zero. The
// mouth relaxes through the blender. Safe to call at any time.
func (e *Engine) StopCapture() {
	e.capture.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.extractor.Reset()
	e.motion.ResetOnset()
	e.amplitude = 0
	e.capturing = false
}

// Dispose releases the capture device and hands the rig back at rest pose.
// Subsequent calls return ErrDisposed.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.disposed = true

	e.capture.Close()
	e.scheduler.Stop()
	e.applier.Detach()
	e.motion.Detach()
	e.blender.Reset()
	e.amplitude = 0
	e.target.Reset()

	e.logger.Info().Msg("Engine disposed")
	e.eventBus.Publish(bus.Event{
		Type: bus.EventTypeEngineDisposed,
		Data: map[string]any{"engine_id": e.id},
	})
	return nil
}

// Snapshot returns the state of the most recent tick.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		EngineID:  e.id,
		Time:      e.now.Seconds(),
		State:     e.state,
		Tier:      e.capability.Tier().String(),
		Driver:    e.driver,
		Capture:   string(e.capture.State()),
		Amplitude: e.amplitude,
		Target:    e.target,
		Visemes:   e.blender.Current(),
		Jaw:       e.applier.Jaw(),
		Head:      e.motion.HeadOffset(),
		Torso:     e.motion.TorsoOffset(),
		Glow:      e.motion.Glow(),
		Gesturing: e.motion.Gesturing(),
	}
}
