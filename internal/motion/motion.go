// Package motion layers secondary head/torso movement, speech gestures and
// an ambient glow on top of the mouth animation.
package motion

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/normanking/cortexlipsync/internal/rig"
)

// Config holds micro-motion tuning
type Config struct {
	HeadIntensity   float32
	TorsoIntensity  float32
	GestureCooldown time.Duration
	Onset           *audio.OnsetConfig
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		HeadIntensity:   1.0,
		TorsoIntensity:  0.5,
		GestureCooldown: 2 * time.Second,
	}
}

// Input is what the layer needs from the mouth pipeline each tick.
type Input struct {
	SpeakIntensity float32
	GlowTarget     float32
}

const (
	idleSwayRate      = 0.1
	idleSwayAmplitude = 0.015

	speechHeadAmplitude  = 0.04
	speechTorsoAmplitude = 0.02
	offsetResponse       = 8.0
	glowResponse         = 4.0

	nodDuration  = 600 * time.Millisecond
	nodAmplitude = 0.08
)

// Layer owns the head and torso bones. It never touches the jaw.
type Layer struct {
	config Config
	head   *rig.BoneRef
	torso  *rig.BoneRef

	time         float32
	now          time.Duration
	noiseOffsets [6]float32

	headOffset  mgl32.Vec3
	torsoOffset mgl32.Vec3
	glow        float32

	onset       *audio.OnsetDetector
	nodStart    time.Duration
	nodActive   bool
	lastGesture time.Duration
	hasGestured bool
	detached    bool
}

// NewLayer binds the layer to the capability's head and torso bones. On a
// jaw-bone rig a bone that is also the jaw control is left alone. phase seeds
// the idle noise.
func NewLayer(capability *rig.Capability, config Config, phase func() float64) *Layer {
	l := &Layer{
		config: config,
		onset:  audio.NewOnsetDetector(config.Onset),
	}

	var jaw *rig.BoneRef
	if capability.Tier() == rig.TierJawBone {
		jaw = capability.Jaw()
	}
	notJaw := func(b *rig.BoneRef) *rig.BoneRef {
		if b == nil || (jaw != nil && b.Name == jaw.Name) {
			return nil
		}
		return b
	}
	l.head = notJaw(capability.Head())
	l.torso = notJaw(capability.Torso())

	if phase != nil {
		for i := range l.noiseOffsets {
			l.noiseOffsets[i] = float32(phase() * 100)
		}
	}
	return l
}

// Update advances the layer by dt and writes head and torso rotations. It
// reports whether a nod gesture started on this tick.
func (l *Layer) Update(dt time.Duration, in Input) bool {
	if l.detached {
		return false
	}
	if dt < 0 {
		dt = 0
	}
	l.now += dt
	seconds := float32(dt.Seconds())
	l.time += seconds

	speak := clamp(in.SpeakIntensity, 0, 1)
	nodStarted := l.updateGesture(speak)

	headGoal := l.idleSway(1).Add(l.speechSway(speak*l.config.HeadIntensity, speechHeadAmplitude, 0))
	headGoal[0] += l.nodPitch()
	torsoGoal := l.idleSway(0.5).Add(l.speechSway(speak*l.config.TorsoIntensity, speechTorsoAmplitude, 3))

	k := response(offsetResponse, seconds)
	l.headOffset = l.headOffset.Add(headGoal.Sub(l.headOffset).Mul(k))
	l.torsoOffset = l.torsoOffset.Add(torsoGoal.Sub(l.torsoOffset).Mul(k))

	l.glow += (clamp(in.GlowTarget, 0, 1) - l.glow) * response(glowResponse, seconds)
	l.glow = clamp(l.glow, 0, 1)

	writeOffset(l.head, l.headOffset)
	writeOffset(l.torso, l.torsoOffset)
	return nodStarted
}

func (l *Layer) updateGesture(speak float32) bool {
	if l.nodActive && l.now-l.nodStart >= nodDuration {
		l.nodActive = false
	}
	if !l.onset.Process(speak) {
		return false
	}
	if l.hasGestured && l.now-l.lastGesture < l.config.GestureCooldown {
		return false
	}
	l.hasGestured = true
	l.lastGesture = l.now
	l.nodStart = l.now
	l.nodActive = true
	return true
}

func (l *Layer) nodPitch() float32 {
	if !l.nodActive {
		return 0
	}
	p := float64(l.now-l.nodStart) / float64(nodDuration)
	return float32(math.Sin(p*math.Pi)) * nodAmplitude
}

func (l *Layer) idleSway(scale float32) mgl32.Vec3 {
	amp := idleSwayAmplitude * scale
	t := l.time * idleSwayRate
	return mgl32.Vec3{
		noise(t, l.noiseOffsets[0]) * amp,
		noise(t*0.8, l.noiseOffsets[1]) * amp,
		noise(t*0.6, l.noiseOffsets[2]) * amp * 0.5,
	}
}

func (l *Layer) speechSway(intensity, amplitude, phase float32) mgl32.Vec3 {
	if intensity <= 0 {
		return mgl32.Vec3{}
	}
	t := float64(l.time)
	amp := intensity * amplitude
	return mgl32.Vec3{
		float32(math.Sin(t*2*math.Pi*1.3+float64(phase))) * amp,
		float32(math.Sin(t*2*math.Pi*0.7+float64(phase)+1)) * amp * 0.75,
		float32(math.Sin(t*2*math.Pi*0.9+float64(phase)+2)) * amp * 0.5,
	}
}

// ResetOnset forgets any speech burst in progress, e.g. when capture stops.
func (l *Layer) ResetOnset() {
	l.onset.Reset()
}

// Detach restores the rest pose of every bone the layer writes.
func (l *Layer) Detach() {
	if l.detached {
		return
	}
	l.detached = true
	for _, b := range []*rig.BoneRef{l.head, l.torso} {
		if b != nil {
			b.Bone.SetRotation(b.Bone.Rest())
		}
	}
	l.head, l.torso = nil, nil
}

func (l *Layer) HeadOffset() mgl32.Vec3  { return l.headOffset }
func (l *Layer) TorsoOffset() mgl32.Vec3 { return l.torsoOffset }
func (l *Layer) Glow() float32           { return l.glow }
func (l *Layer) Gesturing() bool         { return l.nodActive }

func writeOffset(b *rig.BoneRef, offset mgl32.Vec3) {
	if b == nil {
		return
	}
	q := mgl32.AnglesToQuat(offset[0], offset[1], offset[2], mgl32.XYZ)
	b.Bone.SetRotation(b.Bone.Rest().Mul(q))
}

// response converts a rate per second into a per-tick blend factor.
func response(rate, seconds float32) float32 {
	return 1 - float32(math.Exp(-float64(rate*seconds)))
}

func noise(t, offset float32) float32 {
	t += offset
	n1 := float32(math.Sin(float64(t)))
	n2 := float32(math.Sin(float64(t*2.3+1.7))) * 0.5
	n3 := float32(math.Sin(float64(t*4.1+3.2))) * 0.25
	return (n1 + n2 + n3) / 1.75
}

func clamp(v, lo, hi float32) float32 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
