package lipsync

import "github.com/normanking/cortexlipsync/internal/viseme"

// Epsilon is the snap threshold. A channel within Epsilon of its target lands
// on the target, and a value below Epsilon lands on 0. Either snap can move a
// channel up to Epsilon further than the smoothing step alone.
const Epsilon = 1e-3

// Blender eases the current frame toward the target by a fixed fraction per
// tick.
type Blender struct {
	smoothing float32
	current   viseme.Frame
}

func NewBlender(smoothing float32) *Blender {
	return &Blender{smoothing: viseme.Clamp(smoothing, 0, 1)}
}

// Blend moves every channel toward target and returns the new current frame.
func (b *Blender) Blend(target *viseme.Frame) *viseme.Frame {
	for i := range b.current {
		t := viseme.Clamp(target[i], 0, 1)
		c := b.current[i] + (t-b.current[i])*b.smoothing
		if abs32(t-c) < Epsilon {
			c = t
		}
		if c < Epsilon {
			c = 0
		}
		b.current[i] = viseme.Clamp(c, 0, 1)
	}
	return &b.current
}

// Current returns a copy of the current frame
func (b *Blender) Current() viseme.Frame {
	return b.current
}

func (b *Blender) Reset() {
	b.current.Reset()
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
