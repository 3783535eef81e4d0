package lipsync

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/normanking/cortexlipsync/internal/rig"
	"github.com/normanking/cortexlipsync/internal/viseme"
)

// DefaultJawScale is the jaw rotation in radians at full openness.
const DefaultJawScale = 0.4

// Applier writes blended weights onto the rig according to its tier.
type Applier struct {
	capability    *rig.Capability
	slots         []rig.MorphSlot
	jawScale      float32
	boneSmoothing float32

	jaw      float32
	detached bool
}

// NewApplier binds an applier to a resolved capability.
func NewApplier(capability *rig.Capability, boneSmoothing, jawScale float32) *Applier {
	if jawScale <= 0 {
		jawScale = DefaultJawScale
	}
	return &Applier{
		capability:    capability,
		slots:         capability.Slots(),
		jawScale:      jawScale,
		boneSmoothing: viseme.Clamp(boneSmoothing, 0, 1),
	}
}

// Apply writes one frame. current feeds morph slots; target feeds the jaw
// bone, which carries its own smoothing.
func (a *Applier) Apply(current, target *viseme.Frame) {
	if a.detached {
		return
	}
	switch a.capability.Tier() {
	case rig.TierFullViseme:
		open := current.Get(viseme.AA)
		for _, slot := range a.slots {
			w := open
			if !slot.Heuristic {
				w = current.Get(slot.Viseme)
			}
			slot.Mesh.SetInfluence(slot.Channel, w)
		}
	case rig.TierJawBone:
		jawBone := a.capability.Jaw()
		goal := target.Openness() * a.jawScale
		a.jaw += (goal - a.jaw) * a.boneSmoothing
		if a.jaw < Epsilon*a.jawScale {
			a.jaw = 0
		}
		jawBone.Bone.SetRotation(jawBone.Bone.Rest().Mul(mgl32.QuatRotate(a.jaw, mgl32.Vec3{1, 0, 0})))
	}
}

// Jaw returns the current jaw rotation in radians
func (a *Applier) Jaw() float32 {
	return a.jaw
}

// Detach zeroes every influence, restores the jaw rest pose and stops
// further writes.
func (a *Applier) Detach() {
	if a.detached {
		return
	}
	a.detached = true

	switch a.capability.Tier() {
	case rig.TierFullViseme:
		for _, slot := range a.slots {
			slot.Mesh.SetInfluence(slot.Channel, 0)
		}
	case rig.TierJawBone:
		jawBone := a.capability.Jaw()
		jawBone.Bone.SetRotation(jawBone.Bone.Rest())
	}
	a.jaw = 0
	a.slots = nil
}
