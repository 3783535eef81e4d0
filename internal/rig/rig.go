// Package rig discovers which facial controls a loaded avatar exposes and
// addresses them for the output stage.
package rig

import "github.com/go-gl/mathgl/mgl32"

// Tier is the control surface an avatar supports for mouth motion.
type Tier int

const (
	TierNone Tier = iota
	TierJawBone
	TierFullViseme
)

func (t Tier) String() string {
	switch t {
	case TierFullViseme:
		return "full_viseme"
	case TierJawBone:
		return "jaw_bone_fallback"
	default:
		return "none"
	}
}

// Mesh is a node that carries named morph channels.
type Mesh interface {
	MorphNames() []string
	SetInfluence(channel int, weight float32)
}

// Bone is a rotatable skeleton joint.
type Bone interface {
	Rest() mgl32.Quat
	SetRotation(q mgl32.Quat)
}

// Node is one element of an avatar's scene graph. Mesh and Bone return nil
// when the node has no such capability.
type Node interface {
	Name() string
	Mesh() Mesh
	Bone() Bone
}

// Riggable is a loaded avatar whose node graph can be walked for capability
// discovery.
type Riggable interface {
	Walk(visit func(Node))
}
