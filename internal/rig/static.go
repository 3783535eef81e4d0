package rig

import "github.com/go-gl/mathgl/mgl32"

// StaticRig is an in-memory avatar, used for headless runs and tests.
type StaticRig struct {
	nodes []*StaticNode
}

// StaticNode records every write the output stage makes to it.
type StaticNode struct {
	name      string
	morphs    []string
	bone      bool
	Influence []float32
	Rotation  mgl32.Quat
	rest      mgl32.Quat
	Writes    int
}

func NewStaticRig(nodes ...*StaticNode) *StaticRig {
	return &StaticRig{nodes: nodes}
}

// NewMeshNode creates a node carrying the given morph channels.
func NewMeshNode(name string, morphs ...string) *StaticNode {
	return &StaticNode{
		name:      name,
		morphs:    morphs,
		Influence: make([]float32, len(morphs)),
		Rotation:  mgl32.QuatIdent(),
		rest:      mgl32.QuatIdent(),
	}
}

// NewBoneNode creates a skeleton joint at identity rest pose.
func NewBoneNode(name string) *StaticNode {
	return &StaticNode{
		name:     name,
		bone:     true,
		Rotation: mgl32.QuatIdent(),
		rest:     mgl32.QuatIdent(),
	}
}

func (r *StaticRig) Walk(visit func(Node)) {
	for _, n := range r.nodes {
		visit(n)
	}
}

// TotalWrites sums writes across all nodes.
func (r *StaticRig) TotalWrites() int {
	total := 0
	for _, n := range r.nodes {
		total += n.Writes
	}
	return total
}

func (n *StaticNode) Name() string { return n.name }

func (n *StaticNode) Mesh() Mesh {
	if len(n.morphs) == 0 {
		return nil
	}
	return staticMesh{n}
}

func (n *StaticNode) Bone() Bone {
	if !n.bone {
		return nil
	}
	return staticBone{n}
}

type staticMesh struct{ n *StaticNode }

func (m staticMesh) MorphNames() []string { return m.n.morphs }

func (m staticMesh) SetInfluence(channel int, weight float32) {
	if channel < 0 || channel >= len(m.n.Influence) {
		return
	}
	m.n.Influence[channel] = weight
	m.n.Writes++
}

type staticBone struct{ n *StaticNode }

func (b staticBone) Rest() mgl32.Quat { return b.n.rest }

func (b staticBone) SetRotation(q mgl32.Quat) {
	b.n.Rotation = q
	b.n.Writes++
}
