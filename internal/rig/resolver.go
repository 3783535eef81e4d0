package rig

import (
	"sort"

	"github.com/normanking/cortexlipsync/internal/viseme"
)

// MorphSlot addresses one morph influence on one mesh. Canonical slots carry
// the viseme they mirror; heuristic slots carry mouth openness.
type MorphSlot struct {
	Mesh        Mesh
	MeshName    string
	Channel     int
	ChannelName string
	Viseme      viseme.Viseme
	Heuristic   bool
}

// BoneRef is a named bone picked as a control point.
type BoneRef struct {
	Name string
	Bone Bone
}

// Capability is the resolved control surface of an avatar. It is built once
// by Resolve and never changes afterwards.
type Capability struct {
	tier  Tier
	slots []MorphSlot
	jaw   *BoneRef
	head  *BoneRef
	torso *BoneRef
}

func (c *Capability) Tier() Tier {
	if c == nil {
		return TierNone
	}
	return c.tier
}

// Slots returns a copy of the resolved morph slots.
func (c *Capability) Slots() []MorphSlot {
	if c == nil {
		return nil
	}
	out := make([]MorphSlot, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c *Capability) Jaw() *BoneRef {
	if c == nil {
		return nil
	}
	return c.jaw
}

func (c *Capability) Head() *BoneRef {
	if c == nil {
		return nil
	}
	return c.head
}

func (c *Capability) Torso() *BoneRef {
	if c == nil {
		return nil
	}
	return c.torso
}

// CanonicalCount is the number of slots matched by exact viseme name.
func (c *Capability) CanonicalCount() int {
	n := 0
	for _, s := range c.Slots() {
		if !s.Heuristic {
			n++
		}
	}
	return n
}

type boneCandidate struct {
	rank int
	ref  BoneRef
}

func (b *boneCandidate) offer(rank int, name string, bone Bone) *boneCandidate {
	if b == nil || rank < b.rank || (rank == b.rank && name < b.ref.Name) {
		return &boneCandidate{rank: rank, ref: BoneRef{Name: name, Bone: bone}}
	}
	return b
}

func (b *boneCandidate) result() *BoneRef {
	if b == nil {
		return nil
	}
	ref := b.ref
	return &ref
}

// Resolve walks the avatar once and derives its capability. A nil rig or a
// rig with no usable controls resolves to TierNone.
func Resolve(r Riggable, m *Matcher) *Capability {
	if m == nil {
		m = NewMatcher(nil, nil)
	}
	c := &Capability{}
	if r == nil {
		return c
	}

	var jaw, head, torso *boneCandidate
	r.Walk(func(n Node) {
		if mesh := n.Mesh(); mesh != nil {
			for ch, name := range mesh.MorphNames() {
				slot := MorphSlot{
					Mesh:        mesh,
					MeshName:    n.Name(),
					Channel:     ch,
					ChannelName: name,
					Viseme:      viseme.AA,
				}
				if v, ok := m.Canonical(name); ok {
					slot.Viseme = v
					c.slots = append(c.slots, slot)
				} else if m.Heuristic(name) {
					slot.Heuristic = true
					c.slots = append(c.slots, slot)
				}
			}
		}
		if bone := n.Bone(); bone != nil {
			name := n.Name()
			if rank, ok := m.JawRank(name); ok {
				jaw = jaw.offer(rank, name, bone)
			}
			if rank, ok := headRank(name); ok {
				head = head.offer(rank, name, bone)
			}
			if rank, ok := torsoRank(name); ok {
				torso = torso.offer(rank, name, bone)
			}
		}
	})

	sort.SliceStable(c.slots, func(i, j int) bool {
		if c.slots[i].MeshName != c.slots[j].MeshName {
			return c.slots[i].MeshName < c.slots[j].MeshName
		}
		return c.slots[i].Channel < c.slots[j].Channel
	})
	c.jaw = jaw.result()
	c.head = head.result()
	c.torso = torso.result()

	switch {
	case len(c.slots) > 0:
		c.tier = TierFullViseme
	case c.jaw != nil:
		c.tier = TierJawBone
	default:
		c.tier = TierNone
	}
	return c
}
