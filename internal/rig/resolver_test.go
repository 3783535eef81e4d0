package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexlipsync/internal/viseme"
)

func TestResolveTierPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		rig   Riggable
		tier  Tier
		slots int
	}{
		{
			name:  "canonical visemes",
			rig:   NewStaticRig(NewMeshNode("Head", viseme.MorphNames()...)),
			tier:  TierFullViseme,
			slots: int(viseme.Count),
		},
		{
			name:  "heuristic only",
			rig:   NewStaticRig(NewMeshNode("Face", "browUp", "MouthOpen")),
			tier:  TierFullViseme,
			slots: 1,
		},
		{
			name:  "jaw bone only",
			rig:   NewStaticRig(NewMeshNode("Body", "blink"), NewBoneNode("mixamorig:Jaw")),
			tier:  TierJawBone,
			slots: 0,
		},
		{
			name:  "nothing usable",
			rig:   NewStaticRig(NewMeshNode("Body", "blink"), NewBoneNode("Hips")),
			tier:  TierNone,
			slots: 0,
		},
		{
			name:  "nil rig",
			rig:   nil,
			tier:  TierNone,
			slots: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Resolve(tt.rig, nil)
			assert.Equal(t, tt.tier, c.Tier())
			assert.Len(t, c.Slots(), tt.slots)
		})
	}
}

func TestResolveDoesNotDoubleCountCanonicalChannels(t *testing.T) {
	r := NewStaticRig(NewMeshNode("Head", "viseme_aa", "jawOpen"))
	c := Resolve(r, nil)

	slots := c.Slots()
	require.Len(t, slots, 2)
	assert.False(t, slots[0].Heuristic)
	assert.Equal(t, viseme.AA, slots[0].Viseme)
	assert.True(t, slots[1].Heuristic)
	assert.Equal(t, 1, c.CanonicalCount())
}

func TestResolveIsOrderIndependent(t *testing.T) {
	a := NewStaticRig(NewBoneNode("Neck"), NewBoneNode("Head"), NewBoneNode("Jaw"), NewBoneNode("Spine2"))
	b := NewStaticRig(NewBoneNode("Spine2"), NewBoneNode("Jaw"), NewBoneNode("Head"), NewBoneNode("Neck"))

	ca := Resolve(a, nil)
	cb := Resolve(b, nil)

	require.NotNil(t, ca.Jaw())
	assert.Equal(t, "Jaw", ca.Jaw().Name)
	assert.Equal(t, ca.Jaw().Name, cb.Jaw().Name)
	assert.Equal(t, "Head", ca.Head().Name)
	assert.Equal(t, ca.Head().Name, cb.Head().Name)
	assert.Equal(t, "Spine2", ca.Torso().Name)
}

func TestResolveJawFallsBackToHeadOrNeck(t *testing.T) {
	c := Resolve(NewStaticRig(NewBoneNode("neck_01"), NewBoneNode("head")), nil)
	assert.Equal(t, TierJawBone, c.Tier())
	assert.Equal(t, "head", c.Jaw().Name)
}

func TestMatcherCustomHints(t *testing.T) {
	m := NewMatcher([]string{"Lips"}, []string{"Mandible"})
	assert.True(t, m.Heuristic("upperLIPS"))
	assert.False(t, m.Heuristic("mouthOpen"))
	assert.False(t, m.Heuristic("viseme_O"))

	rank, ok := m.JawRank("c_mandible.x")
	assert.True(t, ok)
	assert.Equal(t, 0, rank)
	_, ok = m.JawRank("jaw")
	assert.False(t, ok)
}

func TestNilCapability(t *testing.T) {
	var c *Capability
	assert.Equal(t, TierNone, c.Tier())
	assert.Nil(t, c.Slots())
	assert.Nil(t, c.Jaw())
	assert.Equal(t, "none", c.Tier().String())
}
