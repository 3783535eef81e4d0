package motion

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/normanking/cortexlipsync/internal/rig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 16 * time.Millisecond

func TestLayerNeverWritesJawBone(t *testing.T) {
	head := rig.NewBoneNode("Head")
	spine := rig.NewBoneNode("Spine1")
	capability := rig.Resolve(rig.NewStaticRig(head, spine), nil)
	require.Equal(t, rig.TierJawBone, capability.Tier())
	require.Equal(t, "Head", capability.Jaw().Name)

	l := NewLayer(capability, DefaultConfig(), nil)
	for i := 0; i < 50; i++ {
		l.Update(tick, Input{SpeakIntensity: 0.8, GlowTarget: 0.85})
	}
	assert.Equal(t, 0, head.Writes, "jaw control bone is left to the mouth")
	assert.Greater(t, spine.Writes, 0)
}

func TestLayerWritesHeadOnVisemeRig(t *testing.T) {
	head := rig.NewBoneNode("Head")
	face := rig.NewMeshNode("Face", "viseme_aa")
	capability := rig.Resolve(rig.NewStaticRig(face, head), nil)
	require.Equal(t, rig.TierFullViseme, capability.Tier())

	l := NewLayer(capability, DefaultConfig(), nil)
	for i := 0; i < 50; i++ {
		l.Update(tick, Input{SpeakIntensity: 0.8})
	}
	assert.Equal(t, 50, head.Writes)
	assert.False(t, head.Rotation.ApproxEqual(mgl32.QuatIdent()))

	l.Detach()
	assert.True(t, head.Rotation.ApproxEqual(mgl32.QuatIdent()))
	l.Update(tick, Input{SpeakIntensity: 0.8})
	assert.Equal(t, 51, head.Writes, "only the detach write after detaching")
}

func TestSpeechIncreasesHeadMotion(t *testing.T) {
	idle := NewLayer(nil, DefaultConfig(), nil)
	speaking := NewLayer(nil, DefaultConfig(), nil)

	var idlePeak, speakPeak float32
	for i := 0; i < 200; i++ {
		idle.Update(tick, Input{})
		speaking.Update(tick, Input{SpeakIntensity: 1})
		if v := idle.HeadOffset().Len(); v > idlePeak {
			idlePeak = v
		}
		if v := speaking.HeadOffset().Len(); v > speakPeak {
			speakPeak = v
		}
	}
	assert.Greater(t, speakPeak, idlePeak)
	assert.Less(t, speakPeak, float32(0.2), "offsets stay subtle")
}

func TestGestureCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GestureCooldown = time.Second
	l := NewLayer(nil, cfg, nil)

	burst := func() int {
		n := 0
		for i := 0; i < 10; i++ {
			if l.Update(tick, Input{SpeakIntensity: 0.6}) {
				n++
			}
		}
		// Enough silence to close the burst
		for i := 0; i < 25; i++ {
			l.Update(tick, Input{})
		}
		return n
	}

	assert.Equal(t, 1, burst(), "first onset nods")
	assert.Equal(t, 0, burst(), "second onset inside cooldown is ignored")

	for i := 0; i < 60; i++ {
		l.Update(tick, Input{})
	}
	assert.Equal(t, 1, burst(), "nods again once the cooldown elapsed")
}

func TestGlowConverges(t *testing.T) {
	l := NewLayer(nil, DefaultConfig(), nil)
	for i := 0; i < 300; i++ {
		l.Update(tick, Input{GlowTarget: 0.6})
	}
	assert.InDelta(t, 0.6, l.Glow(), 0.01)

	for i := 0; i < 300; i++ {
		l.Update(tick, Input{GlowTarget: 5})
	}
	assert.LessOrEqual(t, l.Glow(), float32(1))
}
