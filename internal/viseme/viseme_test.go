package viseme

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisemeNames(t *testing.T) {
	assert.Equal(t, 15, int(Count))
	assert.Equal(t, "sil", Sil.String())
	assert.Equal(t, "aa", AA.String())
	assert.Equal(t, "viseme_kk", KK.MorphName())
	assert.Equal(t, "invalid", Viseme(42).String())
	assert.Len(t, MorphNames(), int(Count))
}

func TestFromMorphName(t *testing.T) {
	v, ok := FromMorphName("viseme_aa")
	assert.True(t, ok)
	assert.Equal(t, AA, v)

	v, ok = FromMorphName("viseme_U")
	assert.True(t, ok)
	assert.Equal(t, U, v)

	_, ok = FromMorphName("viseme_AA")
	assert.False(t, ok, "matching is case sensitive")

	_, ok = FromMorphName("mouthOpen")
	assert.False(t, ok)
}

func TestFrameSetClamps(t *testing.T) {
	var f Frame

	f.Set(AA, 0.5)
	assert.Equal(t, float32(0.5), f.Get(AA))

	f.Set(AA, 1.5)
	assert.Equal(t, float32(1), f.Get(AA))

	f.Set(AA, -0.5)
	assert.Equal(t, float32(0), f.Get(AA))

	f.Set(AA, float32(math.NaN()))
	assert.Equal(t, float32(0), f.Get(AA))

	f.Set(Viseme(99), 1)
	assert.Equal(t, float32(0), f.Get(Viseme(99)))
}

func TestFrameOpenness(t *testing.T) {
	var f Frame
	assert.Equal(t, float32(0), f.Openness())

	f.Set(AA, 0.7)
	assert.InDelta(t, 0.7, f.Openness(), 1e-6)

	f.Reset()
	f.Set(PP, 1)
	assert.Equal(t, float32(0), f.Openness(), "closed-lip shapes do not open the jaw")

	for i := range f {
		f[i] = 1
	}
	assert.Equal(t, float32(1), f.Openness())
	assert.Equal(t, float32(1), f.Max())
}
