// Package viseme defines the fixed set of mouth-shape channels driven by the
// lip-sync engine and the weight vector that carries them.
package viseme

import "strings"

// Viseme indexes one of the canonical mouth-shape channels.
type Viseme int

const (
	Sil Viseme = iota
	PP
	FF
	TH
	DD
	KK
	CH
	SS
	NN
	RR
	AA
	E
	I
	O
	U
	Count
)

// MorphPrefix is prepended to a viseme name to form its canonical morph
// target name, e.g. "viseme_aa".
const MorphPrefix = "viseme_"

var names = [Count]string{
	"sil",
	"PP",
	"FF",
	"TH",
	"DD",
	"kk",
	"CH",
	"SS",
	"nn",
	"RR",
	"aa",
	"E",
	"I",
	"O",
	"U",
}

// jawOpen is how far each shape opens the jaw, relative to a fully open "aa".
var jawOpen = [Count]float32{
	Sil: 0,
	PP:  0,
	FF:  0.05,
	TH:  0.1,
	DD:  0.2,
	KK:  0.25,
	CH:  0.1,
	SS:  0.05,
	NN:  0.15,
	RR:  0.1,
	AA:  0.6,
	E:   0.3,
	I:   0.2,
	O:   0.4,
	U:   0.25,
}

func (v Viseme) String() string {
	if !v.Valid() {
		return "invalid"
	}
	return names[v]
}

// Valid reports whether v addresses one of the canonical channels.
func (v Viseme) Valid() bool {
	return v >= 0 && v < Count
}

// MorphName returns the canonical morph target name for v.
func (v Viseme) MorphName() string {
	return MorphPrefix + v.String()
}

// FromMorphName returns the viseme whose canonical morph name equals name.
// Matching is exact.
func FromMorphName(name string) (Viseme, bool) {
	if !strings.HasPrefix(name, MorphPrefix) {
		return -1, false
	}
	short := strings.TrimPrefix(name, MorphPrefix)
	for i, n := range names {
		if n == short {
			return Viseme(i), true
		}
	}
	return -1, false
}

// MorphNames lists all canonical morph target names in channel order.
func MorphNames() []string {
	out := make([]string, Count)
	for i := range names {
		out[i] = Viseme(i).MorphName()
	}
	return out
}
