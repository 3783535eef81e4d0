package rig

import (
	"strings"

	"github.com/normanking/cortexlipsync/internal/viseme"
)

var (
	DefaultMouthHints = []string{"mouth", "jaw", "aa", "open"}
	DefaultJawHints   = []string{"jaw", "head", "neck"}

	headHints  = []string{"head"}
	torsoHints = []string{"spine", "chest"}
)

// Matcher is the one place channel and bone names are classified.
type Matcher struct {
	mouthHints []string
	jawHints   []string
}

// NewMatcher builds a matcher from name hints. Empty lists fall back to the
// defaults; hints are compared case-insensitively.
func NewMatcher(mouthHints, jawHints []string) *Matcher {
	if len(mouthHints) == 0 {
		mouthHints = DefaultMouthHints
	}
	if len(jawHints) == 0 {
		jawHints = DefaultJawHints
	}
	return &Matcher{
		mouthHints: lowerAll(mouthHints),
		jawHints:   lowerAll(jawHints),
	}
}

// Canonical reports the viseme whose canonical morph name equals name.
func (m *Matcher) Canonical(name string) (viseme.Viseme, bool) {
	return viseme.FromMorphName(name)
}

// Heuristic reports whether a non-canonical channel looks like a mouth
// opener. Canonical names never match here.
func (m *Matcher) Heuristic(name string) bool {
	if _, ok := m.Canonical(name); ok {
		return false
	}
	return containsAny(name, m.mouthHints) >= 0
}

// JawRank returns the priority of a bone as the jaw control point; lower is
// better. ok is false when the name matches no jaw hint.
func (m *Matcher) JawRank(name string) (rank int, ok bool) {
	rank = containsAny(name, m.jawHints)
	return rank, rank >= 0
}

func headRank(name string) (int, bool) {
	r := containsAny(name, headHints)
	return r, r >= 0
}

func torsoRank(name string) (int, bool) {
	r := containsAny(name, torsoHints)
	return r, r >= 0
}

// containsAny returns the index of the first hint contained in name, or -1.
func containsAny(name string, hints []string) int {
	lower := strings.ToLower(name)
	for i, h := range hints {
		if h != "" && strings.Contains(lower, h) {
			return i
		}
	}
	return -1
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
