package lipsync

import (
	"errors"
	"fmt"
	"strings"
)

// State is the avatar's high-level animation state
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
	StateThinking  State = "thinking"
)

// ErrUnknownState is returned for state values outside the four known states.
var ErrUnknownState = errors.New("unknown animation state")

// Valid reports whether s is one of the known states
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateListening, StateSpeaking, StateThinking:
		return true
	}
	return false
}

// ParseState maps a case-insensitive name to a State.
func ParseState(name string) (State, error) {
	s := State(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
	return s, nil
}

// Glow is the ambient glow level the avatar settles at in this state.
func (s State) Glow() float32 {
	switch s {
	case StateListening:
		return 0.45
	case StateSpeaking:
		return 0.85
	case StateThinking:
		return 0.6
	default:
		return 0.15
	}
}
