package lipsync

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/normanking/cortexlipsync/internal/viseme"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyLibrary   = errors.New("pattern library is empty")
	ErrInvalidPattern = errors.New("invalid speech pattern")
)

// Step holds one viseme for a fixed duration
type Step struct {
	Viseme   viseme.Viseme
	Duration time.Duration
}

// Pattern is a canned syllable-like viseme sequence
type Pattern struct {
	Name  string
	Steps []Step
}

// NewPattern builds a pattern from (viseme index, milliseconds) pairs.
func NewPattern(name string, pairs ...[2]int) Pattern {
	steps := make([]Step, len(pairs))
	for i, p := range pairs {
		steps[i] = step(viseme.Viseme(p[0]), p[1])
	}
	return Pattern{Name: name, Steps: steps}
}

// Duration is the total length of the pattern
func (p Pattern) Duration() time.Duration {
	var total time.Duration
	for _, s := range p.Steps {
		total += s.Duration
	}
	return total
}

func step(v viseme.Viseme, ms int) Step {
	return Step{Viseme: v, Duration: time.Duration(ms) * time.Millisecond}
}

// DefaultPatterns returns the built-in library. Each entry loosely follows
// the mouth shapes of a short English syllable.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "ha", Steps: []Step{step(viseme.AA, 140), step(viseme.Sil, 60)}},
		{Name: "hello", Steps: []Step{step(viseme.E, 90), step(viseme.NN, 70), step(viseme.O, 150), step(viseme.Sil, 50)}},
		{Name: "maybe", Steps: []Step{step(viseme.PP, 70), step(viseme.E, 120), step(viseme.PP, 60), step(viseme.I, 110)}},
		{Name: "so", Steps: []Step{step(viseme.SS, 100), step(viseme.O, 160), step(viseme.Sil, 40)}},
		{Name: "think", Steps: []Step{step(viseme.TH, 80), step(viseme.I, 90), step(viseme.NN, 60), step(viseme.KK, 70)}},
		{Name: "very", Steps: []Step{step(viseme.FF, 80), step(viseme.E, 100), step(viseme.RR, 70), step(viseme.I, 90)}},
		{Name: "check", Steps: []Step{step(viseme.CH, 90), step(viseme.E, 110), step(viseme.KK, 80), step(viseme.Sil, 50)}},
		{Name: "do", Steps: []Step{step(viseme.DD, 70), step(viseme.U, 150), step(viseme.Sil, 60)}},
		{Name: "okay", Steps: []Step{step(viseme.O, 120), step(viseme.KK, 60), step(viseme.E, 100), step(viseme.I, 80)}},
		{Name: "now", Steps: []Step{step(viseme.NN, 70), step(viseme.AA, 130), step(viseme.U, 90), step(viseme.Sil, 70)}},
	}
}

// ValidatePatterns checks every pattern is usable by the scheduler.
func ValidatePatterns(patterns []Pattern) error {
	if len(patterns) == 0 {
		return ErrEmptyLibrary
	}
	for i, p := range patterns {
		if len(p.Steps) == 0 {
			return fmt.Errorf("%w: pattern %d (%s) has no steps", ErrInvalidPattern, i, p.Name)
		}
		for j, s := range p.Steps {
			if !s.Viseme.Valid() {
				return fmt.Errorf("%w: pattern %d (%s) step %d: viseme index %d out of range", ErrInvalidPattern, i, p.Name, j, int(s.Viseme))
			}
			if s.Duration <= 0 {
				return fmt.Errorf("%w: pattern %d (%s) step %d: duration must be positive", ErrInvalidPattern, i, p.Name, j)
			}
		}
	}
	return nil
}

type patternFile struct {
	Patterns []struct {
		Name  string  `yaml:"name"`
		Steps [][]int `yaml:"steps"`
	} `yaml:"patterns"`
}

// ParsePatterns decodes a YAML pattern library:
//
//	patterns:
//	  - name: ha
//	    steps: [[10, 140], [0, 60]]
//
// Each step is a [viseme index, milliseconds] pair.
func ParsePatterns(data []byte) ([]Pattern, error) {
	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse patterns: %w", err)
	}

	patterns := make([]Pattern, 0, len(file.Patterns))
	for i, fp := range file.Patterns {
		name := fp.Name
		if name == "" {
			name = fmt.Sprintf("pattern_%d", i)
		}
		pairs := make([][2]int, 0, len(fp.Steps))
		for j, step := range fp.Steps {
			if len(step) != 2 {
				return nil, fmt.Errorf("%w: pattern %d (%s) step %d: want [viseme, ms], got %v", ErrInvalidPattern, i, name, j, step)
			}
			pairs = append(pairs, [2]int{step[0], step[1]})
		}
		patterns = append(patterns, NewPattern(name, pairs...))
	}

	if err := ValidatePatterns(patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}

// LoadPatterns reads a YAML pattern library from disk.
func LoadPatterns(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patterns file: %w", err)
	}
	return ParsePatterns(data)
}
