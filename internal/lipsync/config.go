package lipsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/normanking/cortexlipsync/internal/rig"
)

var ErrInvalidConfig = errors.New("invalid lip-sync configuration")

// Config is read once when an engine is built.
type Config struct {
	MouthMorphCandidates []string      `mapstructure:"mouth_morph_candidates" json:"mouth_morph_candidates"`
	JawBoneNames         []string      `mapstructure:"jaw_bone_names" json:"jaw_bone_names"`
	MicSmoothing         float64       `mapstructure:"mic_smoothing" json:"mic_smoothing"`
	MicGain              float64       `mapstructure:"mic_gain" json:"mic_gain"`
	MorphSmoothing       float32       `mapstructure:"morph_smoothing" json:"morph_smoothing"`
	BoneSmoothing        float32       `mapstructure:"bone_smoothing" json:"bone_smoothing"`
	JawScale             float32       `mapstructure:"jaw_scale" json:"jaw_scale"`
	HeadIntensity        float32       `mapstructure:"head_intensity" json:"head_intensity"`
	TorsoIntensity       float32       `mapstructure:"torso_intensity" json:"torso_intensity"`
	GestureCooldown      time.Duration `mapstructure:"gesture_cooldown" json:"gesture_cooldown"`
	PatternsFile         string        `mapstructure:"patterns_file" json:"patterns_file"`
	Seed                 int64         `mapstructure:"seed" json:"seed"`
	AnalyserBytes        int           `mapstructure:"analyser_bytes" json:"analyser_bytes"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MouthMorphCandidates: append([]string(nil), rig.DefaultMouthHints...),
		JawBoneNames:         append([]string(nil), rig.DefaultJawHints...),
		MicSmoothing:         0.3,
		MicGain:              1.5,
		MorphSmoothing:       0.35,
		BoneSmoothing:        0.25,
		JawScale:             DefaultJawScale,
		HeadIntensity:        1.0,
		TorsoIntensity:       0.5,
		GestureCooldown:      2 * time.Second,
		AnalyserBytes:        2048,
	}
}

// Validate checks value ranges. Zero seed means time-seeded.
func (c Config) Validate() error {
	open01 := func(name string, v float64) error {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%w: %s must be in (0,1), got %v", ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := open01("mic_smoothing", c.MicSmoothing); err != nil {
		return err
	}
	if err := open01("morph_smoothing", float64(c.MorphSmoothing)); err != nil {
		return err
	}
	if err := open01("bone_smoothing", float64(c.BoneSmoothing)); err != nil {
		return err
	}
	if c.MicGain <= 0 {
		return fmt.Errorf("%w: mic_gain must be > 0, got %v", ErrInvalidConfig, c.MicGain)
	}
	if c.JawScale < 0 {
		return fmt.Errorf("%w: jaw_scale must be >= 0, got %v", ErrInvalidConfig, c.JawScale)
	}
	if c.HeadIntensity < 0 || c.TorsoIntensity < 0 {
		return fmt.Errorf("%w: head and torso intensity must be >= 0", ErrInvalidConfig)
	}
	if c.GestureCooldown < 0 {
		return fmt.Errorf("%w: gesture_cooldown must be >= 0", ErrInvalidConfig)
	}
	if c.AnalyserBytes <= 0 {
		return fmt.Errorf("%w: analyser_bytes must be > 0, got %d", ErrInvalidConfig, c.AnalyserBytes)
	}
	return nil
}
