// Package config provides configuration management for the lip-sync host
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/normanking/cortexlipsync/internal/lipsync"
	"github.com/normanking/cortexlipsync/internal/logging"
	"github.com/normanking/cortexlipsync/internal/stream"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. CORTEXLIPSYNC_LIPSYNC_MIC_GAIN.
const EnvPrefix = "CORTEXLIPSYNC"

var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Lipsync lipsync.Config      `mapstructure:"lipsync"`
	Audio   audio.CaptureConfig `mapstructure:"audio"`
	Avatar  AvatarConfig        `mapstructure:"avatar"`
	Stream  stream.Config       `mapstructure:"stream"`
	Logging logging.Config      `mapstructure:"logging"`
}

// AvatarConfig configures the rendered avatar
type AvatarConfig struct {
	ModelPath string `mapstructure:"model_path"` // glTF/GLB file
	FPS       int    `mapstructure:"fps"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Lipsync: lipsync.DefaultConfig(),
		Audio:   audio.DefaultCaptureConfig(),
		Avatar: AvatarConfig{
			FPS: 60,
		},
		Stream:  stream.DefaultConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Lipsync.Validate(); err != nil {
		return err
	}
	if c.Avatar.FPS <= 0 || c.Avatar.FPS > 240 {
		return fmt.Errorf("%w: avatar.fps must be in [1,240], got %d", ErrInvalid, c.Avatar.FPS)
	}
	if c.Audio.SampleRate == 0 || c.Audio.Channels == 0 || c.Audio.BufferFrames == 0 {
		return fmt.Errorf("%w: audio sample_rate, channels and buffer_frames must be positive", ErrInvalid)
	}
	if c.Stream.Addr == "" {
		return fmt.Errorf("%w: stream.addr is required", ErrInvalid)
	}
	return nil
}

// Loader reads configuration from file and environment and can watch the
// file for changes.
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// NewLoader prepares a loader. An explicit path wins over the search path
// (~/.cortexlipsync, then the working directory).
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("lipsync.mouth_morph_candidates", cfg.Lipsync.MouthMorphCandidates)
	v.SetDefault("lipsync.jaw_bone_names", cfg.Lipsync.JawBoneNames)
	v.SetDefault("lipsync.mic_smoothing", cfg.Lipsync.MicSmoothing)
	v.SetDefault("lipsync.mic_gain", cfg.Lipsync.MicGain)
	v.SetDefault("lipsync.morph_smoothing", cfg.Lipsync.MorphSmoothing)
	v.SetDefault("lipsync.bone_smoothing", cfg.Lipsync.BoneSmoothing)
	v.SetDefault("lipsync.jaw_scale", cfg.Lipsync.JawScale)
	v.SetDefault("lipsync.head_intensity", cfg.Lipsync.HeadIntensity)
	v.SetDefault("lipsync.torso_intensity", cfg.Lipsync.TorsoIntensity)
	v.SetDefault("lipsync.gesture_cooldown", cfg.Lipsync.GestureCooldown)
	v.SetDefault("lipsync.patterns_file", cfg.Lipsync.PatternsFile)
	v.SetDefault("lipsync.seed", cfg.Lipsync.Seed)
	v.SetDefault("lipsync.analyser_bytes", cfg.Lipsync.AnalyserBytes)

	v.SetDefault("audio.device_name", cfg.Audio.DeviceName)
	v.SetDefault("audio.sample_rate", cfg.Audio.SampleRate)
	v.SetDefault("audio.channels", cfg.Audio.Channels)
	v.SetDefault("audio.buffer_frames", cfg.Audio.BufferFrames)

	v.SetDefault("avatar.model_path", cfg.Avatar.ModelPath)
	v.SetDefault("avatar.fps", cfg.Avatar.FPS)

	v.SetDefault("stream.addr", cfg.Stream.Addr)

	v.SetDefault("logging.dir", cfg.Logging.Dir)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
}

// Load reads and validates the configuration. A missing config file is not
// an error; defaults and environment apply.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// File returns the config file in use, empty when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with the reloaded configuration whenever the config file
// changes. fn receives the decode or validation error instead when the new
// file is unusable.
func (l *Loader) Watch(fn func(*Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		fn(cfg, err)
	})
	l.v.WatchConfig()
}

// Effective renders the merged settings as YAML
func (l *Loader) Effective() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return yaml.Marshal(l.v.AllSettings())
}

// Save writes the merged settings to path, creating parent directories.
func (l *Loader) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v.WriteConfigAs(path)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cortexlipsync"), nil
}
