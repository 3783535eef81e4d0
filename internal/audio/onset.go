package audio

// OnsetDetector flags the start of a speech burst in an amplitude envelope.
// It uses hysteresis so a single noisy frame neither starts nor ends a burst.
type OnsetDetector struct {
	config *OnsetConfig

	active       bool
	speechCount  int
	silenceCount int
}

// OnsetConfig holds onset detection thresholds
type OnsetConfig struct {
	StartThreshold float32 `mapstructure:"start_threshold"` // Amplitude that counts as speech, default 0.25
	StopThreshold  float32 `mapstructure:"stop_threshold"`  // Amplitude that counts as silence, default 0.1
	StartFrames    int     `mapstructure:"start_frames"`    // Consecutive speech frames to open a burst, default 3
	StopFrames     int     `mapstructure:"stop_frames"`     // Consecutive silence frames to close it, default 20
}

// DefaultOnsetConfig returns sensible defaults
func DefaultOnsetConfig() *OnsetConfig {
	return &OnsetConfig{
		StartThreshold: 0.25,
		StopThreshold:  0.1,
		StartFrames:    3,
		StopFrames:     20,
	}
}

// NewOnsetDetector creates a new detector
func NewOnsetDetector(config *OnsetConfig) *OnsetDetector {
	if config == nil {
		config = DefaultOnsetConfig()
	}
	return &OnsetDetector{config: config}
}

// Process feeds one amplitude sample and reports whether a burst started on
// this frame.
func (d *OnsetDetector) Process(amplitude float32) bool {
	if d.active {
		if amplitude < d.config.StopThreshold {
			d.silenceCount++
			if d.silenceCount >= d.config.StopFrames {
				d.active = false
				d.silenceCount = 0
			}
		} else {
			d.silenceCount = 0
		}
		return false
	}

	if amplitude >= d.config.StartThreshold {
		d.speechCount++
		if d.speechCount >= d.config.StartFrames {
			d.active = true
			d.speechCount = 0
			return true
		}
	} else {
		d.speechCount = 0
	}
	return false
}

// IsActive returns whether a burst is in progress
func (d *OnsetDetector) IsActive() bool {
	return d.active
}

// Reset clears detector state
func (d *OnsetDetector) Reset() {
	d.active = false
	d.speechCount = 0
	d.silenceCount = 0
}
