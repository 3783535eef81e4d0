package audio

// AmplitudeMultiplier is the fixed scale applied on top of the configured gain.
// Speech RMS rarely exceeds 0.25, so this maps ordinary talking into the
// upper half of the range.
const AmplitudeMultiplier = 4.0

// Extractor turns successive waveform buffers into a smoothed, gain-scaled
// amplitude in [0,1].
type Extractor struct {
	alpha     float64
	gain      float64
	smoothed  float64
	amplitude float32
	buf       []byte
}

// NewExtractor creates an extractor. alpha is clamped to (0,1], gain to >0.
func NewExtractor(alpha, gain float64, bufferBytes int) *Extractor {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	if gain <= 0 {
		gain = 1
	}
	if bufferBytes <= 0 {
		bufferBytes = 2048
	}
	return &Extractor{
		alpha: alpha,
		gain:  gain,
		buf:   make([]byte, bufferBytes),
	}
}

// Poll reads the latest buffer from a and folds it into the amplitude. A nil
// analyser or an empty read counts as silence.
func (e *Extractor) Poll(a Analyser) float32 {
	if a == nil {
		return e.Process(nil, 8)
	}
	n := a.TimeDomain(e.buf)
	if n < 0 {
		n = 0
	}
	if n > len(e.buf) {
		n = len(e.buf)
	}
	return e.Process(e.buf[:n], a.BitDepth())
}

// Process folds one buffer into the amplitude and returns it.
func (e *Extractor) Process(data []byte, bitDepth int) float32 {
	rms := CalculateRMS(data, bitDepth)
	e.smoothed = e.smoothed*(1-e.alpha) + rms*e.alpha

	amp := e.smoothed * e.gain * AmplitudeMultiplier
	switch {
	case amp != amp || amp < 0:
		amp = 0
	case amp > 1:
		amp = 1
	}
	e.amplitude = float32(amp)
	return e.amplitude
}

func (e *Extractor) Amplitude() float32 {
	return e.amplitude
}

// Reset forces the amplitude and the filter state to zero.
func (e *Extractor) Reset() {
	e.smoothed = 0
	e.amplitude = 0
}
