package audio

import "math"

// CalculateRMS computes the root mean square of a time-domain buffer after
// centering its samples on zero. The result is in [0,1] for well-formed data.
func CalculateRMS(data []byte, bitDepth int) float64 {
	if len(data) == 0 {
		return 0
	}

	var sum float64
	var count int

	switch bitDepth {
	case 16:
		// 16-bit signed little-endian PCM
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(uint16(data[i]) | uint16(data[i+1])<<8)
			normalized := float64(sample) / 32768.0
			sum += normalized * normalized
			count++
		}
	case 32:
		// 32-bit float PCM
		for i := 0; i+3 < len(data); i += 4 {
			bits := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
			sample := float64(math.Float32frombits(bits))
			if math.IsNaN(sample) || math.IsInf(sample, 0) {
				continue
			}
			sum += sample * sample
			count++
		}
	default:
		// 8-bit unsigned, 128 is the zero line
		for _, b := range data {
			normalized := (float64(b) - 128.0) / 128.0
			sum += normalized * normalized
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return math.Min(1, math.Sqrt(sum/float64(count)))
}
