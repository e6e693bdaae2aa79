// Package utils generates deterministic test signals as signed 16-bit PCM.
package utils

import "math"

// GenerateSineWave returns size samples of a sine at frequency Hz.
// amplitude is relative to full scale (0.0-1.0).
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	FillSineWave(buffer, 0, sampleRate, frequency, amplitude)
	return buffer
}

// FillSineWave writes a sine into buffer starting at sample offset and
// returns the offset following the last written sample, so consecutive
// buffers join without a phase jump.
func FillSineWave(buffer []int16, offset int, sampleRate, frequency, amplitude float64) int {
	for i := range buffer {
		t := float64(offset+i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * amplitude * math.MaxInt16)
	}
	return offset + len(buffer)
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics at
// 90% of full scale.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int16(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// Interleave merges per-channel sample slices into one interleaved buffer.
// All channels must have the same length.
func Interleave(channels ...[]int16) []int16 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]int16, frames*len(channels))
	for f := 0; f < frames; f++ {
		for c, ch := range channels {
			out[f*len(channels)+c] = ch[f]
		}
	}
	return out
}
