package audio

import (
	"fmt"

	"audioinput/internal/config"
)

// Format is the sample encoding delivered to clients and written to files.
type Format string

const (
	FormatPCM16 Format = config.FormatPCM16
	FormatPCM8  Format = config.FormatPCM8
)

// ParseFormat validates a format tag. An empty tag selects PCM_16BIT.
func ParseFormat(tag string) (Format, error) {
	switch Format(tag) {
	case "":
		return FormatPCM16, nil
	case FormatPCM16, FormatPCM8:
		return Format(tag), nil
	default:
		return "", fmt.Errorf("unsupported sample format %q", tag)
	}
}

// BitDepth returns the bits per sample of the format.
func (f Format) BitDepth() int {
	if f == FormatPCM8 {
		return 8
	}
	return 16
}

// Convert maps a signed 16-bit sample into the format's value range.
// 8-bit PCM is unsigned with 128 as the zero line.
func (f Format) Convert(sample int16) int {
	if f == FormatPCM8 {
		return int(sample>>8) + 128
	}
	return int(sample)
}

// ConvertInto converts samples into dst, growing it when needed.
func (f Format) ConvertInto(dst []int, samples []int16) []int {
	if cap(dst) < len(samples) {
		dst = make([]int, len(samples))
	}
	dst = dst[:len(samples)]
	for i, s := range samples {
		dst[i] = f.Convert(s)
	}
	return dst
}
