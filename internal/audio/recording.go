package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavSink writes captured buffers to a PCM WAV file.
type wavSink struct {
	path       string
	format     Format
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *goaudio.IntBuffer // Reusable buffer for format conversion
	samples    int64
}

func newWAVSink(path string, sampleRate, channels, bufferSize int, format Format) (*wavSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	return &wavSink{
		path:       path,
		format:     format,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, format.BitDepth(), channels, 1),
		sampleBuf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, bufferSize),
			SourceBitDepth: format.BitDepth(),
		},
	}, nil
}

// Write converts and encodes one buffer of interleaved samples.
func (s *wavSink) Write(samples []int16) error {
	s.sampleBuf.Data = s.format.ConvertInto(s.sampleBuf.Data, samples)
	if err := s.wavEncoder.Write(s.sampleBuf); err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.path, err)
	}
	s.samples += int64(len(samples))
	return nil
}

// Close finalizes the WAV header and closes the file.
func (s *wavSink) Close() error {
	if s.wavEncoder != nil {
		if err := s.wavEncoder.Close(); err != nil {
			s.outputFile.Close()
			return fmt.Errorf("failed to finalize %s: %w", s.path, err)
		}
		s.wavEncoder = nil
	}
	if s.outputFile != nil {
		if err := s.outputFile.Close(); err != nil {
			return err
		}
		s.outputFile = nil
	}
	return nil
}
