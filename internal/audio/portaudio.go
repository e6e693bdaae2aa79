package audio

import (
	"errors"
	"fmt"
	"sync"

	applog "audioinput/internal/log"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend opens blocking PortAudio input streams. The library must
// be initialized with Initialize for the backend's lifetime.
type PortAudioBackend struct {
	lg applog.Logger
}

// NewPortAudioBackend returns the PortAudio backend.
func NewPortAudioBackend() (*PortAudioBackend, error) {
	return &PortAudioBackend{lg: applog.Tag("portaudio")}, nil
}

// Name implements Backend.
func (b *PortAudioBackend) Name() string { return "portaudio" }

// Open implements Backend.
func (b *PortAudioBackend) Open(p StreamParams) (Stream, error) {
	device, err := InputDevice(p.DeviceID)
	if err != nil {
		return nil, err
	}

	latency := device.DefaultHighInputLatency
	if p.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	s := &paStream{buf: make([]int16, p.BufferSize), lg: b.lg}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: p.Channels,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: p.BufferSize / p.Channels,
		SampleRate:      float64(p.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream on %q: %w", device.Name, classifyOpenError(err))
	}
	s.stream = stream
	b.lg.Debugf("opened %q at %d Hz, %d channels, %d frames per buffer",
		device.Name, p.SampleRate, p.Channels, params.FramesPerBuffer)
	return s, nil
}

// Close implements Backend. PortAudio itself is terminated by the caller
// that initialized it.
func (b *PortAudioBackend) Close() error { return nil }

type paStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	closed bool
	lg     applog.Logger
}

func (s *paStream) Start() error {
	return s.stream.Start()
}

func (s *paStream) Read(buf []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}

	err := s.stream.Read()
	if errors.Is(err, portaudio.InputOverflowed) {
		// Dropped samples are reported but the buffer is still valid.
		s.lg.Warnf("input overflowed")
		err = nil
	}
	if err != nil {
		return err
	}
	copy(buf, s.buf)
	return nil
}

func (s *paStream) Stop() error {
	return s.stream.Stop()
}

func (s *paStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}
