package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"audioinput/pkg/utils"
)

// ToneBackend is a synthetic input device producing a sine tone. It serves
// hosts without a microphone and exercises the bridge end to end.
type ToneBackend struct {
	Frequency float64
	Amplitude float64

	// Realtime paces reads at the stream's sample rate. Without it reads
	// return immediately.
	Realtime bool

	// OpenErr, when set, is returned by every Open.
	OpenErr error
	// FailAfter makes Read fail once this many buffers were delivered (0 = never).
	FailAfter int
	// Limit stops delivering after this many buffers; further reads block
	// until the stream is aborted or closed (0 = unlimited).
	Limit int

	opened atomic.Int32
	active atomic.Int32
}

// NewToneBackend returns a real-time paced tone source.
func NewToneBackend(frequency, amplitude float64) *ToneBackend {
	return &ToneBackend{Frequency: frequency, Amplitude: amplitude, Realtime: true}
}

// Name implements Backend.
func (b *ToneBackend) Name() string { return "tone" }

// Opened reports how many streams have been opened.
func (b *ToneBackend) Opened() int { return int(b.opened.Load()) }

// Active reports how many opened streams have not been closed yet.
func (b *ToneBackend) Active() int { return int(b.active.Load()) }

// Open implements Backend.
func (b *ToneBackend) Open(p StreamParams) (Stream, error) {
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	if p.Channels < 1 || p.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid stream parameters: %+v", p)
	}
	b.opened.Add(1)
	b.active.Add(1)
	return &toneStream{backend: b, params: p, closed: make(chan struct{})}, nil
}

// Close implements Backend.
func (b *ToneBackend) Close() error { return nil }

type toneStream struct {
	backend *ToneBackend
	params  StreamParams
	offset  int
	reads   int
	mono    []int16
	started time.Time
	closed  chan struct{}
	once    sync.Once
	release sync.Once
}

func (s *toneStream) Start() error {
	s.started = time.Now()
	return nil
}

func (s *toneStream) Read(buf []int16) error {
	select {
	case <-s.closed:
		return ErrStreamClosed
	default:
	}

	if s.backend.FailAfter > 0 && s.reads >= s.backend.FailAfter {
		return fmt.Errorf("tone device unplugged after %d buffers", s.reads)
	}
	if s.backend.Limit > 0 && s.reads >= s.backend.Limit {
		<-s.closed
		return ErrStreamClosed
	}

	channels := s.params.Channels
	frames := len(buf) / channels
	if cap(s.mono) < frames {
		s.mono = make([]int16, frames)
	}
	mono := s.mono[:frames]
	s.offset = utils.FillSineWave(mono, s.offset, float64(s.params.SampleRate), s.backend.Frequency, s.backend.Amplitude)
	for f, v := range mono {
		for c := 0; c < channels; c++ {
			buf[f*channels+c] = v
		}
	}
	s.reads++

	if s.backend.Realtime {
		due := s.started.Add(time.Duration(s.offset) * time.Second / time.Duration(s.params.SampleRate))
		select {
		case <-time.After(time.Until(due)):
		case <-s.closed:
			return ErrStreamClosed
		}
	}
	return nil
}

func (s *toneStream) Abort() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *toneStream) Stop() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *toneStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	s.release.Do(func() { s.backend.active.Add(-1) })
	return nil
}
