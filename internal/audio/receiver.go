package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"audioinput/internal/analysis"
	applog "audioinput/internal/log"

	"github.com/google/uuid"
)

// Message is posted by a Receiver to its Handler. A session posts any number
// of chunk messages followed by exactly one final message.
type Message struct {
	Session string

	// Chunk payload, in the session's format.
	Data  []int
	Level *analysis.Level

	// Final message fields.
	Final   bool
	File    string // file URL written, when recording to a file
	Error   string
	Samples int64 // interleaved samples captured
}

// Handler receives messages from a capture goroutine. Post must not block.
type Handler interface {
	Post(Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Message)

// Post implements Handler.
func (f HandlerFunc) Post(m Message) { f(m) }

// ReceiverConfig describes one capture session.
type ReceiverConfig struct {
	SampleRate int
	BufferSize int // interleaved samples per read and per chunk
	Channels   int
	Format     Format
	DeviceID   int
	LowLatency bool

	// FilePath, when set, receives a WAV file and chunks are not posted.
	FilePath string
	// FileURL is reported back in the final message.
	FileURL string
}

// Receiver reads from an input device on its own goroutine until interrupted.
type Receiver struct {
	id      string
	cfg     ReceiverConfig
	backend Backend
	handler Handler
	meter   *analysis.Meter

	mu     sync.Mutex
	stream Stream

	interrupted atomic.Bool
	started     atomic.Bool
	done        chan struct{}
	lg          applog.Logger
}

// NewReceiver creates a receiver. meter may be nil, in which case chunks
// carry no level.
func NewReceiver(cfg ReceiverConfig, backend Backend, handler Handler, meter *analysis.Meter) *Receiver {
	if cfg.Format == "" {
		cfg.Format = FormatPCM16
	}
	return &Receiver{
		id:      uuid.NewString(),
		cfg:     cfg,
		backend: backend,
		handler: handler,
		meter:   meter,
		done:    make(chan struct{}),
		lg:      applog.Tag("receiver"),
	}
}

// ID identifies the session in posted messages.
func (r *Receiver) ID() string { return r.id }

// Config returns the session parameters.
func (r *Receiver) Config() ReceiverConfig { return r.cfg }

// Start opens the device and, when configured, the output file, then launches
// the capture goroutine. Errors opening either are returned and nothing is
// posted.
func (r *Receiver) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	stream, err := r.backend.Open(StreamParams{
		DeviceID:   r.cfg.DeviceID,
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
		BufferSize: r.cfg.BufferSize,
		LowLatency: r.cfg.LowLatency,
	})
	if err != nil {
		close(r.done)
		return err
	}

	var sink *wavSink
	if r.cfg.FilePath != "" {
		sink, err = newWAVSink(r.cfg.FilePath, r.cfg.SampleRate, r.cfg.Channels, r.cfg.BufferSize, r.cfg.Format)
		if err != nil {
			stream.Close()
			close(r.done)
			return err
		}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		if sink != nil {
			sink.Close()
		}
		close(r.done)
		return fmt.Errorf("failed to start stream: %w", classifyOpenError(err))
	}

	r.mu.Lock()
	r.stream = stream
	r.mu.Unlock()

	r.lg.Infof("session %s started (%d Hz, %d ch, %d samples, %s, file=%q)",
		r.id, r.cfg.SampleRate, r.cfg.Channels, r.cfg.BufferSize, r.cfg.Format, r.cfg.FilePath)

	go r.run(stream, sink)
	return nil
}

// Interrupt asks the capture goroutine to finish. It returns immediately;
// use Join to wait.
func (r *Receiver) Interrupt() {
	if !r.interrupted.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	stream := r.stream
	r.mu.Unlock()
	if a, ok := stream.(aborter); ok {
		_ = a.Abort()
	}
}

// IsInterrupted reports whether Interrupt was called.
func (r *Receiver) IsInterrupted() bool {
	return r.interrupted.Load()
}

// Join blocks until the capture goroutine has posted its final message and
// released the device. It returns immediately for a receiver that never started.
func (r *Receiver) Join() {
	if !r.started.Load() {
		return
	}
	<-r.done
}

// Done is closed once the receiver has finished.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

func (r *Receiver) run(stream Stream, sink *wavSink) {
	defer close(r.done)

	buf := make([]int16, r.cfg.BufferSize)
	var (
		samples int64
		runErr  error
	)

	for !r.IsInterrupted() {
		if err := stream.Read(buf); err != nil {
			if r.IsInterrupted() || errors.Is(err, ErrStreamClosed) {
				break
			}
			runErr = fmt.Errorf("read failed: %w", err)
			break
		}
		samples += int64(len(buf))

		if sink != nil {
			if err := sink.Write(buf); err != nil {
				runErr = err
				break
			}
			continue
		}

		msg := Message{
			Session: r.id,
			Data:    r.cfg.Format.ConvertInto(nil, buf),
		}
		if r.meter != nil {
			level := r.meter.Measure(buf)
			msg.Level = &level
		}
		r.handler.Post(msg)
	}

	if err := stream.Stop(); err != nil {
		r.lg.Debugf("session %s: stop stream: %v", r.id, err)
	}
	if err := stream.Close(); err != nil {
		r.lg.Warnf("session %s: close stream: %v", r.id, err)
	}

	final := Message{Session: r.id, Final: true, Samples: samples}
	if sink != nil {
		if err := sink.Close(); err != nil && runErr == nil {
			runErr = err
		}
		final.File = r.cfg.FileURL
	}
	if runErr != nil {
		r.lg.Errorf("session %s: %v", r.id, runErr)
		final.Error = runErr.Error()
	}

	r.lg.Infof("session %s finished after %d samples", r.id, samples)
	r.handler.Post(final)
}
