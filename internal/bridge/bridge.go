// SPDX-License-Identifier: MIT
/*
Package bridge dispatches microphone commands from a scripted client.

All bridge state is owned by a single event loop goroutine. Commands from
transports, permission outcomes and capture messages are queued as tasks and
run on that loop one at a time, so none of the handlers need locking.
*/
package bridge

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"audioinput/internal/analysis"
	"audioinput/internal/audio"
	"audioinput/internal/config"
	applog "audioinput/internal/log"
	"audioinput/internal/permission"
)

// ErrClosed is returned by Execute once the bridge has been closed.
var ErrClosed = errors.New("bridge closed")

// Catalog records file recordings. Implementations must be safe to call
// from the bridge loop.
type Catalog interface {
	RecordingStarted(session, fileURL, format string, sampleRate, channels int) error
	RecordingFinished(session string, samples int64, errMsg string) error
	RecordingDeleted(fileURL string) error
}

// Mirror receives a copy of every streamed chunk. Publish must not block.
type Mirror interface {
	Publish(samples []int)
}

// Options wires a Bridge to its collaborators. Backend, Permission and
// Config are required.
type Options struct {
	Backend    audio.Backend
	Permission *permission.Manager
	Config     *config.Config
	Catalog    Catalog
	Mirror     Mirror

	// Now defaults to time.Now.
	Now func() time.Time
}

// settings are the capture parameters set by initialize.
type settings struct {
	sampleRate  int
	bufferSize  int
	channels    int
	format      audio.Format
	audioSource int
	fileURL     string
	filePath    string
}

// chunkInfo is the payload of a streamed chunk result.
type chunkInfo struct {
	Data  []int           `json:"data"`
	Level *analysis.Level `json:"level,omitempty"`
}

// finalInfo is the payload sent to the record callback when capture ends.
type finalInfo struct {
	File    string `json:"file,omitempty"`
	Error   string `json:"error,omitempty"`
	Samples int64  `json:"samples"`
}

type reply struct {
	handled bool
	err     error
}

// Bridge is the command dispatcher.
type Bridge struct {
	backend audio.Backend
	perm    *permission.Manager
	cfg     *config.Config
	catalog Catalog
	mirror  Mirror
	now     func() time.Time

	queue  *queue
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	// Loop-owned state.
	settings settings
	receiver *audio.Receiver
	stopping bool

	// recordCB stays set as the chunk listener while a capture runs;
	// recordPending marks it as waiting for a permission result instead.
	recordCB      *Callback
	recordPending bool

	// stopCB is answered by the final message of stopSession.
	stopCB      *Callback
	stopSession string

	// permissionCBs wait for the next permission result.
	permissionCBs []*Callback

	lg applog.Logger
}

// New creates a Bridge and starts its event loop.
func New(opts Options) (*Bridge, error) {
	if opts.Backend == nil || opts.Permission == nil || opts.Config == nil {
		return nil, errors.New("bridge: backend, permission manager and config are required")
	}
	format, err := audio.ParseFormat(opts.Config.Audio.Format)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		backend: opts.Backend,
		perm:    opts.Permission,
		cfg:     opts.Config,
		catalog: opts.Catalog,
		mirror:  opts.Mirror,
		now:     opts.Now,
		queue:   newQueue(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		settings: settings{
			sampleRate:  opts.Config.Audio.SampleRate,
			bufferSize:  opts.Config.Audio.BufferSize,
			channels:    opts.Config.Audio.Channels,
			format:      format,
			audioSource: config.DefaultAudioSource,
		},
		lg: applog.Tag("bridge"),
	}

	go b.loop()
	return b, nil
}

func (b *Bridge) loop() {
	defer close(b.done)
	for {
		<-b.queue.notify
		for _, task := range b.queue.drain() {
			task()
		}
		if n := b.queue.len(); n > 0 {
			b.lg.Debugf("%d tasks queued while busy", n)
		}
		if b.stopping {
			return
		}
	}
}

// Execute runs a command on the loop and reports whether the action was
// handled. Results, including errors for handled actions, are delivered
// through cb.
func (b *Bridge) Execute(ctx context.Context, action string, args Args, cb *Callback) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	replyCh := make(chan reply, 1)
	b.queue.push(func() {
		if b.stopping {
			replyCh <- reply{err: ErrClosed}
			return
		}
		replyCh <- reply{handled: b.dispatch(action, args, cb)}
	})

	select {
	case r := <-replyCh:
		return r.handled, r.err
	case <-b.done:
		select {
		case r := <-replyCh:
			return r.handled, r.err
		default:
			return false, ErrClosed
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Reset interrupts a running capture when the client detaches. It does not
// wait for the capture to finish.
func (b *Bridge) Reset() {
	if b.closed.Load() {
		return
	}
	b.queue.push(func() {
		if b.receiver != nil && !b.receiver.IsInterrupted() {
			b.lg.Infof("client reset, interrupting session %s", b.receiver.ID())
			b.receiver.Interrupt()
		}
	})
}

// Close interrupts and joins any running capture, delivers its final
// message and stops the loop.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.queue.push(func() {
			b.stopping = true
			if b.receiver != nil {
				if !b.receiver.IsInterrupted() {
					b.receiver.Interrupt()
				}
				b.receiver.Join()
			}
			// Deliver what the capture posted while shutting down.
			for _, task := range b.queue.drain() {
				task()
			}
		})
		<-b.done
		b.cancel()
	})
	return nil
}

func (b *Bridge) dispatch(action string, args Args, cb *Callback) bool {
	b.lg.Debugf("execute %s (callback %s)", action, cb.ID())

	switch action {
	case "initialize":
		return b.initialize(args, cb)

	case "checkMicrophonePermission":
		cb.SendResult(OK(b.perm.Has()))
		return true

	case "getMicrophonePermission", "prepareToRecord":
		if b.perm.Has() {
			cb.SendResult(OK(true))
			return true
		}
		b.permissionCBs = append(b.permissionCBs, cb)
		cb.SendResult(Pending())
		b.requestPermission()
		return true

	case "record":
		b.recordCB = cb
		b.promptForRecord()
		// Dropped when the record callback already finished above.
		cb.SendResult(Pending())
		return true

	case "stop":
		if b.receiver == nil {
			cb.SendResult(Failure(InvalidStateError))
			return false
		}
		b.stopCB = cb
		b.stopSession = b.receiver.ID()
		b.receiver.Interrupt()
		b.lg.Debugf("waiting for session %s to stop", b.receiver.ID())
		b.receiver.Join()
		cb.SendResult(Pending())
		return true

	case "forceSpeaker", "recordAtTime", "recordForDuration", "recordAtTimeForDuration", "pause":
		cb.SendResult(OK(true))
		return true

	case "deviceCurrentTime":
		cb.SendResult(OK(b.now().UnixMilli()))
		return true

	case "deleteRecording":
		return b.deleteRecording(cb)
	}

	return false
}

func (b *Bridge) initialize(args Args, cb *Callback) bool {
	next, err := parseSettings(args)
	if err != nil {
		b.lg.Errorf("initialize: %v", err)
		b.interruptReceiver()
		code := PermissionDeniedError
		if errors.Is(err, ErrInvalidURL) {
			code = InvalidURLError
			b.settings.fileURL, b.settings.filePath = "", ""
		}
		cb.SendResult(Failure(code))
		return false
	}

	if next.filePath != "" {
		if err := os.Remove(next.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.lg.Warnf("initialize: could not delete existing %s: %v", next.filePath, err)
		}
	}

	b.settings = next
	b.lg.Infof("initialized %d Hz, %d samples, %d ch, %s, source %d, file %q",
		next.sampleRate, next.bufferSize, next.channels, next.format, next.audioSource, next.fileURL)
	cb.SendResult(OK(nil))
	return true
}

func parseSettings(args Args) (settings, error) {
	var s settings
	var err error

	if s.sampleRate, err = args.Int(0); err != nil {
		return s, err
	}
	if s.bufferSize, err = args.Int(1); err != nil {
		return s, err
	}
	if s.channels, err = args.Int(2); err != nil {
		return s, err
	}
	tag, err := args.String(3)
	if err != nil {
		return s, err
	}
	if s.audioSource, err = args.Int(4); err != nil {
		return s, err
	}
	if err := config.ValidateCapture(s.sampleRate, s.bufferSize, s.channels, tag); err != nil {
		return s, err
	}
	if s.format, err = audio.ParseFormat(tag); err != nil {
		return s, err
	}

	if !args.IsNull(5) {
		if s.fileURL, err = args.String(5); err != nil {
			return s, err
		}
		if s.filePath, err = filePathFromURL(s.fileURL); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (b *Bridge) deleteRecording(cb *Callback) bool {
	if b.settings.filePath == "" {
		cb.SendResult(Failure(InvalidStateError))
		return true
	}

	if err := os.Remove(b.settings.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.lg.Warnf("deleteRecording: %v", err)
	}
	if b.catalog != nil {
		if err := b.catalog.RecordingDeleted(b.settings.fileURL); err != nil {
			b.lg.Warnf("deleteRecording: catalog: %v", err)
		}
	}
	cb.SendResult(OK(true))
	return true
}

func (b *Bridge) interruptReceiver() {
	if b.receiver != nil {
		b.receiver.Interrupt()
	}
}

// promptForRecord starts a capture for the record callback when permission
// is held, and asks for it otherwise.
func (b *Bridge) promptForRecord() {
	if b.receiver != nil {
		b.receiver.Interrupt()
		b.receiver.Join()
	}

	if !b.perm.Has() {
		b.recordPending = true
		b.requestPermission()
		return
	}
	b.recordPending = false

	s := b.settings
	r := audio.NewReceiver(audio.ReceiverConfig{
		SampleRate: s.sampleRate,
		BufferSize: s.bufferSize,
		Channels:   s.channels,
		Format:     s.format,
		DeviceID:   b.cfg.DeviceForSource(s.audioSource),
		LowLatency: b.cfg.Audio.LowLatency,
		FilePath:   s.filePath,
		FileURL:    s.fileURL,
	}, b.backend, audio.HandlerFunc(b.post), analysis.NewMeter(b.cfg.Audio.GateThreshold))

	if err := r.Start(); err != nil {
		b.lg.Errorf("record: %v", err)
		code := InvalidStateError
		if errors.Is(err, audio.ErrPermissionDenied) {
			code = PermissionDeniedError
		}
		b.recordCB.SendResult(Failure(code))
		b.recordCB = nil
		return
	}
	b.receiver = r

	if b.catalog != nil && s.fileURL != "" {
		if err := b.catalog.RecordingStarted(r.ID(), s.fileURL, string(s.format), s.sampleRate, s.channels); err != nil {
			b.lg.Warnf("record: catalog: %v", err)
		}
	}

	b.recordCB.SendResult(Progress(s.fileURL))
}

func (b *Bridge) requestPermission() {
	b.perm.Request(b.ctx, func(granted bool) {
		b.queue.push(func() { b.onPermissionResult(granted) })
	})
}

func (b *Bridge) onPermissionResult(granted bool) {
	b.lg.Debugf("permission result: granted=%v", granted)

	// Each result answers either a waiting record request or the
	// permission callbacks, never both.
	if b.recordPending {
		if granted {
			b.promptForRecord()
			return
		}
		b.recordPending = false
		b.recordCB.SendResult(Failure(PermissionDeniedError))
		b.recordCB = nil
		return
	}

	for _, cb := range b.permissionCBs {
		cb.SendResult(OK(granted))
	}
	b.permissionCBs = nil
}

// post is the capture goroutine's handler. It only queues.
func (b *Bridge) post(m audio.Message) {
	b.queue.push(func() { b.onMessage(m) })
}

func (b *Bridge) onMessage(m audio.Message) {
	if b.receiver == nil || m.Session != b.receiver.ID() {
		if m.Final {
			b.finishCatalog(m)
			b.finishStop(m)
		}
		b.lg.Debugf("dropping message from stale session %s", m.Session)
		return
	}

	if !m.Final {
		if b.mirror != nil {
			b.mirror.Publish(m.Data)
		}
		if b.recordCB != nil {
			b.recordCB.SendResult(Progress(chunkInfo{Data: m.Data, Level: m.Level}))
		}
		return
	}

	b.receiver = nil
	b.finishCatalog(m)

	if b.recordCB != nil {
		b.recordCB.SendResult(OK(finalInfo{File: m.File, Error: m.Error, Samples: m.Samples}))
		b.recordCB = nil
	}
	b.finishStop(m)
}

// finishStop answers a stop request with the final message of the session
// it stopped, even when a newer capture replaced that session meanwhile.
func (b *Bridge) finishStop(m audio.Message) {
	if b.stopCB == nil || m.Session != b.stopSession {
		return
	}
	b.stopCB.SendResult(OK(m.File))
	b.stopCB = nil
	b.stopSession = ""
}

func (b *Bridge) finishCatalog(m audio.Message) {
	if b.catalog == nil || m.File == "" {
		return
	}
	if err := b.catalog.RecordingFinished(m.Session, m.Samples, m.Error); err != nil {
		b.lg.Warnf("catalog: %v", err)
	}
}
