package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"audioinput/internal/config"
	applog "audioinput/internal/log"

	"github.com/gen2brain/malgo"
)

// malgoQueueDepth bounds the callbacks buffered between the device thread
// and Read. Older periods are dropped when the reader falls behind.
const malgoQueueDepth = 64

// MalgoBackend captures through miniaudio. It owns a malgo context.
type MalgoBackend struct {
	ctx *malgo.AllocatedContext
	lg  applog.Logger
}

// NewMalgoBackend initializes a miniaudio context on the platform default backend.
func NewMalgoBackend() (*MalgoBackend, error) {
	lg := applog.Tag("malgo")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		lg.Debugf("%s", message)
	})
	if err != nil {
		return nil, fmt.Errorf("init malgo context: %w", err)
	}
	return &MalgoBackend{ctx: ctx, lg: lg}, nil
}

// Name implements Backend.
func (b *MalgoBackend) Name() string { return "malgo" }

// Open implements Backend.
func (b *MalgoBackend) Open(p StreamParams) (Stream, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(p.Channels)
	deviceConfig.SampleRate = uint32(p.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(config.PeriodFrames(p.BufferSize, p.Channels))

	if p.DeviceID != config.MinDeviceID {
		infos, err := b.ctx.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("enumerate capture devices: %w", err)
		}
		if p.DeviceID < 0 || p.DeviceID >= len(infos) {
			return nil, fmt.Errorf("invalid device ID: %d", p.DeviceID)
		}
		deviceConfig.Capture.DeviceID = infos[p.DeviceID].ID.Pointer()
	}

	s := &malgoStream{
		data:   make(chan []byte, malgoQueueDepth),
		closed: make(chan struct{}),
	}
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSample []byte, frameCount uint32) {
			chunk := make([]byte, len(pInputSample))
			copy(chunk, pInputSample)
			select {
			case s.data <- chunk:
			default:
			}
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", classifyOpenError(err))
	}
	s.device = dev
	return s, nil
}

// Close releases the miniaudio context.
func (b *MalgoBackend) Close() error {
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

// malgoStream turns miniaudio's push callbacks into blocking reads.
type malgoStream struct {
	device  *malgo.Device
	data    chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

func (s *malgoStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

func (s *malgoStream) Read(buf []int16) error {
	need := len(buf) * 2
	for len(s.pending) < need {
		select {
		case b := <-s.data:
			s.pending = append(s.pending, b...)
		case <-s.closed:
			return ErrStreamClosed
		}
	}
	for i := range buf {
		buf[i] = int16(binary.LittleEndian.Uint16(s.pending[2*i:]))
	}
	s.pending = append(s.pending[:0], s.pending[need:]...)
	return nil
}

// Abort unblocks a pending Read; the device is stopped by Stop.
func (s *malgoStream) Abort() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *malgoStream) Stop() error {
	s.once.Do(func() { close(s.closed) })
	return s.device.Stop()
}

func (s *malgoStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	s.device.Uninit()
	return nil
}
