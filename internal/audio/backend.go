// SPDX-License-Identifier: MIT
/*
Package audio implements microphone capture for the bridge:
- Backends over PortAudio (blocking streams) and miniaudio (malgo)
- A Receiver that reads fixed-size buffers on its own goroutine
- Optional WAV writing of the captured samples
- Delivery of chunks and the final status to a single Handler
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"audioinput/internal/config"
)

var (
	// ErrPermissionDenied is returned when the platform refuses microphone access.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrStreamClosed is returned by Read once a stream has been stopped or closed.
	ErrStreamClosed = errors.New("stream closed")

	// ErrAlreadyStarted is returned when a Receiver is started twice.
	ErrAlreadyStarted = errors.New("receiver already started")
)

// StreamParams describes an input stream. BufferSize counts interleaved
// samples, so one Read delivers BufferSize/Channels frames.
type StreamParams struct {
	DeviceID   int
	SampleRate int
	Channels   int
	BufferSize int
	LowLatency bool
}

// Stream is an opened input stream with blocking reads.
type Stream interface {
	Start() error
	// Read blocks until len(buf) interleaved samples are available.
	Read(buf []int16) error
	Stop() error
	Close() error
}

// aborter is implemented by streams whose Read can be cancelled from
// another goroutine. PortAudio reads return within one buffer and do not
// need it.
type aborter interface {
	Abort() error
}

// Backend opens input streams on a capture API.
type Backend interface {
	Name() string
	Open(params StreamParams) (Stream, error)
	Close() error
}

// NewBackend returns the backend registered under name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case config.BackendPortAudio, "":
		return NewPortAudioBackend()
	case config.BackendMalgo:
		return NewMalgoBackend()
	case config.BackendTone:
		return NewToneBackend(440, 0.5), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}

// Probe opens the stream described by params, reads a single buffer and closes
// it again. It is how the permission prompter asks the platform for access.
// When ctx ends first, a blocked read is aborted so the device is released.
func Probe(ctx context.Context, backend Backend, params StreamParams) error {
	var (
		mu        sync.Mutex
		stream    Stream
		abandoned bool
	)
	errCh := make(chan error, 1)

	go func() {
		s, err := backend.Open(params)
		if err != nil {
			errCh <- err
			return
		}
		defer s.Close()

		mu.Lock()
		if abandoned {
			mu.Unlock()
			return
		}
		stream = s
		mu.Unlock()

		if err := s.Start(); err != nil {
			errCh <- classifyOpenError(err)
			return
		}
		buf := make([]int16, params.BufferSize)
		err = s.Read(buf)
		_ = s.Stop()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		mu.Lock()
		abandoned = true
		s := stream
		mu.Unlock()
		if a, ok := s.(aborter); ok {
			_ = a.Abort()
		}
		return fmt.Errorf("device probe: %w", ctx.Err())
	}
}
