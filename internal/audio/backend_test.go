// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("tone")
	if err != nil {
		t.Fatalf("NewBackend(tone) error = %v", err)
	}
	if b.Name() != "tone" {
		t.Errorf("Name() = %q, want tone", b.Name())
	}

	if _, err := NewBackend("alsa"); err == nil {
		t.Error("NewBackend(alsa) expected error")
	}
}

func TestProbe(t *testing.T) {
	params := StreamParams{DeviceID: -1, SampleRate: 8000, Channels: 1, BufferSize: 80}

	t.Run("granted", func(t *testing.T) {
		backend := newTestTone(0)
		if err := Probe(context.Background(), backend, params); err != nil {
			t.Errorf("Probe() error = %v", err)
		}
		if backend.Opened() != 1 {
			t.Errorf("Opened() = %d, want 1", backend.Opened())
		}
	})

	t.Run("denied", func(t *testing.T) {
		backend := &ToneBackend{OpenErr: ErrPermissionDenied}
		if err := Probe(context.Background(), backend, params); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("Probe() error = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		// A paced one-second buffer outlasts the deadline.
		backend := NewToneBackend(440, 0.5)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		slow := StreamParams{DeviceID: -1, SampleRate: 8000, Channels: 1, BufferSize: 8000}
		if err := Probe(ctx, backend, slow); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Probe() error = %v, want deadline exceeded", err)
		}

		// The blocked read is aborted well before the buffer would fill.
		deadline := time.Now().Add(500 * time.Millisecond)
		for backend.Active() != 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if n := backend.Active(); n != 0 {
			t.Errorf("Active() = %d after timeout, want 0", n)
		}
	})
}

func TestToneStreamStereo(t *testing.T) {
	backend := newTestTone(0)
	stream, err := backend.Open(StreamParams{SampleRate: 8000, Channels: 2, BufferSize: 16})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	buf := make([]int16, 16)
	if err := stream.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	for f := 0; f < 8; f++ {
		if buf[2*f] != buf[2*f+1] {
			t.Errorf("frame %d channels differ: %d vs %d", f, buf[2*f], buf[2*f+1])
		}
	}

	stream.Stop()
	if err := stream.Read(buf); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Read() after Stop error = %v, want ErrStreamClosed", err)
	}
}
