package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"audioinput/internal/audio"
	"audioinput/internal/config"
)

func waitResult(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for permission result")
		return false
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Unknown, "unknown"},
		{Granted, "granted"},
		{Denied, "denied"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestManagerRequest(t *testing.T) {
	tests := []struct {
		name     string
		prompter Prompter
		want     bool
		state    State
	}{
		{"grant", Static(true), true, Granted},
		{"deny", Static(false), false, Denied},
		{"prompt error", PrompterFunc(func(context.Context) (bool, error) {
			return true, errors.New("no device")
		}), false, Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.prompter)
			if m.Has() || m.State() != Unknown {
				t.Fatalf("new manager state = %s, want unknown", m.State())
			}

			ch := make(chan bool, 1)
			m.Request(context.Background(), func(granted bool) { ch <- granted })
			if got := waitResult(t, ch); got != tt.want {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
			if m.State() != tt.state {
				t.Errorf("State() = %s, want %s", m.State(), tt.state)
			}
			if m.Has() != tt.want {
				t.Errorf("Has() = %v, want %v", m.Has(), tt.want)
			}
		})
	}
}

func TestManagerRequestIsAsync(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(PrompterFunc(func(context.Context) (bool, error) {
		<-release
		return true, nil
	}))

	ch := make(chan bool, 1)
	m.Request(context.Background(), func(granted bool) { ch <- granted })

	if m.State() != Unknown {
		t.Errorf("State() before prompt answered = %s, want unknown", m.State())
	}
	close(release)
	if !waitResult(t, ch) {
		t.Error("expected grant")
	}
}

func TestProbePrompter(t *testing.T) {
	params := audio.StreamParams{DeviceID: -1, SampleRate: 8000, Channels: 1, BufferSize: 80}

	granted, err := (&ProbePrompter{Backend: &audio.ToneBackend{Frequency: 440, Amplitude: 0.5}, Params: params}).Prompt(context.Background())
	if err != nil || !granted {
		t.Errorf("tone probe = (%v, %v), want (true, nil)", granted, err)
	}

	denied := &ProbePrompter{Backend: &audio.ToneBackend{OpenErr: audio.ErrPermissionDenied}, Params: params}
	granted, err = denied.Prompt(context.Background())
	if err != nil || granted {
		t.Errorf("denied probe = (%v, %v), want (false, nil)", granted, err)
	}

	broken := &ProbePrompter{Backend: &audio.ToneBackend{OpenErr: errors.New("device busy")}, Params: params}
	granted, err = broken.Prompt(context.Background())
	if err == nil || granted {
		t.Errorf("broken probe = (%v, %v), want (false, error)", granted, err)
	}
}

func TestNewPrompter(t *testing.T) {
	backend := &audio.ToneBackend{}
	params := audio.StreamParams{SampleRate: 8000, Channels: 1, BufferSize: 80}

	tests := []struct {
		mode    string
		backend audio.Backend
		wantErr bool
	}{
		{config.PermissionGrant, nil, false},
		{config.PermissionDeny, nil, false},
		{config.PermissionProbe, backend, false},
		{config.PermissionProbe, nil, true},
		{"ask", backend, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			_, err := NewPrompter(config.PermissionConfig{Mode: tt.mode}, tt.backend, params)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPrompter(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			}
		})
	}
}
