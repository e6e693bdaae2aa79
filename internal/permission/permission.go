// SPDX-License-Identifier: MIT
/*
Package permission tracks whether the process may capture from the microphone.

A Manager starts in the Unknown state. Request asks a Prompter on its own
goroutine and reports exactly one result, which moves the Manager to
Granted or Denied.
*/
package permission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"audioinput/internal/audio"
	"audioinput/internal/config"
	applog "audioinput/internal/log"
)

// State is the microphone permission state.
type State int32

const (
	Unknown State = iota
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Prompter asks the platform (or a policy) for microphone access.
type Prompter interface {
	Prompt(ctx context.Context) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (bool, error)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context) (bool, error) { return f(ctx) }

// Static answers every prompt with the same decision.
func Static(granted bool) Prompter {
	return PrompterFunc(func(context.Context) (bool, error) { return granted, nil })
}

// ProbePrompter asks for access by briefly opening the input device.
type ProbePrompter struct {
	Backend audio.Backend
	Params  audio.StreamParams
	Timeout time.Duration
}

// Prompt implements Prompter. Any failure to open or read the device counts
// as a denial; only failures other than ErrPermissionDenied are returned.
func (p *ProbePrompter) Prompt(ctx context.Context) (bool, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	err := audio.Probe(ctx, p.Backend, p.Params)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, audio.ErrPermissionDenied):
		return false, nil
	default:
		return false, err
	}
}

// NewPrompter builds the Prompter selected by cfg.Mode.
func NewPrompter(cfg config.PermissionConfig, backend audio.Backend, params audio.StreamParams) (Prompter, error) {
	switch cfg.Mode {
	case config.PermissionGrant:
		return Static(true), nil
	case config.PermissionDeny:
		return Static(false), nil
	case config.PermissionProbe, "":
		if backend == nil {
			return nil, fmt.Errorf("probe prompter requires an audio backend")
		}
		return &ProbePrompter{Backend: backend, Params: params, Timeout: cfg.ProbeTimeout}, nil
	default:
		return nil, fmt.Errorf("unknown permission mode %q", cfg.Mode)
	}
}

// Manager holds the permission state.
type Manager struct {
	mu       sync.Mutex
	state    State
	prompter Prompter
	lg       applog.Logger
}

// NewManager returns a Manager in the Unknown state.
func NewManager(prompter Prompter) *Manager {
	return &Manager{prompter: prompter, lg: applog.Tag("permission")}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Has reports whether access has been granted. It never prompts.
func (m *Manager) Has() bool {
	return m.State() == Granted
}

// Request prompts on a new goroutine and calls result exactly once with the
// outcome. A prompter error is logged and treated as a denial.
func (m *Manager) Request(ctx context.Context, result func(granted bool)) {
	go func() {
		granted, err := m.prompter.Prompt(ctx)
		if err != nil {
			m.lg.Warnf("prompt failed, treating as denied: %v", err)
			granted = false
		}

		m.mu.Lock()
		prev := m.state
		if granted {
			m.state = Granted
		} else {
			m.state = Denied
		}
		next := m.state
		m.mu.Unlock()

		if prev != next {
			m.lg.Infof("microphone permission %s -> %s", prev, next)
		}
		result(granted)
	}()
}
