package bridge

import (
	"sync"

	applog "audioinput/internal/log"
)

// Sink delivers results to the client that issued a command.
type Sink interface {
	Send(callbackID string, r Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(callbackID string, r Result) error

// Send implements Sink.
func (f SinkFunc) Send(callbackID string, r Result) error { return f(callbackID, r) }

// Callback is the reply channel of a single command. It finishes with the
// first result that does not keep the callback; later results are dropped.
type Callback struct {
	id   string
	sink Sink

	mu       sync.Mutex
	finished bool
}

// NewCallback binds a callback id to the sink that answers it.
func NewCallback(id string, sink Sink) *Callback {
	return &Callback{id: id, sink: sink}
}

// ID returns the client's callback id.
func (c *Callback) ID() string { return c.id }

// IsFinished reports whether a final result has been sent.
func (c *Callback) IsFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// SendResult forwards r to the sink unless the callback already finished.
func (c *Callback) SendResult(r Result) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		applog.Debugf("Callback %s: dropping %s result sent after completion", c.id, r.Status)
		return
	}
	c.finished = !r.KeepCallback
	c.mu.Unlock()

	if err := c.sink.Send(c.id, r); err != nil {
		applog.Warnf("Callback %s: send failed: %v", c.id, err)
	}
}
