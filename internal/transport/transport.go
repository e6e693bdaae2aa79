// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"

	"audioinput/internal/bridge"
	applog "audioinput/internal/log"
)

// ErrNoClient is returned by Send when no client is attached.
var ErrNoClient = errors.New("no client connected")

// Transport sends messages to the attached client.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Dispatcher runs commands. *bridge.Bridge implements it.
type Dispatcher interface {
	Execute(ctx context.Context, action string, args bridge.Args, cb *bridge.Callback) (bool, error)
	Reset()
}

// Request is a command frame sent by the client.
type Request struct {
	ID     string      `json:"id"`
	Action string      `json:"action"`
	Args   bridge.Args `json:"args"`
}

// Response is a result frame sent to the client for the callback ID.
type Response struct {
	ID           string        `json:"id"`
	Status       bridge.Status `json:"status"`
	Message      any           `json:"message,omitempty"`
	KeepCallback bool          `json:"keepCallback"`
}

// NewResponse frames a bridge result for callback id.
func NewResponse(id string, r bridge.Result) Response {
	return Response{ID: id, Status: r.Status, Message: r.Message, KeepCallback: r.KeepCallback}
}

// resultSink delivers bridge results through a Transport.
type resultSink struct {
	out Transport
}

func (s resultSink) Send(id string, r bridge.Result) error {
	return s.out.Send(NewResponse(id, r))
}

// handleFrame decodes one request frame and runs it. Unparsable frames are
// answered with JSON_EXCEPTION and unknown actions with INVALID_ACTION.
func handleFrame(ctx context.Context, d Dispatcher, out Transport, frame []byte) {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		applog.Warnf("Transport: bad request frame: %v", err)
		if sendErr := out.Send(Response{ID: req.ID, Status: bridge.StatusJSONException, Message: err.Error()}); sendErr != nil {
			applog.Debugf("Transport: %v", sendErr)
		}
		return
	}

	cb := bridge.NewCallback(req.ID, resultSink{out: out})
	handled, err := d.Execute(ctx, req.Action, req.Args, cb)
	if err != nil {
		cb.SendResult(bridge.Result{Status: bridge.StatusError, Message: err.Error()})
		return
	}
	if !handled {
		// Dropped when the action already answered with an error.
		cb.SendResult(bridge.Result{Status: bridge.StatusInvalidAction, Message: "invalid action: " + req.Action})
	}
}
