package transport

import (
	"encoding/json"

	"audioinput/internal/bridge"
	applog "audioinput/internal/log"
)

// LoggingTransport wraps another Transport and logs every outbound message
// at debug level.
type LoggingTransport struct {
	next Transport
	name string
}

// NewLoggingTransport decorates next. name tags the log lines.
func NewLoggingTransport(name string, next Transport) *LoggingTransport {
	return &LoggingTransport{next: next, name: name}
}

// Send logs data and forwards it.
func (lt *LoggingTransport) Send(data any) error {
	if applog.GetLevel() <= applog.LevelDebug {
		if resp, ok := data.(Response); ok && isChunk(resp) {
			applog.Debugf("LOG_TRANSPORT %s: -> id=%s status=%s chunk", lt.name, resp.ID, resp.Status)
		} else if jsonData, err := json.Marshal(data); err != nil {
			applog.Debugf("LOG_TRANSPORT %s: -> (%T): %+v (JSON marshal error: %v)", lt.name, data, data, err)
		} else {
			applog.Debugf("LOG_TRANSPORT %s: -> %s", lt.name, jsonData)
		}
	}
	return lt.next.Send(data)
}

// Close closes the wrapped transport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT %s: Close called.", lt.name)
	return lt.next.Close()
}

// isChunk reports streamed chunk results, which are too large to log whole.
func isChunk(r Response) bool {
	return r.KeepCallback && r.Message != nil && r.Status == bridge.StatusOK
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
