package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	applog "audioinput/internal/log"
)

// maxFrameSize bounds one request line.
const maxFrameSize = 1 << 20

// StdioServer serves newline-delimited JSON frames over a reader and writer,
// normally stdin and stdout.
type StdioServer struct {
	in         io.Reader
	dispatcher Dispatcher

	mu     sync.Mutex
	enc    *json.Encoder
	closed bool
}

// NewStdioServer creates a server reading requests from in and writing
// responses to out.
func NewStdioServer(in io.Reader, out io.Writer, d Dispatcher) *StdioServer {
	return &StdioServer{in: in, enc: json.NewEncoder(out), dispatcher: d}
}

// Serve handles frames until in reaches EOF or ctx is done. The client is
// treated as detached afterwards.
func (s *StdioServer) Serve(ctx context.Context) error {
	defer s.dispatcher.Reset()

	out := NewLoggingTransport("stdio", s)
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		handleFrame(ctx, s.dispatcher, out, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio: read failed: %w", err)
	}
	applog.Infof("StdioServer: Input closed")
	return nil
}

// Send writes data as one JSON line.
func (s *StdioServer) Send(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoClient
	}
	if err := s.enc.Encode(data); err != nil {
		return fmt.Errorf("stdio: write failed: %w", err)
	}
	return nil
}

// Close stops further writes.
func (s *StdioServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Transport = (*StdioServer)(nil)
