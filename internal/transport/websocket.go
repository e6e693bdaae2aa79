package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	applog "audioinput/internal/log"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// WebSocketServer serves the bridge to a single WebSocket client at a time.
// A second client is refused with 409 Conflict.
type WebSocketServer struct {
	addr       string
	path       string
	upgrader   websocket.Upgrader
	dispatcher Dispatcher

	mu       sync.Mutex
	client   *wsClient
	busy     bool
	server   *http.Server
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebSocketServer creates a server for d at addr and path. Call Start to
// begin listening, or mount Handler on an existing server.
func NewWebSocketServer(addr, path string, d Dispatcher) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketServer{
		addr: addr,
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Clients are local scripts and pages of any origin
			},
		},
		dispatcher: d,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Handler returns the HTTP handler serving the bridge path.
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *WebSocketServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	server := s.server
	s.mu.Unlock()

	go func() {
		applog.Infof("WebSocketServer: Listening on ws://%s%s", ln.Addr(), s.path)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketServer: Server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *WebSocketServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		applog.Warnf("WebSocketServer: Refusing %s, a client is already attached", r.RemoteAddr)
		http.Error(w, "a client is already attached", http.StatusConflict)
		return
	}
	s.busy = true
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("WebSocketServer: Upgrade error: %v", err)
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		return
	}

	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	applog.Infof("WebSocketServer: Client %s connected", conn.RemoteAddr())

	s.wg.Add(1)
	defer s.wg.Done()
	s.serveClient(client)

	s.mu.Lock()
	s.client = nil
	s.busy = false
	s.mu.Unlock()
	client.Close()
	s.dispatcher.Reset()
	applog.Infof("WebSocketServer: Client %s disconnected", conn.RemoteAddr())
}

func (s *WebSocketServer) serveClient(client *wsClient) {
	out := NewLoggingTransport("ws", client)
	for {
		msgType, frame, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				applog.Warnf("WebSocketServer: Read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		handleFrame(s.ctx, s.dispatcher, out, frame)
	}
}

// Send writes data to the attached client.
func (s *WebSocketServer) Send(data any) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return ErrNoClient
	}
	return client.Send(data)
}

// Close disconnects the client and shuts the server down.
func (s *WebSocketServer) Close() error {
	applog.Infof("WebSocketServer: Closing server")
	s.cancel()

	s.mu.Lock()
	client := s.client
	server := s.server
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
	var err error
	if server != nil {
		err = server.Close()
	}
	s.wg.Wait()
	return err
}

// wsClient is the Transport of one connection. Writes are serialized since
// results come from both the reader and the bridge loop.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *wsClient) Send(data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNoClient
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(data); err != nil {
		return fmt.Errorf("failed to write to client: %w", err)
	}
	return nil
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return c.conn.Close()
}

// Ensure the transports satisfy the interface
var (
	_ Transport = (*WebSocketServer)(nil)
	_ Transport = (*wsClient)(nil)
)
