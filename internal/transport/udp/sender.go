package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "audioinput/internal/log"
)

// MaxDatagramSize is the largest UDP payload over IPv4.
const MaxDatagramSize = 65507

var (
	ErrSenderClosed  = errors.New("udp: sender closed")
	ErrPacketTooLong = errors.New("udp: packet exceeds datagram size")
)

// UDPSender writes mirror packets to one connected UDP target.
type UDPSender struct {
	mu     sync.Mutex // guards conn and closed
	conn   *net.UDPConn
	target *net.UDPAddr
	closed bool
	lg     applog.Logger
}

// NewUDPSender dials targetAddress ("host:port"). UDP is connectionless, so
// an unreachable target only shows up as failed writes later.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	target, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve PCM mirror target %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, target)
	if err != nil {
		return nil, fmt.Errorf("failed to dial PCM mirror target %q: %w", targetAddress, err)
	}

	s := &UDPSender{conn: conn, target: target, lg: applog.Tag("udp")}
	s.lg.Infof("mirroring PCM chunks to %s", conn.RemoteAddr())
	return s, nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr { return s.target }

// Send writes one packet as a single datagram.
func (s *UDPSender) Send(packet []byte) error {
	if len(packet) > MaxDatagramSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLong, len(packet))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}
	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("udp: write to %s failed: %w", s.target, err)
	}
	return nil
}

// Close closes the connection. Further sends return ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.lg.Debugf("closing connection to %s", s.target)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("udp: close failed: %w", err)
	}
	return nil
}
