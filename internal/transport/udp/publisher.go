// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "audioinput/internal/log"
)

const (
	// HeaderSize is the packet header length in bytes.
	HeaderSize = 4 + 8 + 2

	// MaxSamplesPerPacket keeps each datagram within the UDP payload limit.
	// Longer chunks are split across packets.
	MaxSamplesPerPacket = (MaxDatagramSize - HeaderSize) / 2

	defaultQueueDepth = 64
)

// UDPPublisher mirrors streamed PCM chunks to a UDP listener. Publish only
// queues; a goroutine started by Start packs and sends the packets.
type UDPPublisher struct {
	sender *UDPSender
	queue  chan []int // Chunks waiting to be sent; full queues drop new chunks.

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects doneChan and running during Start/Stop.
	running  bool

	sequenceNum uint32
	dropped     uint64

	// Reused across packets by the publisher goroutine.
	sampleBuf    []int16
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher sending through sender. A queueDepth
// <= 0 selects the default of 64 chunks.
func NewUDPPublisher(sender *UDPSender, queueDepth int) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	applog.Infof("UDPPublisher: Initializing (queue depth: %d)", queueDepth)

	return &UDPPublisher{
		sender:       sender,
		queue:        make(chan []int, queueDepth),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Publish queues a chunk for sending without blocking. Chunks arriving
// while the queue is full are dropped.
func (p *UDPPublisher) Publish(samples []int) {
	select {
	case p.queue <- samples:
	default:
		p.mu.Lock()
		p.dropped++
		dropped := p.dropped
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Queue full, dropped chunk (%d total)", dropped)
	}
}

// Start launches the sending goroutine. Calling Start while running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}
	p.running = true
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started")
		for {
			select {
			case samples := <-p.queue:
				p.sendChunk(samples)
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the sending goroutine to exit and waits for it. Queued chunks
// that were not sent yet are discarded. Calling Stop more than once is a no-op.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.running = false
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Sample Count      | uint16         | 2            | Number of samples (N)   |
| Samples           | []int16        | N * 2        | Interleaved PCM         |
+-----------------------------------------------------------------------------+

8-bit chunks are sent with their unsigned 0-255 values widened to int16.
*/

// sendChunk splits samples into packets and sends them.
func (p *UDPPublisher) sendChunk(samples []int) {
	for len(samples) > 0 {
		n := min(len(samples), MaxSamplesPerPacket)
		packet, err := p.buildPacket(samples[:n], time.Now())
		if err != nil {
			applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
			return
		}
		if err := p.sender.Send(packet); err != nil {
			applog.Debugf("UDPPublisher: Error sending packet %d: %v", p.sequenceNum, err)
		} else {
			applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
		}
		samples = samples[n:]
	}
}

// buildPacket packs one packet. The returned slice is only valid until the
// next call.
func (p *UDPPublisher) buildPacket(samples []int, now time.Time) ([]byte, error) {
	if len(samples) > MaxSamplesPerPacket {
		return nil, fmt.Errorf("%d samples exceed the packet limit of %d", len(samples), MaxSamplesPerPacket)
	}

	if cap(p.sampleBuf) < len(samples) {
		p.sampleBuf = make([]int16, len(samples))
	}
	buf := p.sampleBuf[:len(samples)]
	for i, v := range samples {
		buf[i] = int16(v)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()

	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, now.UnixNano())
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(buf)))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, buf)
	}
	if err != nil {
		return nil, err
	}
	return p.packetBuffer.Bytes(), nil
}

// Close stops the publisher and closes its sender.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, stopping publisher...")
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Packet is a decoded PCM packet.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Samples   []int16
}

// DecodePacket parses a packet produced by the publisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	var pkt Packet
	pkt.Sequence = binary.BigEndian.Uint32(data[0:4])
	pkt.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12])))
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) != HeaderSize+2*count {
		return Packet{}, fmt.Errorf("packet length %d does not match %d samples", len(data), count)
	}
	pkt.Samples = make([]int16, count)
	for i := range pkt.Samples {
		pkt.Samples[i] = int16(binary.BigEndian.Uint16(data[HeaderSize+2*i:]))
	}
	return pkt, nil
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
