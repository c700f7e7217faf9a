package protocol

import (
	"fmt"
	"net"

	"penwheel/internal/pen"
)

// Sender streams encoded pen samples to a remote listener over UDP. It
// is the tablet-side counterpart of the net source: a bridge process on
// the machine the tablet is plugged into sends here, the steering host
// receives.
type Sender struct {
	conn *net.UDPConn
}

// NewSender dials the given host:port address.
func NewSender(addr string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("protocol: resolving %s: %w", addr, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("protocol: dialing %s: %w", addr, err)
	}

	// 1 MB write buffer for burst writes.
	conn.SetWriteBuffer(1 << 20)

	return &Sender{conn: conn}, nil
}

// Send encodes and transmits one sample. Loss is acceptable: samples
// carry absolute state, so the next one supersedes anything dropped.
func (s *Sender) Send(sample pen.Sample) error {
	_, err := s.conn.Write(Encode(sample))
	return err
}

// RemoteAddr returns the destination address.
func (s *Sender) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
