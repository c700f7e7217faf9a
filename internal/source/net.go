package source

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"penwheel/internal/pen"
	"penwheel/internal/protocol"
)

// rebindDelay spaces out rebind attempts when the listen address is
// temporarily unavailable.
const rebindDelay = 500 * time.Millisecond

// Net receives pen samples as binary UDP datagrams (see the protocol
// package for the wire format). The stream is infinite at the transport
// level: malformed datagrams are counted and dropped, and a read fault
// recreates the socket on the same address. Only Close ends the stream.
type Net struct {
	addr    string
	log     zerolog.Logger
	dropped atomic.Uint64
	closed  atomic.Bool

	connMu sync.Mutex
	conn   *net.UDPConn
}

// NewNet binds a UDP socket on addr and starts listening.
func NewNet(addr string, log zerolog.Logger) (*Net, error) {
	conn, err := listenPen(addr)
	if err != nil {
		return nil, err
	}

	log.Info().Str("addr", conn.LocalAddr().String()).Msg("net source: listening")

	// Rebinds reuse the resolved address so senders keep a stable
	// destination even when addr asked for an ephemeral port.
	return &Net{addr: conn.LocalAddr().String(), log: log, conn: conn}, nil
}

func listenPen(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("net source: resolve %s: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("net source: bind %s: %w", addr, err)
	}

	// Large read buffer for burst receives.
	conn.SetReadBuffer(1 << 20)

	return conn, nil
}

// Next blocks until a well-formed datagram arrives. Datagrams of the
// wrong length are dropped silently, read faults rebind the socket and
// the read continues; only Close surfaces ErrDisconnected.
func (n *Net) Next() (pen.Sample, error) {
	var buf [64]byte
	for {
		length, _, err := n.current().ReadFromUDP(buf[:])
		if err != nil {
			if n.closed.Load() {
				return pen.Sample{}, ErrDisconnected
			}
			n.log.Warn().Err(err).Msg("net source: read failed, rebinding socket")
			if err := n.rebind(); err != nil {
				if n.closed.Load() {
					return pen.Sample{}, ErrDisconnected
				}
				n.log.Error().Err(err).Msg("net source: rebind failed, retrying")
				time.Sleep(rebindDelay)
			}
			continue
		}

		sample, err := protocol.Decode(buf[:length])
		if err != nil {
			total := n.dropped.Add(1)
			n.log.Debug().Int("length", length).Uint64("dropped", total).
				Msg("net source: malformed datagram dropped")
			continue
		}

		return sample, nil
	}
}

// rebind recreates the socket on the same address. The old socket is
// closed first so the port is free to take again.
func (n *Net) rebind() error {
	n.connMu.Lock()
	defer n.connMu.Unlock()

	if n.closed.Load() {
		return ErrDisconnected
	}

	n.conn.Close()
	conn, err := listenPen(n.addr)
	if err != nil {
		return err
	}
	n.conn = conn

	n.log.Info().Str("addr", conn.LocalAddr().String()).Msg("net source: socket rebound")
	return nil
}

func (n *Net) current() *net.UDPConn {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	return n.conn
}

// Dropped reports how many malformed datagrams have been discarded.
func (n *Net) Dropped() uint64 {
	return n.dropped.Load()
}

// LocalAddr returns the bound socket address.
func (n *Net) LocalAddr() net.Addr {
	return n.current().LocalAddr()
}

// Close tears down the socket, interrupting a blocked Next.
func (n *Net) Close() error {
	n.closed.Store(true)

	n.connMu.Lock()
	defer n.connMu.Unlock()
	return n.conn.Close()
}
