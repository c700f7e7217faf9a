package source

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penwheel/internal/pen"
	"penwheel/internal/protocol"
)

func newTestNet(t *testing.T) (*Net, *net.UDPConn) {
	t.Helper()

	src, err := NewNet("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	conn, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return src, conn.(*net.UDPConn)
}

func TestNetDeliversSamples(t *testing.T) {
	src, conn := newTestNet(t)

	want := pen.Sample{X: 0.5, Y: -0.25, Pressure: 100, Buttons: 0x02}
	_, err := conn.Write(protocol.Encode(want))
	require.NoError(t, err)

	got, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNetDropsMalformedAndContinues(t *testing.T) {
	src, conn := newTestNet(t)

	// A malformed 10-byte datagram followed by a well-formed one: the
	// stream must survive and deliver the good sample.
	_, err := conn.Write(make([]byte, 10))
	require.NoError(t, err)

	want := pen.Sample{X: -1, Y: 1, Pressure: 7, Buttons: 0x01}
	_, err = conn.Write(protocol.Encode(want))
	require.NoError(t, err)

	got, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, uint64(1), src.Dropped())
}

func TestNetRebindsAfterReadFault(t *testing.T) {
	src, conn := newTestNet(t)

	got := make(chan pen.Sample, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := src.Next()
		if err != nil {
			errCh <- err
			return
		}
		got <- s
	}()

	// Kill the socket out from under the reader without going through
	// Close: the stream must recreate it on the same address and keep
	// delivering instead of terminating.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, src.current().Close())

	want := pen.Sample{X: 0.25, Y: 0.75, Pressure: 42, Buttons: 0x01}
	var received pen.Sample
	require.Eventually(t, func() bool {
		conn.Write(protocol.Encode(want))
		select {
		case received = <-got:
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond, "stream did not survive the read fault")

	assert.Equal(t, want, received)

	select {
	case err := <-errCh:
		t.Fatalf("stream terminated instead of rebinding: %v", err)
	default:
	}
}

func TestNetCloseDisconnects(t *testing.T) {
	src, _ := newTestNet(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := src.Next()
		errCh <- err
	}()

	// Give the reader a moment to block, then tear the socket down.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, src.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestDummyBlocksUntilClose(t *testing.T) {
	d := NewDummy()

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Next()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		t.Fatalf("dummy produced before Close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, d.Close())
	assert.ErrorIs(t, <-errCh, ErrDisconnected)

	// Close is idempotent.
	assert.NoError(t, d.Close())
}
