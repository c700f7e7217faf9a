package protocol

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penwheel/internal/pen"
)

func TestSenderDeliversEncodedSamples(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	s, err := NewSender(ln.LocalAddr().String())
	require.NoError(t, err)
	defer s.Close()

	want := pen.Sample{X: 0.5, Y: -0.25, Pressure: 100, Buttons: 0x02}
	require.NoError(t, s.Send(want))

	buf := make([]byte, 64)
	n, _, err := ln.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, PacketSize, n)

	got, err := Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewSenderRejectsBadAddress(t *testing.T) {
	_, err := NewSender("not an address")
	assert.Error(t, err)
}
