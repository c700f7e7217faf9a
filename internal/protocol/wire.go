// Package protocol implements the binary wire format for pen samples
// sent over UDP by remote tablet forwarders.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"

	"penwheel/internal/pen"
)

// PacketSize is the exact length of a pen sample datagram. Datagrams of
// any other length are malformed and must be dropped by the receiver.
const PacketSize = 13

// ErrBadLength is returned by Decode for a datagram that is not exactly
// PacketSize bytes.
var ErrBadLength = errors.New("protocol: bad packet length")

// Wire format, little-endian, 13 bytes total:
//
//	offset 0: x        float32
//	offset 4: y        float32
//	offset 8: pressure uint32
//	offset 12: buttons uint8
//
// x and y are expected pre-normalized to [-1, 1]; out-of-range values
// are clamped downstream, not rejected here.

// Encode serializes a pen sample to wire format.
func Encode(s pen.Sample) []byte {
	buf := make([]byte, PacketSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(s.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(s.Y))
	binary.LittleEndian.PutUint32(buf[8:12], s.Pressure)
	buf[12] = s.Buttons
	return buf
}

// Decode deserializes wire bytes into a pen sample.
func Decode(data []byte) (pen.Sample, error) {
	if len(data) != PacketSize {
		return pen.Sample{}, ErrBadLength
	}

	return pen.Sample{
		X:        math.Float32frombits(binary.LittleEndian.Uint32(data[0:4])),
		Y:        math.Float32frombits(binary.LittleEndian.Uint32(data[4:8])),
		Pressure: binary.LittleEndian.Uint32(data[8:12]),
		Buttons:  data[12],
	}, nil
}
