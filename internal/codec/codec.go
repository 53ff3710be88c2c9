// Package codec implements the WireGuard packet obfuscation wrapper: header
// scrambling, random dummy padding, and the keyed keystream from
// internal/obfuscation, composed into encode/decode operations over a
// single datagram.
package codec

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"wgobfs/internal/obfuscation"
)

const (
	// MaxTotal bounds dummy padding: padding never takes a packet past
	// MaxTotal, and packets already at or above it get no padding. It does
	// not limit the size of the packet itself.
	MaxTotal = 1024
	// MaxDummyHandshake bounds dummy padding on handshake-type packets,
	// which tolerate more overhead than steady-state data packets.
	MaxDummyHandshake = 512
	// DefaultMaxDummyData is the default padding cap for Data packets.
	DefaultMaxDummyData = 4
)

var (
	ErrPacketTooShort         = errors.New("codec: packet too short")
	ErrDecodingFailed         = errors.New("codec: decoding failed")
	ErrInvalidWireGuardPacket = errors.New("codec: invalid wireguard packet")
)

// Codec wraps/unwraps a single WireGuard datagram with the obfuscation
// engine. Codecs are value-like: built once from a key and max dummy
// length, then reused concurrently without mutation.
type Codec struct {
	engine       *obfuscation.Engine
	maxDummyData int
}

// New validates key via obfuscation.New and returns a Codec. A negative
// maxDummyData takes the default of 4; zero disables dummy padding on
// Data packets (handshake packets still get up to MaxDummyHandshake).
func New(key []byte, maxDummyData int) (*Codec, error) {
	e, err := obfuscation.New(key)
	if err != nil {
		return nil, err
	}
	if maxDummyData < 0 {
		maxDummyData = DefaultMaxDummyData
	}
	return &Codec{engine: e, maxDummyData: maxDummyData}, nil
}

// Encode wraps packet (a plaintext WireGuard datagram of the given type)
// with header scrambling, random dummy padding, then the keystream. The
// returned slice is freshly allocated; packet is not modified.
func (c *Codec) Encode(packet []byte, typ obfuscation.MessageType) ([]byte, error) {
	if len(packet) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 bytes, got %d", ErrPacketTooShort, len(packet))
	}

	d, err := c.dummyLength(len(packet), typ)
	if err != nil {
		return nil, err
	}

	r, err := randomByte1to255()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(packet)+d)
	buf[0] = packet[0] ^ r
	buf[1] = r
	binary.LittleEndian.PutUint16(buf[2:4], uint16(d))
	copy(buf[4:len(packet)], packet[4:])
	for i := len(packet); i < len(buf); i++ {
		buf[i] = 0xFF
	}

	c.engine.Xor(buf)
	return buf, nil
}

func (c *Codec) dummyLength(packetLen int, typ obfuscation.MessageType) (int, error) {
	if packetLen >= MaxTotal {
		return 0, nil
	}
	room := MaxTotal - packetLen
	limit := c.maxDummyData
	if typ == obfuscation.HandshakeInitiation || typ == obfuscation.HandshakeResponse {
		limit = MaxDummyHandshake
	}
	if limit > room {
		limit = room
	}
	if limit <= 0 {
		return 0, nil
	}
	n, err := randomUint32()
	if err != nil {
		return 0, err
	}
	return int(n % uint32(limit+1)), nil
}

// Decode reverses Encode. If, after removing the keystream, the buffer no
// longer looks obfuscated, it is treated as a legacy plaintext passthrough
// and the original input is returned unmodified, so peers sending plain
// WireGuard can share the same relay.
func (c *Codec) Decode(packet []byte) ([]byte, error) {
	if len(packet) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 bytes, got %d", ErrPacketTooShort, len(packet))
	}

	buf := make([]byte, len(packet))
	copy(buf, packet)
	c.engine.Xor(buf)

	if !obfuscation.IsObfuscated(buf) {
		return packet, nil
	}

	buf[0] ^= buf[1]
	d := int(binary.LittleEndian.Uint16(buf[2:4]))
	if d > len(buf)-4 {
		return nil, fmt.Errorf("%w: dummy length %d exceeds buffer", ErrDecodingFailed, d)
	}
	buf = buf[:len(buf)-d]

	buf[1], buf[2], buf[3] = 0, 0, 0

	if _, ok := obfuscation.DetectType(buf); !ok {
		return nil, ErrInvalidWireGuardPacket
	}
	return buf, nil
}

func randomByte1to255() (byte, error) {
	n, err := randomUint32()
	if err != nil {
		return 0, err
	}
	return byte(1 + n%255), nil
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("codec: reading random bytes: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
