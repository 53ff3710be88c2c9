// Package stun implements just enough of RFC 5389 to make an obfuscated
// WireGuard flow look like NAT-traversal traffic: header/attribute framing,
// a Data Indication payload wrapper, and Binding Request/Response keepalive
// handling. It does not interoperate with real STUN servers beyond
// superficial protocol validation.
package stun

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// MessageType is the STUN message type field (bytes 0..2 of the header).
type MessageType uint16

const (
	BindingRequest  MessageType = 0x0001
	BindingResponse MessageType = 0x0101
	DataIndication  MessageType = 0x0115
)

// AttrType is a STUN attribute type field.
type AttrType uint16

const (
	AttrXorMappedAddress AttrType = 0x0020
	AttrData             AttrType = 0x0013
	AttrSoftware         AttrType = 0x8022
	AttrFingerprint      AttrType = 0x8028
)

// MagicCookie is the fixed value identifying a STUN message (RFC 5389 §6).
const MagicCookie uint32 = 0x2112A442

const headerSize = 20

var (
	ErrPacketTooShort       = errors.New("stun: packet too short")
	ErrInvalidMagicCookie   = errors.New("stun: invalid magic cookie")
	ErrInvalidTransactionID = errors.New("stun: transaction id must be 12 bytes")
	ErrMalformedAttribute   = errors.New("stun: malformed attribute")
)

// ErrUnknownMessageType is returned with the offending type embedded.
type ErrUnknownMessageType struct {
	Type MessageType
}

func (e *ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("stun: unknown message type 0x%04x", uint16(e.Type))
}

func knownMessageType(t MessageType) bool {
	switch t {
	case BindingRequest, BindingResponse, DataIndication:
		return true
	default:
		return false
	}
}

// Attribute is a single STUN TLV (length excludes padding).
type Attribute struct {
	Type  AttrType
	Value []byte
}

// Message is a parsed/constructable STUN packet.
type Message struct {
	Type          MessageType
	TransactionID [12]byte
	Attributes    []Attribute
}

// NewTransactionID draws 12 cryptographically random bytes.
func NewTransactionID() ([12]byte, error) {
	var id [12]byte
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("stun: generating transaction id: %w", err)
	}
	return id, nil
}

// TransactionIDFromBytes validates that b is exactly 12 bytes and returns
// it as a transaction ID, for callers correlating externally supplied
// request/response pairs.
func TransactionIDFromBytes(b []byte) ([12]byte, error) {
	var id [12]byte
	if len(b) != len(id) {
		return id, ErrInvalidTransactionID
	}
	copy(id[:], b)
	return id, nil
}

func attrPadding(n int) int {
	return (4 - n%4) % 4
}

// bodyLength returns the header's length field: the sum over attributes of
// 4 (type+len) + value length + padding to a 4-byte boundary.
func (m *Message) bodyLength() int {
	total := 0
	for _, a := range m.Attributes {
		total += 4 + len(a.Value) + attrPadding(len(a.Value))
	}
	return total
}

// Serialize produces the wire form of m: a 20-byte header followed by each
// attribute's TLV (zero-padded to a 4-byte boundary). Output is always at
// least 20 bytes.
func (m *Message) Serialize() []byte {
	bodyLen := m.bodyLength()
	buf := make([]byte, headerSize+bodyLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(m.Type))
	binary.BigEndian.PutUint16(buf[2:4], uint16(bodyLen))
	binary.BigEndian.PutUint32(buf[4:8], MagicCookie)
	copy(buf[8:20], m.TransactionID[:])

	off := headerSize
	for _, a := range m.Attributes {
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(a.Type))
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(len(a.Value)))
		copy(buf[off+4:off+4+len(a.Value)], a.Value)
		off += 4 + len(a.Value) + attrPadding(len(a.Value))
	}
	return buf
}

// Parse decodes data into a Message, validating header, magic cookie, and
// attribute bounds.
func Parse(data []byte) (*Message, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrPacketTooShort, headerSize, len(data))
	}

	typ := MessageType(binary.BigEndian.Uint16(data[0:2]))
	if !knownMessageType(typ) {
		return nil, &ErrUnknownMessageType{Type: typ}
	}

	bodyLen := int(binary.BigEndian.Uint16(data[2:4]))
	if len(data) < headerSize+bodyLen {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrPacketTooShort, headerSize+bodyLen, len(data))
	}

	cookie := binary.BigEndian.Uint32(data[4:8])
	if cookie != MagicCookie {
		return nil, ErrInvalidMagicCookie
	}

	m := &Message{Type: typ}
	copy(m.TransactionID[:], data[8:20])

	end := headerSize + bodyLen
	off := headerSize
	for off < end {
		if off+4 > len(data) {
			return nil, ErrMalformedAttribute
		}
		aType := AttrType(binary.BigEndian.Uint16(data[off : off+2]))
		aLen := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		if off+4+aLen > len(data) {
			return nil, ErrMalformedAttribute
		}
		value := make([]byte, aLen)
		copy(value, data[off+4:off+4+aLen])
		m.Attributes = append(m.Attributes, Attribute{Type: aType, Value: value})
		off += 4 + aLen + attrPadding(aLen)
	}

	return m, nil
}

// HasMagicCookie reports whether data's bytes 4..8 equal MagicCookie. It
// requires at least 8 bytes.
func HasMagicCookie(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return binary.BigEndian.Uint32(data[4:8]) == MagicCookie
}

// PeekType reads the message type from bytes 0..2 without parsing the rest.
func PeekType(data []byte) (MessageType, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: need 2 bytes, got %d", ErrPacketTooShort, len(data))
	}
	return MessageType(binary.BigEndian.Uint16(data[0:2])), nil
}

// Attr returns the first attribute of the given type, if any.
func (m *Message) Attr(t AttrType) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Type == t {
			return a, true
		}
	}
	return Attribute{}, false
}
