package stun

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// fingerprintXOR is XORed into the CRC-32 checksum before it is stored in
// the FINGERPRINT attribute, per RFC 5389 §15.5.
const fingerprintXOR uint32 = 0x5354554E

// fastPathDataType is the big-endian AttrData type the unwrap fast path
// looks for at offset 20 of a DataIndication; the two bytes after it are
// the attribute length.
var fastPathDataType = [2]byte{0x00, 0x13}

// Masker wraps/unwraps obfuscated payloads in synthetic STUN messages so
// the flow mimics NAT-traversal traffic, and produces keepalives/binding
// responses. Maskers are stateless and safe for concurrent use.
type Masker struct{}

// NewMasker returns a ready-to-use Masker. There is no per-instance state.
func NewMasker() *Masker {
	return &Masker{}
}

var errEmptyPayload = fmt.Errorf("stun: wrap requires a non-empty payload")

// Wrap constructs a DataIndication carrying payload as its Data attribute,
// with a fresh random transaction ID, and returns the serialized bytes.
func (*Masker) Wrap(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}
	txid, err := NewTransactionID()
	if err != nil {
		return nil, err
	}
	m := &Message{
		Type:          DataIndication,
		TransactionID: txid,
		Attributes:    []Attribute{{Type: AttrData, Value: payload}},
	}
	return m.Serialize(), nil
}

// Unwrap extracts the Data attribute's value from a DataIndication. It
// returns (nil, nil) rather than an error when data isn't long enough,
// lacks the magic cookie, or isn't a DataIndication: those are "not for
// us", not malformed STUN.
func (*Masker) Unwrap(data []byte) ([]byte, error) {
	if len(data) < 24 || !HasMagicCookie(data) {
		return nil, nil
	}
	typ, err := PeekType(data)
	if err != nil || typ != DataIndication {
		return nil, nil
	}

	if data[20] == fastPathDataType[0] && data[21] == fastPathDataType[1] {
		l := int(binary.BigEndian.Uint16(data[22:24]))
		if 24+l > len(data) {
			return nil, ErrMalformedAttribute
		}
		out := make([]byte, l)
		copy(out, data[24:24+l])
		return out, nil
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	a, ok := m.Attr(AttrData)
	if !ok {
		return nil, ErrMalformedAttribute
	}
	return a.Value, nil
}

// GenerateKeepalive builds a BindingRequest with a random transaction ID
// and a FINGERPRINT attribute, returning the serialized bytes. Intended to
// be sent at a fixed cadence (10s) when no other traffic flows; enforcing
// that cadence is the relay's job, not this package's.
//
// The fingerprint is computed over the message as serialized WITHOUT the
// fingerprint attribute, then the attribute is appended and the message
// reserialized. RFC 5389 §15.5 instead requires the CRC input's length
// field to already count the attribute, so a strict validator will reject
// this value; it only needs to look like a plausible keepalive on the
// wire.
func (*Masker) GenerateKeepalive() ([]byte, error) {
	txid, err := NewTransactionID()
	if err != nil {
		return nil, err
	}
	m := &Message{Type: BindingRequest, TransactionID: txid}

	checksum := crc32.ChecksumIEEE(m.Serialize())
	fp := checksum ^ fingerprintXOR

	fpBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(fpBytes, fp)
	m.Attributes = append(m.Attributes, Attribute{Type: AttrFingerprint, Value: fpBytes})

	return m.Serialize(), nil
}

// HandleBindingRequest parses req and, if it is a BindingRequest, returns a
// serialized BindingResponse echoing its transaction ID with no
// attributes. Returns (nil, nil) for anything else.
func (*Masker) HandleBindingRequest(req []byte) ([]byte, error) {
	m, err := Parse(req)
	if err != nil {
		return nil, nil
	}
	if m.Type != BindingRequest {
		return nil, nil
	}
	resp := &Message{Type: BindingResponse, TransactionID: m.TransactionID}
	return resp.Serialize(), nil
}
