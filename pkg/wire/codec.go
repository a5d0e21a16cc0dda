package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire contract limits. These are fixed by the protocol and shared with the
// NIC module; changing them breaks interoperability.
const (
	// MaxPayloadLen is the maximum sensor payload length in bytes.
	MaxPayloadLen = 256

	// MaxDeviceTypeLen is the maximum device-type string length in bytes.
	MaxDeviceTypeLen = 20

	// MaxEnvelopeLen is the maximum encoded envelope size: the two map
	// entries at their limits plus CBOR map, key, and length headers.
	MaxEnvelopeLen = MaxPayloadLen + MaxDeviceTypeLen + 8

	// DefaultMaxAge is the default notification freshness lifetime in
	// seconds (RFC 7252 section 5.10.5).
	DefaultMaxAge = 90
)

// Envelope map keys.
const (
	KeyDeviceType = 0
	KeyPayload    = 1
)

// ErrEncodingOverflow indicates the encoded envelope does not fit the
// caller-supplied output buffer.
var ErrEncodingOverflow = errors.New("encoded envelope exceeds buffer capacity")

// encMode is the CBOR encoder mode for SAPI envelopes.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for SAPI envelopes.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical, // Deterministic key ordering
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet, // Ignore duplicate keys (last wins)
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Envelope wraps a raw sensor payload with its device type.
//
// CBOR encoding:
//
//	{
//	  0: deviceType,  // text: registered device type
//	  1: payload      // text: sensor payload, copied verbatim
//	}
type Envelope struct {
	DeviceType string `cbor:"0,keyasint"`
	Payload    string `cbor:"1,keyasint"`
}

// EncodeEnvelope encodes an envelope to CBOR bytes.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	return Marshal(e)
}

// DecodeEnvelope decodes CBOR bytes into an envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &e, nil
}

// WrapEnvelope encodes the two-entry envelope map into the caller-supplied
// output buffer and returns the number of bytes written.
//
// The payload is opaque at this layer: it may be structured or raw text and
// is copied verbatim as the value at key 1. The device type is trusted to
// already satisfy the registration table's invariants; no validation happens
// here beyond the buffer bound.
func WrapEnvelope(deviceType string, payload []byte, out []byte) (int, error) {
	data, err := Marshal(&Envelope{
		DeviceType: deviceType,
		Payload:    string(payload),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode envelope: %w", err)
	}
	if len(data) > len(out) {
		return 0, fmt.Errorf("%w: %d > %d", ErrEncodingOverflow, len(data), len(out))
	}
	copy(out, data)
	return len(data), nil
}
