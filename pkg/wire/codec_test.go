package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		deviceType string
		payload    string
	}{
		{name: "temp reading", deviceType: "temp", payload: "23.5"},
		{name: "humidity reading", deviceType: "humidity", payload: "48%"},
		{name: "empty payload", deviceType: "temp", payload: ""},
		{name: "structured payload", deviceType: "gps", payload: `{"lat":37.77,"lon":-122.41}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf [MaxEnvelopeLen]byte
			n, err := WrapEnvelope(tt.deviceType, []byte(tt.payload), buf[:])
			if err != nil {
				t.Fatalf("WrapEnvelope failed: %v", err)
			}

			e, err := DecodeEnvelope(buf[:n])
			if err != nil {
				t.Fatalf("DecodeEnvelope failed: %v", err)
			}
			if e.DeviceType != tt.deviceType {
				t.Errorf("device type: got %q, want %q", e.DeviceType, tt.deviceType)
			}
			if e.Payload != tt.payload {
				t.Errorf("payload: got %q, want %q", e.Payload, tt.payload)
			}
		})
	}
}

func TestEnvelopeKeyOrder(t *testing.T) {
	var buf [MaxEnvelopeLen]byte
	n, err := WrapEnvelope("temp", []byte("23.5"), buf[:])
	if err != nil {
		t.Fatalf("WrapEnvelope failed: %v", err)
	}

	// Canonical encoding: map(2), key 0, "temp", key 1, "23.5".
	want := []byte{
		0xa2, // map of 2 entries
		0x00, // key 0
		0x64, 't', 'e', 'm', 'p', // text "temp"
		0x01, // key 1
		0x64, '2', '3', '.', '5', // text "23.5"
	}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("encoding mismatch:\n got %x\nwant %x", buf[:n], want)
	}
}

func TestWrapEnvelopeOverflow(t *testing.T) {
	payload := []byte(strings.Repeat("x", MaxPayloadLen))

	t.Run("fits exact budget", func(t *testing.T) {
		var buf [MaxEnvelopeLen]byte
		n, err := WrapEnvelope(strings.Repeat("d", MaxDeviceTypeLen), payload, buf[:])
		if err != nil {
			t.Fatalf("WrapEnvelope failed at the size limit: %v", err)
		}
		if n > MaxEnvelopeLen {
			t.Errorf("written length %d exceeds MaxEnvelopeLen %d", n, MaxEnvelopeLen)
		}
	})

	t.Run("buffer too small", func(t *testing.T) {
		small := make([]byte, 16)
		_, err := WrapEnvelope("temp", payload, small)
		if !errors.Is(err, ErrEncodingOverflow) {
			t.Errorf("expected ErrEncodingOverflow, got %v", err)
		}
		// A failed wrap must not leave a partial envelope behind.
		if _, derr := DecodeEnvelope(small); derr == nil {
			t.Error("expected undecodable buffer after overflow")
		}
	})
}

func TestEncodeDecodeEnvelope(t *testing.T) {
	data, err := EncodeEnvelope(&Envelope{DeviceType: "temp", Payload: "23.5"})
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}
	e, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	if e.DeviceType != "temp" || e.Payload != "23.5" {
		t.Errorf("round trip mismatch: %+v", e)
	}
}
