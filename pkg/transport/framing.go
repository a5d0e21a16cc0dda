package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sapi-protocol/sapi-go/pkg/log"
)

// Framing constants.
const (
	// FlagByte delimits frames.
	FlagByte = 0x7E

	// EscapeByte introduces a stuffed byte.
	EscapeByte = 0x7D

	// escapeXOR is XORed with the byte following an escape.
	escapeXOR = 0x20

	// MaxFramePayload is the largest payload the NIC module accepts.
	MaxFramePayload = 255

	// fcsLen is the size of the frame check sequence in bytes.
	fcsLen = 2

	// DefaultReadTimeout bounds how long a reader waits for a complete
	// frame on the serial link.
	DefaultReadTimeout = 2 * time.Second
)

// Framing errors.
var (
	ErrFrameTooLarge  = errors.New("frame payload too large")
	ErrFrameEmpty     = errors.New("frame payload is empty")
	ErrFrameTruncated = errors.New("frame truncated")
	ErrBadChecksum    = errors.New("frame checksum mismatch")
)

// fcs16 computes the CCITT frame check sequence (poly 0x8408, init 0xFFFF,
// final complement) over data.
func fcs16(data []byte) uint16 {
	fcs := uint16(0xFFFF)
	for _, b := range data {
		fcs ^= uint16(b)
		for i := 0; i < 8; i++ {
			if fcs&1 != 0 {
				fcs = (fcs >> 1) ^ 0x8408
			} else {
				fcs >>= 1
			}
		}
	}
	return fcs ^ 0xFFFF
}

// stuff appends b to dst, escaping flag and escape bytes.
func stuff(dst []byte, b byte) []byte {
	if b == FlagByte || b == EscapeByte {
		return append(dst, EscapeByte, b^escapeXOR)
	}
	return append(dst, b)
}

// EncodeFrame encodes payload as a complete HDLC frame: opening flag,
// stuffed payload and FCS, closing flag.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrFrameEmpty
	}
	if len(payload) > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxFramePayload)
	}

	fcs := fcs16(payload)

	frame := make([]byte, 0, len(payload)+fcsLen+2)
	frame = append(frame, FlagByte)
	for _, b := range payload {
		frame = stuff(frame, b)
	}
	frame = stuff(frame, byte(fcs))
	frame = stuff(frame, byte(fcs>>8))
	frame = append(frame, FlagByte)
	return frame, nil
}

// DecodeFrame unstuffs and validates the bytes between two flags and
// returns the payload. raw must not include the flag delimiters.
func DecodeFrame(raw []byte) ([]byte, error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		if b == EscapeByte {
			i++
			if i >= len(raw) {
				return nil, ErrFrameTruncated
			}
			b = raw[i] ^ escapeXOR
		}
		out = append(out, b)
	}

	if len(out) < fcsLen+1 {
		return nil, ErrFrameTruncated
	}

	payload := out[:len(out)-fcsLen]
	if len(payload) > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxFramePayload)
	}

	got := uint16(out[len(out)-fcsLen]) | uint16(out[len(out)-1])<<8
	if want := fcs16(payload); got != want {
		return nil, fmt.Errorf("%w: got %04x, want %04x", ErrBadChecksum, got, want)
	}
	return payload, nil
}

// FrameWriter writes HDLC frames to an underlying writer.
type FrameWriter struct {
	mu     sync.Mutex
	w      io.Writer
	logger log.Logger
}

// NewFrameWriter creates a frame writer over w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, logger: log.NoopLogger{}}
}

// SetLogger configures event logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	fw.logger = logger
}

// WriteFrame frames payload and writes it.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	fw.logger.Log(log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryTransport,
		Message:   fmt.Sprintf("frame out: %d bytes", len(payload)),
	})
	return nil
}

// FrameReader reads HDLC frames from an underlying reader.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader creates a frame reader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame reads the next complete frame and returns its payload.
// Empty frames (back-to-back flags used as idle fill) are skipped.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	// Scan to an opening flag.
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == FlagByte {
			break
		}
	}

	// Collect raw bytes up to the closing flag.
	var raw []byte
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, ErrFrameTruncated
			}
			return nil, err
		}
		if b == FlagByte {
			if len(raw) == 0 {
				// Idle fill between frames; keep scanning.
				continue
			}
			break
		}
		raw = append(raw, b)
	}

	return DecodeFrame(raw)
}
