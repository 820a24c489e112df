// Package protocol implements the length-prefixed wire framing for stormgmt.
//
// It solves TCP's sticky packet problem with a fixed-width ASCII length
// header followed by the payload. The receiver reads the header first to
// determine the payload length, then reads exactly that many bytes, so the
// JSON decoder never sees a partial message and no streaming parser is
// needed.
//
// Frame format:
//
//	0          10
//	┌──────────┬──────────────────────┐
//	│  length  │      payload ...     │
//	│ 10 ASCII │  `length` bytes of   │
//	│  digits  │      UTF-8 JSON      │
//	└──────────┴──────────────────────┘
//
// The header is zero-padded decimal ("0000000042"), so frames are legible in
// a packet capture. There is no delimiter between frames.
package protocol

import (
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the fixed width of the decimal length header.
const HeaderLen = 10

// MaxPayload is the largest payload length the 10-digit header can describe.
const MaxPayload = 9999999999

var (
	// ErrEOF reports that the peer closed the stream before a complete
	// frame was read. It signals disconnect, never malformed data.
	ErrEOF = errors.New("protocol: peer closed the stream")

	// ErrEmptyPayload reports an attempt to write a zero-length frame.
	ErrEmptyPayload = errors.New("protocol: empty payload")
)

// WriteFrame writes payload to w as one frame. The header and payload are
// assembled into a single buffer and written with one Write call so that
// frames from a correctly locked writer never interleave.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if len(payload) > MaxPayload {
		return fmt.Errorf("protocol: payload of %d bytes exceeds header capacity", len(payload))
	}

	buf := make([]byte, 0, HeaderLen+len(payload))
	buf = fmt.Appendf(buf, "%0*d", HeaderLen, len(payload))
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads one complete frame from r and returns its payload.
//
// It reads exactly HeaderLen bytes, parses them as a non-negative decimal
// integer N, then reads exactly N more bytes. io.ReadFull guarantees the
// payload is fully buffered before the caller decodes it, even when the
// stream delivers one byte at a time. A peer close at any point before
// N+HeaderLen bytes yields ErrEOF; a header that is not all digits yields a
// parse error instead.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrEOF
		}
		return nil, err
	}

	n, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrEOF
		}
		return nil, err
	}
	return payload, nil
}

// parseHeader converts the fixed-width header into a length. Every byte must
// be an ASCII digit; strconv is deliberately avoided because it accepts sign
// prefixes the wire format forbids.
func parseHeader(header []byte) (int, error) {
	n := 0
	for _, c := range header {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("protocol: malformed length header %q", header)
		}
		n = n*10 + int(c-'0')
	}
	if n < 1 {
		return 0, fmt.Errorf("protocol: invalid frame length %d", n)
	}
	return n, nil
}
