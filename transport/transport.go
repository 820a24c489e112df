// Package transport implements the framed message session between the
// management client and a plugin.
//
// One Transport owns one bidirectional byte stream and serializes exactly
// one in-flight request at a time: Call blocks the issuing goroutine until a
// full reply frame arrives or the stream signals EOF, and a second
// SendRequest while a reply is outstanding is rejected. Concurrency across
// plugins is achieved by running independent transports, never by
// pipelining on one.
//
// Flow:
//
//	Call(method, params)
//	  ├─ codec.Encode(params) → message.NewRequest → frame → conn
//	  └─ frame ← conn → message → fault? raise : codec.Decode(result)
//
// All transport failures surface as *fault.Error so callers branch on codes
// only. Transport faults (EOF mid-frame, malformed header, timeout) are
// connection-fatal; the caller must Close and, if desired, reconnect.
package transport

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"stormgmt/codec"
	"stormgmt/fault"
	"stormgmt/message"
	"stormgmt/protocol"
)

// Transport is one connection's session state. Create with Dial or New.
type Transport struct {
	conn net.Conn

	writeMu sync.Mutex // one frame at a time; header and body never interleave

	mu       sync.Mutex
	inflight bool
	closed   bool
	timeout  time.Duration // reply wait bound; 0 means wait forever
}

// Dial connects to a plugin's unix-domain socket at path.
func Dial(path string) (*Transport, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fault.Newf(fault.ErrTransport, "connect %s: %v", path, err)
	}
	return New(conn), nil
}

// New wraps an already-connected stream.
func New(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// SetTimeout bounds how long ReceiveMessage waits for a single reply. Zero
// disables the bound. It does not cancel work already accepted by the peer.
func (t *Transport) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

// Timeout returns the current reply wait bound.
func (t *Transport) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

// SendRequest encodes and writes one request frame. It fails if the
// transport is closed or a prior request's reply is still outstanding.
func (t *Transport) SendRequest(method string, params any) error {
	raw, err := encodePayload(params)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return closedErr()
	}
	if t.inflight {
		t.mu.Unlock()
		return fault.New(fault.ErrTransport, "request already in flight on this connection")
	}
	t.mu.Unlock()

	if err := t.send(message.NewRequest(method, raw)); err != nil {
		return err
	}

	t.mu.Lock()
	t.inflight = true
	t.mu.Unlock()
	return nil
}

// SendResponse writes a success reply for the request with the given id.
func (t *Transport) SendResponse(id int, result any) error {
	raw, err := encodePayload(result)
	if err != nil {
		return err
	}
	return t.send(message.NewResponse(id, raw))
}

// SendFault writes a fault reply carrying fe.
func (t *Transport) SendFault(id int, fe *fault.Error) error {
	return t.send(message.NewFault(id, fe))
}

// Send writes an already-built envelope as one frame.
func (t *Transport) Send(m *message.Message) error {
	return t.send(m)
}

func (t *Transport) send(m *message.Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fault.Newf(fault.ErrTransport, "marshal message: %v", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return closedErr()
	}

	if err := protocol.WriteFrame(t.conn, body); err != nil {
		if errors.Is(err, protocol.ErrEmptyPayload) {
			return fault.New(fault.ErrInvalidArgument, "empty payload")
		}
		return t.mapStreamErr(err)
	}
	return nil
}

// ReceiveMessage blocks until one complete frame is read, then decodes the
// envelope. Peer disconnect surfaces as an ErrTransportEOF fault, distinct
// from malformed data.
func (t *Transport) ReceiveMessage() (*message.Message, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, closedErr()
	}
	timeout := t.timeout
	t.mu.Unlock()

	if timeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(timeout))
		defer t.conn.SetReadDeadline(time.Time{})
	}

	body, err := protocol.ReadFrame(t.conn)
	if err != nil {
		return nil, t.mapStreamErr(err)
	}

	var m message.Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fault.Newf(fault.ErrTransport, "malformed message: %v", err)
	}

	if m.Kind() != message.KindRequest {
		t.mu.Lock()
		t.inflight = false
		t.mu.Unlock()
	}
	return &m, nil
}

// Call is the synchronous RPC primitive: send one request, block for its
// reply. A fault reply is returned as the reconstructed *fault.Error; a
// success reply is decoded through the codec into a value tree.
func (t *Transport) Call(method string, params any) (any, error) {
	if err := t.SendRequest(method, params); err != nil {
		return nil, err
	}

	m, err := t.ReceiveMessage()
	if err != nil {
		return nil, err
	}

	switch m.Kind() {
	case message.KindFault:
		if m.ID != message.FixedID {
			return nil, fault.Newf(fault.ErrTransport, "correlation id mismatch: got %d, want %d", m.ID, message.FixedID)
		}
		return nil, m.Error
	case message.KindResponse:
		if m.ID != message.FixedID {
			return nil, fault.Newf(fault.ErrTransport, "correlation id mismatch: got %d, want %d", m.ID, message.FixedID)
		}
		return codec.Decode(m.Result)
	default:
		return nil, fault.Newf(fault.ErrTransport, "unexpected request %q while awaiting reply", m.Method)
	}
}

// Close releases the underlying stream. It is idempotent; subsequent
// operations fail with ErrTransportClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *Transport) mapStreamErr(err error) *fault.Error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()

	switch {
	case closed:
		return closedErr()
	case errors.Is(err, protocol.ErrEOF):
		return fault.New(fault.ErrTransportEOF, "peer closed the connection")
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fault.New(fault.ErrTimeout, "timed out waiting for reply")
		}
		return fault.Newf(fault.ErrTransport, "stream failure: %v", err)
	}
}

func closedErr() *fault.Error {
	return fault.New(fault.ErrTransportClosed, "transport is closed")
}

// encodePayload runs params through the codec; nil encodes as an explicit
// null at the message layer.
func encodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := codec.Encode(v)
	if err != nil {
		return nil, fault.Newf(fault.ErrInvalidArgument, "encode payload: %v", err)
	}
	return data, nil
}
