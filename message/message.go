// Package message defines the JSON-RPC-style envelope exchanged between the
// management client and a plugin.
//
// A message is exactly one of:
//
//	Request:  {"method": "volume_create", "id": 100, "params": {...}}
//	Response: {"id": 100, "result": ...}
//	Fault:    {"id": 100, "error": {"code": 102, "message": "...", "data": null}}
//
// The protocol is strictly one request at a time per connection, so the id
// field carries a fixed value; the receiving side still validates it as a
// defense against a desynchronized stream.
package message

import (
	"encoding/json"

	"stormgmt/fault"
)

// FixedID is the correlation id stamped on every request. The transport
// rejects responses whose id differs.
const FixedID = 100

// Kind classifies a decoded message.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindFault
)

// rawNull keeps the "params"/"result" key present on the wire when the
// value is absent, mirroring the protocol's explicit nulls.
var rawNull = json.RawMessage("null")

// Message is the wire envelope. Params and Result are RawMessage so that an
// explicit null survives decoding distinct from a missing key, and so the
// payload is only interpreted by the codec layer, never by this package.
type Message struct {
	ID     int             `json:"id"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *fault.Error    `json:"error,omitempty"`
}

// Kind reports whether m is a request, a response, or a fault.
func (m *Message) Kind() Kind {
	switch {
	case m.Method != "":
		return KindRequest
	case m.Error != nil:
		return KindFault
	default:
		return KindResponse
	}
}

// NewRequest builds a request envelope. A nil params payload is sent as an
// explicit null.
func NewRequest(method string, params json.RawMessage) *Message {
	if len(params) == 0 {
		params = rawNull
	}
	return &Message{ID: FixedID, Method: method, Params: params}
}

// NewResponse builds a success response. A nil result payload is sent as an
// explicit null so the peer can tell "succeeded with no value" from a
// malformed reply.
func NewResponse(id int, result json.RawMessage) *Message {
	if len(result) == 0 {
		result = rawNull
	}
	return &Message{ID: id, Result: result}
}

// NewFault builds a fault response carrying fe.
func NewFault(id int, fe *fault.Error) *Message {
	return &Message{ID: id, Error: fe}
}
