// Package wire provides the JSON-RPC 2.0 envelope types used on the
// /mcp surface, both for requests arriving from clients and for calls
// the gateway forwards to upstreams.
package wire

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// ProtocolVersion is the MCP protocol version this build speaks.
const ProtocolVersion = "2025-06-18"

// MethodInitialize, MethodToolsList and MethodToolsCall are the three
// methods this spine recognizes on the JSON-RPC surface. Anything else
// is MethodNotFound.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// Envelope wraps a decoded JSON-RPC request with the raw bytes it was
// parsed from, so handlers can echo the original id verbatim without
// round-tripping jsonrpc.ID through interface{}.
type Envelope struct {
	Raw       []byte
	Decoded   jsonrpc.Message
	Timestamp time.Time
}

// Decode parses raw JSON-RPC bytes into an Envelope. It does not validate
// method names or params shape; callers run that separately so they can
// produce the precise JSON-RPC error code for each failure mode.
func Decode(raw []byte) (*Envelope, error) {
	msg, err := jsonrpc.DecodeMessage(raw)
	if err != nil {
		return nil, err
	}
	return &Envelope{Raw: raw, Decoded: msg, Timestamp: time.Now()}, nil
}

// Request returns the underlying request, or nil if this envelope does
// not wrap a request (e.g. decoding failed).
func (e *Envelope) Request() *jsonrpc.Request {
	if e == nil || e.Decoded == nil {
		return nil
	}
	req, _ := e.Decoded.(*jsonrpc.Request)
	return req
}

// Method returns the request method, or "" if this is not a request.
func (e *Envelope) Method() string {
	req := e.Request()
	if req == nil {
		return ""
	}
	return req.Method
}

// RawID extracts the "id" field from the raw request bytes. Needed
// because jsonrpc.ID does not marshal correctly through interface{}
// once params have already been inspected and mutated downstream.
func (e *Envelope) RawID() json.RawMessage {
	if e == nil || e.Raw == nil {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(e.Raw, &raw); err != nil {
		return nil
	}
	return raw["id"]
}

// ToolCallParams is the parsed params of a tools/call request.
type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ParseToolCall parses the request params as a tools/call payload.
func (e *Envelope) ParseToolCall() (ToolCallParams, error) {
	var params ToolCallParams
	req := e.Request()
	if req == nil || req.Params == nil {
		return params, errMissingParams
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return params, err
	}
	return params, nil
}
