// Package rpc implements the /mcp JSON-RPC surface shared by both the
// in-process host and the gateway host, plus the manifest and
// diagnostics endpoints (spec.md §4.10, §6).
package rpc

import (
	"context"
	"encoding/json"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/tool"
)

// ToolSummary is the tools/list projection of a catalog entry.
type ToolSummary struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// InitializeResult is returned for the initialize method.
type InitializeResult struct {
	ProtocolVersion string
	ServerName      string
}

// Service abstracts the in-process host and gateway host behind one
// surface the handler can drive identically.
type Service interface {
	Initialize(ctx context.Context) InitializeResult
	ToolsList(ctx context.Context) []ToolSummary
	ToolsCall(ctx context.Context, name string, args map[string]any, ac *auth.Context) tool.Result
}

// Diagnostics is implemented only by hosts that expose an operational
// snapshot beyond the JSON-RPC surface (the gateway host).
type Diagnostics interface {
	Diagnostics(ctx context.Context) any
}

// Manifest is implemented by hosts that can describe themselves for the
// well-known manifest endpoint.
type Manifest interface {
	Manifest(ctx context.Context) any
}
