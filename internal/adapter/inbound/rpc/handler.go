package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/tool"
	"github.com/contextify/contextify/pkg/wire"
)

// ManifestPath and DiagnosticsPath are the two operational endpoints
// alongside the JSON-RPC surface (spec.md §6).
const (
	MCPPath         = "/mcp"
	ManifestPath    = "/.well-known/contextify/manifest"
	DiagnosticsPath = "/contextify/gateway/diagnostics"
)

// AuthExtractor builds an auth.Context from an inbound HTTP request,
// e.g. reading an Authorization header or cookies. A nil extractor
// means no auth context is ever propagated.
type AuthExtractor func(r *http.Request) *auth.Context

// Handler serves the /mcp JSON-RPC surface and its two sibling
// operational endpoints.
type Handler struct {
	service    Service
	limits     Limits
	auth       AuthExtractor
	log        *slog.Logger
	serverName string

	tenantIDHeader       string
	userIDHeader         string
	includeCorrelationID bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLimits overrides the default request validation limits.
func WithLimits(l Limits) Option { return func(h *Handler) { h.limits = l } }

// WithAuthExtractor sets how the handler derives an auth.Context from
// each inbound request.
func WithAuthExtractor(fn AuthExtractor) Option { return func(h *Handler) { h.auth = fn } }

// WithIdentityHeaders sets which request headers carry the tenant/user
// identity used for rate-limit scoping (spec.md §4.9). Empty strings
// keep the defaults ("X-Tenant-Id"/"X-User-Id").
func WithIdentityHeaders(tenantHeader, userHeader string) Option {
	return func(h *Handler) {
		if tenantHeader != "" {
			h.tenantIDHeader = tenantHeader
		}
		if userHeader != "" {
			h.userIDHeader = userHeader
		}
	}
}

// WithCorrelationIDInErrors enables a short correlation id attached to
// every JSON-RPC error response (spec.md §7).
func WithCorrelationIDInErrors(enabled bool) Option {
	return func(h *Handler) { h.includeCorrelationID = enabled }
}

// NewHandler builds a Handler around a Service.
func NewHandler(service Service, serverName string, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		service:        service,
		limits:         DefaultLimits,
		log:            logger,
		serverName:     serverName,
		tenantIDHeader: "X-Tenant-Id",
		userIDHeader:   "X-User-Id",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc(MCPPath, h.handleMCP)
	mux.HandleFunc(ManifestPath, h.handleManifest)
	mux.HandleFunc(DiagnosticsPath, h.handleDiagnostics)
}

func (h *Handler) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeErrorStatus(w, http.StatusRequestEntityTooLarge, nil, wire.CodeInvalidParams, "request body exceeds maximum allowed size")
			return
		}
		h.log.Debug("mcp request body read failed", "error", err)
		h.writeError(w, nil, wire.CodeParseError, "Parse error")
		return
	}

	if !json.Valid(body) {
		h.writeError(w, nil, wire.CodeParseError, "Parse error")
		return
	}

	var fields envelopeFields
	if err := json.Unmarshal(body, &fields); err != nil {
		h.writeError(w, nil, wire.CodeInvalidRequest, "Invalid Request")
		return
	}
	if fields.JSONRPC != "2.0" || fields.Method == "" {
		h.writeError(w, fields.ID, wire.CodeInvalidRequest, "Invalid Request")
		return
	}

	var ac *auth.Context
	if h.auth != nil {
		ac = h.auth(r)
	}
	if tenantID, userID := r.Header.Get(h.tenantIDHeader), r.Header.Get(h.userIDHeader); tenantID != "" || userID != "" {
		if ac == nil {
			ac = &auth.Context{}
		}
		ac.TenantID = tenantID
		ac.UserID = userID
	}

	switch fields.Method {
	case wire.MethodInitialize:
		h.handleInitialize(r.Context(), w, fields.ID)
	case wire.MethodToolsList:
		h.handleToolsList(r.Context(), w, fields.ID)
	case wire.MethodToolsCall:
		h.handleToolsCall(r.Context(), w, fields.ID, body, ac)
	default:
		h.writeError(w, fields.ID, wire.CodeMethodNotFound, "Method not found")
	}
}

func (h *Handler) handleInitialize(ctx context.Context, w http.ResponseWriter, id json.RawMessage) {
	res := h.service.Initialize(ctx)
	h.writeResult(w, id, map[string]any{
		"protocolVersion": res.ProtocolVersion,
		"serverInfo":      map[string]any{"name": res.ServerName},
		"capabilities":    map[string]any{"tools": map[string]any{}},
	})
}

func (h *Handler) handleToolsList(ctx context.Context, w http.ResponseWriter, id json.RawMessage) {
	tools := h.service.ToolsList(ctx)
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		entry := map[string]any{"name": t.Name, "description": t.Description}
		if len(t.InputSchema) > 0 {
			entry["inputSchema"] = json.RawMessage(t.InputSchema)
		}
		out = append(out, entry)
	}
	h.writeResult(w, id, map[string]any{"tools": out})
}

func (h *Handler) handleToolsCall(ctx context.Context, w http.ResponseWriter, id json.RawMessage, body []byte, ac *auth.Context) {
	var req struct {
		Params wire.ToolCallParams `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Params.Name == "" {
		h.writeError(w, id, wire.CodeInvalidParams, "missing or invalid params")
		return
	}
	if err := validateToolName(req.Params.Name); err != nil {
		h.writeError(w, id, wire.CodeInvalidParams, err.Error())
		return
	}
	if err := validateArguments(req.Params.Arguments, h.limits); err != nil {
		h.writeError(w, id, wire.CodeInvalidParams, err.Error())
		return
	}

	res := h.service.ToolsCall(ctx, req.Params.Name, req.Params.Arguments, ac)
	if res.IsSuccess() {
		content := make([]map[string]any, 0, 1)
		if len(res.Success.JSONContent) > 0 {
			content = append(content, map[string]any{"type": "json", "json": json.RawMessage(res.Success.JSONContent)})
		} else {
			content = append(content, map[string]any{"type": "text", "text": res.Success.TextContent})
		}
		h.writeResult(w, id, map[string]any{"content": content})
		return
	}

	h.writeToolError(w, id, *res.Failure)
}

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	var payload any
	if m, ok := h.service.(Manifest); ok {
		payload = m.Manifest(r.Context())
	} else {
		payload = map[string]any{"name": h.serverName, "version": wire.ProtocolVersion, "capabilities": map[string]any{"tools": map[string]any{}}}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	d, ok := h.service.(Diagnostics)
	if !ok {
		http.Error(w, "diagnostics not available for this host", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.Diagnostics(r.Context()))
}

func (h *Handler) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wire.NewResult(id, result))
}

func (h *Handler) writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wire.NewError(id, code, message, h.errorData(nil)))
}

// writeErrorStatus writes a JSON-RPC error with a non-200 HTTP status,
// for the two cases spec.md §7 calls out: 413 for oversized bodies and
// 429 for rate limiting.
func (h *Handler) writeErrorStatus(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(wire.NewError(id, code, message, h.errorData(nil)))
}

// errorData merges a correlation id into an error's data payload when
// IncludeCorrelationIDInErrors is set (spec.md §7), without disturbing
// a caller that already has fields to report.
func (h *Handler) errorData(data map[string]any) map[string]any {
	if !h.includeCorrelationID {
		return data
	}
	if data == nil {
		data = map[string]any{}
	}
	data["correlationId"] = uuid.NewString()
	return data
}

// toolErrorCode maps the tool error taxonomy onto the JSON-RPC code
// space (spec.md §7).
func toolErrorCode(code tool.ErrorCode) int {
	switch code {
	case tool.ErrInvalidArgument:
		return wire.CodeInvalidParams
	case tool.ErrToolNotFound:
		return wire.CodeInvalidParams
	case tool.ErrPolicyDenied:
		return wire.CodeInvalidParams
	case tool.ErrRateLimited:
		return wire.CodeRateLimited
	case tool.ErrUpstreamUnavailable:
		return wire.CodeRateLimited
	case tool.ErrTimeout, tool.ErrCancelled:
		return wire.CodeServerError
	case tool.ErrUpstreamError:
		return wire.CodeServerError
	case tool.ErrParseError:
		return wire.CodeInvalidParams
	default:
		return wire.CodeInternalError
	}
}

func (h *Handler) writeToolError(w http.ResponseWriter, id json.RawMessage, f tool.Failure) {
	code := toolErrorCode(f.ErrorCode)
	var data map[string]any
	if f.RetryAfterSec != nil {
		data = map[string]any{"retryAfterSec": *f.RetryAfterSec}
	}
	data = h.errorData(data)

	status := http.StatusOK
	if f.ErrorCode == tool.ErrRateLimited {
		status = http.StatusTooManyRequests
		h.setRateLimitHeaders(w, f)
	}
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(wire.NewError(id, code, f.Message, data))
}

// setRateLimitHeaders sets the three response headers spec.md §4.9
// mandates on a RATE_LIMITED denial.
func (h *Handler) setRateLimitHeaders(w http.ResponseWriter, f tool.Failure) {
	if f.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(f.Limit))
	}
	if f.WindowMs > 0 {
		w.Header().Set("X-RateLimit-WindowMs", strconv.FormatInt(f.WindowMs, 10))
	}
	retryAfter := 1
	if f.RetryAfterSec != nil && *f.RetryAfterSec > 0 {
		retryAfter = *f.RetryAfterSec
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
}

