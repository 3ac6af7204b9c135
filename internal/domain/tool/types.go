// Package tool contains the tool descriptor and tool result types that
// flow through the catalog and the middleware pipeline.
package tool

import (
	"encoding/json"

	"github.com/contextify/contextify/internal/domain/endpoint"
	"github.com/contextify/contextify/internal/domain/policy"
)

// Descriptor is one entry in a catalog snapshot: a named tool, the
// endpoint it dispatches to (nil for gateway routes, which dispatch via
// an upstream instead), and the effective policy the resolver computed
// for it at build time.
type Descriptor struct {
	ToolName          string
	Description       string
	InputSchemaJSON   json.RawMessage
	EndpointDescriptor *endpoint.Descriptor
	EffectivePolicy   policy.EffectivePolicy
}

// ErrorCode is the closed taxonomy of tool-result failure kinds from
// spec.md §7.
type ErrorCode string

const (
	ErrInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	ErrToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	ErrPolicyDenied        ErrorCode = "POLICY_DENIED"
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrTimeout             ErrorCode = "TIMEOUT"
	ErrCancelled           ErrorCode = "CANCELLED"
	ErrUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrParseError          ErrorCode = "PARSE_ERROR"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// Failure carries the structured error information for a failed
// invocation (spec.md §3 ToolResult discriminated union).
type Failure struct {
	ErrorCode     ErrorCode
	Message       string
	IsTransient   bool
	RetryAfterSec *int

	// Limit and WindowMs describe the quota that was exceeded, set only
	// on ErrRateLimited failures, so the inbound handler can surface
	// X-RateLimit-Limit/X-RateLimit-WindowMs (spec.md §4.9).
	Limit    int
	WindowMs int64
}

// Success carries the content of a successful invocation. Exactly one of
// TextContent/JSONContent is expected to be set by producers, though both
// may be read by consumers (JSON preferred, per spec.md §4.10).
type Success struct {
	TextContent string
	JSONContent json.RawMessage
}

// Result is the discriminated union returned by a tool invocation.
// Exactly one of Success/Failure is non-nil.
type Result struct {
	Success *Success
	Failure *Failure
}

// OkJSON builds a successful Result carrying JSON content.
func OkJSON(content json.RawMessage) Result {
	return Result{Success: &Success{JSONContent: content}}
}

// OkText builds a successful Result carrying text content.
func OkText(content string) Result {
	return Result{Success: &Success{TextContent: content}}
}

// Err builds a failed Result.
func Err(code ErrorCode, message string, transient bool) Result {
	return Result{Failure: &Failure{ErrorCode: code, Message: message, IsTransient: transient}}
}

// ErrRetryAfter builds a failed Result carrying a retry-after hint.
func ErrRetryAfter(code ErrorCode, message string, transient bool, retryAfterSec int) Result {
	r := retryAfterSec
	return Result{Failure: &Failure{ErrorCode: code, Message: message, IsTransient: transient, RetryAfterSec: &r}}
}

// ErrRateLimitedWithQuota builds a RATE_LIMITED failure carrying the
// quota that was exceeded, so callers can surface it in response
// headers (spec.md §4.9).
func ErrRateLimitedWithQuota(message string, retryAfterSec, limit int, windowMs int64) Result {
	r := retryAfterSec
	f := &Failure{ErrorCode: ErrRateLimited, Message: message, IsTransient: true, Limit: limit, WindowMs: windowMs}
	if retryAfterSec > 0 {
		f.RetryAfterSec = &r
	}
	return Result{Failure: f}
}

// IsSuccess reports whether the result represents a success.
func (r Result) IsSuccess() bool { return r.Success != nil }
