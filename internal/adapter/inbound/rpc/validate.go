package rpc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Limits bounds the request body a caller may send, per spec.md §4.10.
type Limits struct {
	MaxBodyBytes           int64
	MaxArgumentsJSONDepth  int
	MaxArgumentsProperties int
}

// DefaultLimits are conservative defaults for a publicly reachable
// JSON-RPC surface.
var DefaultLimits = Limits{
	MaxBodyBytes:           1 << 20,
	MaxArgumentsJSONDepth:  16,
	MaxArgumentsProperties: 256,
}

const maxToolNameLength = 256

// validateToolName enforces length and charset rules: only
// [A-Za-z0-9_-/], no leading/trailing/consecutive '/'.
func validateToolName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("toolName must not be empty")
	}
	if len(name) > maxToolNameLength {
		return fmt.Errorf("toolName exceeds maximum length")
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.Contains(name, "//") {
		return fmt.Errorf("toolName has invalid slash placement")
	}
	for _, r := range name {
		ok := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '/'
		if !ok {
			return fmt.Errorf("toolName contains disallowed character %q", r)
		}
	}
	return nil
}

// validateArguments walks the decoded arguments and rejects payloads
// whose nesting depth or total property count exceed the configured
// limits. It counts every object/array key or element as one
// "property" regardless of depth, matching a flat complexity budget
// rather than a per-level one.
func validateArguments(args map[string]any, limits Limits) error {
	count := 0
	var walk func(v any, depth int) error
	walk = func(v any, depth int) error {
		if depth > limits.MaxArgumentsJSONDepth {
			return fmt.Errorf("arguments exceed maximum allowed depth")
		}
		switch t := v.(type) {
		case map[string]any:
			for _, vv := range t {
				count++
				if count > limits.MaxArgumentsProperties {
					return fmt.Errorf("arguments exceed maximum allowed count")
				}
				if err := walk(vv, depth+1); err != nil {
					return err
				}
			}
		case []any:
			for _, vv := range t {
				count++
				if count > limits.MaxArgumentsProperties {
					return fmt.Errorf("arguments exceed maximum allowed count")
				}
				if err := walk(vv, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(map[string]any(args), 0)
}

// envelopeFields holds the top-level jsonrpc/method/id fields the
// handler decodes to check the envelope before any further processing.
type envelopeFields struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      json.RawMessage `json:"id"`
}
