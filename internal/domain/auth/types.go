// Package auth contains the caller auth context carried through an
// invocation, and Propagate, which translates it into outbound HTTP
// headers for a given propagation mode (spec.md §4.4). The executor and
// the gateway client apply auth with their own code and do not call
// Propagate.
package auth

import "net/http"

// Context holds the caller-supplied auth material for one invocation.
// It is read-only once constructed.
type Context struct {
	BearerToken       string
	APIKey            string
	APIKeyHeaderName  string
	Cookies           []*http.Cookie
	AdditionalHeaders map[string]string

	// TenantID and UserID identify the caller for rate-limit scoping,
	// read from the configured identity headers (spec.md §4.9). Both
	// are empty when the request carried neither header.
	TenantID string
	UserID   string
}

// DefaultAPIKeyHeader is used when an APIKey propagation mode is
// selected but no header name was configured.
const DefaultAPIKeyHeader = "X-API-Key"

// IsEmpty reports whether the context carries no auth material at all.
func (c *Context) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.BearerToken == "" && c.APIKey == "" && len(c.Cookies) == 0 && len(c.AdditionalHeaders) == 0
}
