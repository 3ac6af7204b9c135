// Package executor implements the in-process tool executor: it expands
// a tool's route template with call arguments, validates them against
// the tool's input schema, dispatches an HTTP request over a shared
// connection pool, propagates auth per the policy's propagation mode,
// and parses the response into a tool.Result (spec.md §4.4).
package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/policy"
	"github.com/contextify/contextify/internal/domain/tool"
)

// maxResponseBodySize bounds how much of a backend's response body is
// read, guarding against an unbounded response.
const maxResponseBodySize = 10 * 1024 * 1024

// Executor dispatches tool calls to local HTTP endpoints.
type Executor struct {
	http    *http.Client
	baseURL string
}

// NewExecutor builds an Executor. baseURL is prefixed to every route
// template that is not already an absolute URL.
func NewExecutor(baseURL string) *Executor {
	return &Executor{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Invoke dispatches one tool call. descriptor is the tool's endpoint
// descriptor; schema may be nil to skip argument validation; pol is the
// effective policy governing auth propagation; ac is the caller's auth
// context (may be nil).
func (e *Executor) Invoke(ctx context.Context, descriptor *EndpointRef, args map[string]any, schema *jsonschema.Schema, pol policy.EffectivePolicy, ac *auth.Context) tool.Result {
	if schema != nil {
		if err := schema.Validate(args); err != nil {
			return tool.Err(tool.ErrInvalidArgument, "arguments failed schema validation: "+err.Error(), false)
		}
	}

	uri, body, _, err := e.buildRequest(descriptor, args)
	if err != nil {
		return tool.Err(tool.ErrInvalidArgument, err.Error(), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(descriptor.HTTPMethod), uri, bytes.NewReader(body))
	if err != nil {
		return tool.Err(tool.ErrInternalError, "failed to build request", false)
	}
	if len(body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	applyAuth(httpReq, pol.AuthPropagationMode, ac)

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return tool.Err(tool.ErrUpstreamError, err.Error(), true)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody := make([]byte, 0)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			respBody = append(respBody, buf[:n]...)
			if len(respBody) > maxResponseBodySize {
				respBody = respBody[:maxResponseBodySize]
				break
			}
		}
		if rerr != nil {
			break
		}
	}

	if resp.StatusCode >= 400 {
		return tool.Err(tool.ErrUpstreamError, fmt.Sprintf("backend returned HTTP %d", resp.StatusCode), resp.StatusCode >= 500)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var js any
		if err := json.Unmarshal(respBody, &js); err != nil {
			return tool.Err(tool.ErrParseError, "backend response was not valid JSON", false)
		}
		return tool.OkJSON(respBody)
	}
	return tool.OkText(string(respBody))
}

// EndpointRef is the subset of endpoint.Descriptor the executor needs,
// kept separate to avoid a direct dependency on the catalog build-time
// types from this adapter.
type EndpointRef struct {
	RouteTemplate string
	HTTPMethod    string
}

// buildRequest expands the route template's {name} placeholders from
// args, and serializes any remaining top-level argument either as a
// JSON request body (for write methods) or as query-string parameters
// (for GET/HEAD/DELETE), per spec.md §4.4. It returns the set of
// argument names consumed by the path so callers can tell path args
// from body/query args if needed.
func (e *Executor) buildRequest(ref *EndpointRef, args map[string]any) (string, []byte, map[string]bool, error) {
	used := make(map[string]bool)
	path := ref.RouteTemplate

	for {
		start := strings.IndexByte(path, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(path[start:], '}')
		if end < 0 {
			return "", nil, nil, fmt.Errorf("unterminated path placeholder in route template %q", ref.RouteTemplate)
		}
		end += start
		name := path[start+1 : end]
		val, ok := args[name]
		if !ok {
			return "", nil, nil, fmt.Errorf("missing required path argument %q", name)
		}
		used[name] = true
		path = path[:start] + url.PathEscape(toStringValue(val)) + path[end+1:]
	}

	fullURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		fullURL = e.baseURL + path
	}

	method := strings.ToUpper(ref.HTTPMethod)
	remaining := make(map[string]any)
	for k, v := range args {
		if !used[k] {
			remaining[k] = v
		}
	}

	if method == http.MethodGet || method == http.MethodHead || method == http.MethodDelete {
		if len(remaining) > 0 {
			q := url.Values{}
			for k, v := range remaining {
				q.Set(k, toStringValue(v))
			}
			sep := "?"
			if strings.Contains(fullURL, "?") {
				sep = "&"
			}
			fullURL = fullURL + sep + q.Encode()
		}
		return fullURL, nil, used, nil
	}

	if len(remaining) == 0 {
		return fullURL, nil, used, nil
	}
	body, err := json.Marshal(remaining)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to serialize request body: %w", err)
	}
	return fullURL, body, used, nil
}

func toStringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func applyAuth(req *http.Request, mode policy.AuthPropagationMode, ac *auth.Context) {
	if ac.IsEmpty() {
		return
	}
	effective := mode
	if effective == policy.AuthInfer {
		effective = inferMode(ac)
	}
	switch effective {
	case policy.AuthBearer:
		if ac.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+ac.BearerToken)
		}
	case policy.AuthAPIKey:
		if ac.APIKey != "" {
			name := ac.APIKeyHeaderName
			if name == "" {
				name = auth.DefaultAPIKeyHeader
			}
			req.Header.Set(name, ac.APIKey)
		}
	case policy.AuthCookies:
		for _, c := range ac.Cookies {
			req.AddCookie(c)
		}
	case policy.AuthAdditionalHeaders:
		for k, v := range ac.AdditionalHeaders {
			req.Header.Set(k, v)
		}
	}
}

func inferMode(ac *auth.Context) policy.AuthPropagationMode {
	switch {
	case ac.BearerToken != "":
		return policy.AuthBearer
	case ac.APIKey != "":
		return policy.AuthAPIKey
	case len(ac.Cookies) > 0:
		return policy.AuthCookies
	case len(ac.AdditionalHeaders) > 0:
		return policy.AuthAdditionalHeaders
	default:
		return policy.AuthNone
	}
}
