// Package gatewayclient implements the gateway's outbound calls to
// upstream MCP servers: tools/list (aggregator probes) and tools/call
// (dispatcher forwarding) as one-shot JSON-RPC request/response HTTP
// POSTs, and the manifest health probe (gateway.ManifestProbe) as an
// HTTP GET of the upstream's manifest path (spec.md §4.5, §4.7, §4.8).
package gatewayclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/gateway"
	"github.com/contextify/contextify/internal/domain/tool"
	"github.com/contextify/contextify/pkg/wire"
)

// maxResponseBodySize bounds how much of an upstream's response body is
// read, guarding against an unbounded or malicious upstream.
const maxResponseBodySize = 10 * 1024 * 1024

// ManifestPath is the well-known manifest path probed as the primary
// upstream health check.
const ManifestPath = "/.well-known/contextify/manifest"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Client is a shared outbound HTTP client used for every upstream MCP
// call. One Client instance is reused across all upstreams so
// connections pool per host.
type Client struct {
	http *http.Client
}

// NewClient builds a Client with its own connection pool (100 idle
// connections, 10 per host) and a TLS 1.2 floor.
func NewClient() *Client {
	return &Client{http: &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}}
}

func (c *Client) call(ctx context.Context, endpoint, method string, params any, timeout time.Duration, headers map[string]string) (json.RawMessage, error) {
	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		rawParams = b
	}

	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: rawParams})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var rpcResp wire.Response
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("upstream error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	resultBytes, err := json.Marshal(rpcResp.Result)
	if err != nil {
		return nil, fmt.Errorf("re-marshal result: %w", err)
	}
	return resultBytes, nil
}

type toolsListResult struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	} `json:"tools"`
}

// ToolsList implements gateway.ToolsListClient.
func (c *Client) ToolsList(ctx context.Context, u gateway.Upstream) (gateway.ToolsListResult, error) {
	start := time.Now()
	raw, err := c.call(ctx, u.MCPHTTPEndpoint, wire.MethodToolsList, nil, u.RequestTimeout, u.DefaultHeaders)
	if err != nil {
		return gateway.ToolsListResult{}, err
	}

	var parsed toolsListResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return gateway.ToolsListResult{}, fmt.Errorf("parse tools/list result: %w", err)
	}

	tools := make([]gateway.RawTool, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		tools = append(tools, gateway.RawTool{Name: t.Name, Description: t.Description, InputSchemaJSON: t.InputSchema})
	}
	return gateway.ToolsListResult{Tools: tools, Latency: time.Since(start)}, nil
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolsCallResult struct {
	Content []struct {
		Type string          `json:"type"`
		Text string          `json:"text,omitempty"`
		JSON json.RawMessage `json:"json,omitempty"`
	} `json:"content"`
}

// ToolsCall implements gateway.ToolsCallClient.
func (c *Client) ToolsCall(ctx context.Context, u gateway.Upstream, upstreamToolName string, args map[string]any, headers map[string]string, ac *auth.Context) (tool.Result, error) {
	merged := make(map[string]string, len(headers))
	for k, v := range headers {
		merged[k] = v
	}
	applyAuthHeaders(merged, ac)

	raw, err := c.call(ctx, u.MCPHTTPEndpoint, wire.MethodToolsCall, toolsCallParams{Name: upstreamToolName, Arguments: args}, u.RequestTimeout, merged)
	if err != nil {
		return tool.Result{}, err
	}

	var parsed toolsCallResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return tool.Err(tool.ErrParseError, "malformed upstream tools/call response", false), nil
	}
	if len(parsed.Content) == 0 {
		return tool.OkText(""), nil
	}
	first := parsed.Content[0]
	if len(first.JSON) > 0 {
		return tool.OkJSON(first.JSON), nil
	}
	return tool.OkText(first.Text), nil
}

// ProbeManifest implements gateway.ManifestProbe.
func (c *Client) ProbeManifest(ctx context.Context, u gateway.Upstream) error {
	timeout := u.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := manifestEndpoint(u.MCPHTTPEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build manifest request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("manifest probe: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("manifest probe status %d", resp.StatusCode)
	}
	var v any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&v); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	return nil
}

func applyAuthHeaders(headers map[string]string, ac *auth.Context) {
	if ac.IsEmpty() {
		return
	}
	if ac.BearerToken != "" {
		headers["Authorization"] = "Bearer " + ac.BearerToken
	}
	if ac.APIKey != "" {
		name := ac.APIKeyHeaderName
		if name == "" {
			name = auth.DefaultAPIKeyHeader
		}
		headers[name] = ac.APIKey
	}
	for k, v := range ac.AdditionalHeaders {
		headers[k] = v
	}
	if len(ac.Cookies) > 0 {
		var cookieHeader string
		for i, ck := range ac.Cookies {
			if i > 0 {
				cookieHeader += "; "
			}
			cookieHeader += ck.Name + "=" + ck.Value
		}
		headers["Cookie"] = cookieHeader
	}
}

// manifestEndpoint derives the well-known manifest URL from an
// upstream's MCP JSON-RPC endpoint by replacing its path.
func manifestEndpoint(mcpEndpoint string) string {
	u, err := url.Parse(mcpEndpoint)
	if err != nil {
		return mcpEndpoint + ManifestPath
	}
	u.Path = ManifestPath
	u.RawQuery = ""
	return u.String()
}
