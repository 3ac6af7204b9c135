package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/tool"
)

type fakeService struct {
	tools    []ToolSummary
	callFn   func(name string, args map[string]any, ac *auth.Context) tool.Result
	manifest any
	diag     any
}

func (f *fakeService) Initialize(ctx context.Context) InitializeResult {
	return InitializeResult{ProtocolVersion: "2025-06-18", ServerName: "test-server"}
}

func (f *fakeService) ToolsList(ctx context.Context) []ToolSummary { return f.tools }

func (f *fakeService) ToolsCall(ctx context.Context, name string, args map[string]any, ac *auth.Context) tool.Result {
	return f.callFn(name, args, ac)
}

func (f *fakeService) Manifest(ctx context.Context) any { return f.manifest }

func (f *fakeService) Diagnostics(ctx context.Context) any { return f.diag }

func newTestHandler(svc *fakeService) *Handler {
	return NewHandler(svc, "test-server", nil)
}

func doMCP(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, MCPPath, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleMCP(rec, req)
	return rec
}

func TestHandleMCP_Initialize(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp["error"])
	require.NotNil(t, resp["result"])
}

func TestHandleMCP_ToolsList(t *testing.T) {
	svc := &fakeService{tools: []ToolSummary{{Name: "search", Description: "search things"}}}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result struct {
			Tools []map[string]any `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Tools, 1)
	require.Equal(t, "search", resp.Result.Tools[0]["name"])
}

func TestHandleMCP_ToolsCallSuccess(t *testing.T) {
	svc := &fakeService{callFn: func(name string, args map[string]any, ac *auth.Context) tool.Result {
		require.Equal(t, "search", name)
		return tool.OkText("done")
	}}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"search","arguments":{}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result struct {
			Content []map[string]any `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Content, 1)
	require.Equal(t, "text", resp.Result.Content[0]["type"])
}

func TestHandleMCP_ToolsCallFailureMapsErrorCode(t *testing.T) {
	svc := &fakeService{callFn: func(name string, args map[string]any, ac *auth.Context) tool.Result {
		return tool.Err(tool.ErrToolNotFound, "no such tool", false)
	}}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"missing","arguments":{}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, -32602, resp.Error.Code)
}

func TestHandleMCP_RateLimitedReturns429(t *testing.T) {
	retryAfter := 5
	svc := &fakeService{callFn: func(name string, args map[string]any, ac *auth.Context) tool.Result {
		return tool.ErrRetryAfter(tool.ErrRateLimited, "rate limit exceeded", true, retryAfter)
	}}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"search","arguments":{}}}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp struct {
		Error *struct {
			Code int            `json:"code"`
			Data map[string]any `json:"data"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, float64(retryAfter), resp.Error.Data["retryAfterSec"])
}

func TestHandleMCP_RateLimitedSetsQuotaHeaders(t *testing.T) {
	svc := &fakeService{callFn: func(name string, args map[string]any, ac *auth.Context) tool.Result {
		return tool.ErrRateLimitedWithQuota("rate limit exceeded", 5, 10, 60_000)
	}}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"search","arguments":{}}}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "60000", rec.Header().Get("X-RateLimit-WindowMs"))
	require.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestHandleMCP_IdentityHeadersReachService(t *testing.T) {
	var gotTenant, gotUser string
	svc := &fakeService{callFn: func(name string, args map[string]any, ac *auth.Context) tool.Result {
		if ac != nil {
			gotTenant, gotUser = ac.TenantID, ac.UserID
		}
		return tool.OkText("done")
	}}
	h := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodPost, MCPPath, strings.NewReader(`{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"search","arguments":{}}}`))
	req.Header.Set("X-Tenant-Id", "acme")
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	h.handleMCP(rec, req)

	require.Equal(t, "acme", gotTenant)
	require.Equal(t, "u1", gotUser)
}

func TestHandleMCP_IdentityHeadersCustomNames(t *testing.T) {
	var gotTenant string
	svc := &fakeService{callFn: func(name string, args map[string]any, ac *auth.Context) tool.Result {
		if ac != nil {
			gotTenant = ac.TenantID
		}
		return tool.OkText("done")
	}}
	h := NewHandler(svc, "test-server", nil, WithIdentityHeaders("X-Org-Id", "X-Acting-User"))

	req := httptest.NewRequest(http.MethodPost, MCPPath, strings.NewReader(`{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"search","arguments":{}}}`))
	req.Header.Set("X-Org-Id", "acme")
	rec := httptest.NewRecorder()
	h.handleMCP(rec, req)

	require.Equal(t, "acme", gotTenant)
}

func TestHandleMCP_CorrelationIDIncludedWhenEnabled(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, "test-server", nil, WithCorrelationIDInErrors(true))

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":12,"method":"bogus"}`)
	var resp struct {
		Error *struct {
			Data map[string]any `json:"data"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.NotEmpty(t, resp.Error.Data["correlationId"])
}

func TestHandleMCP_CorrelationIDOmittedByDefault(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":13,"method":"bogus"}`)
	var resp struct {
		Error *struct {
			Data map[string]any `json:"data"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Empty(t, resp.Error.Data["correlationId"])
}

func TestHandleMCP_InvalidToolNameRejected(t *testing.T) {
	svc := &fakeService{callFn: func(name string, args map[string]any, ac *auth.Context) tool.Result {
		t.Fatal("service should not be invoked for an invalid tool name")
		return tool.Result{}
	}}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"/bad","arguments":{}}}`)
	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, -32602, resp.Error.Code)
}

func TestHandleMCP_MethodNotFound(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"jsonrpc":"2.0","id":6,"method":"bogus"}`)
	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, -32601, resp.Error.Code)
}

func TestHandleMCP_InvalidJSONIsParseError(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{not json`)
	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, -32700, resp.Error.Code)
}

func TestHandleMCP_MissingJSONRPCVersionIsInvalidRequest(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc)

	rec := doMCP(t, h, `{"id":7,"method":"initialize"}`)
	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, -32600, resp.Error.Code)
}

func TestHandleMCP_BodyTooLargeRejected(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, "test-server", nil, WithLimits(Limits{MaxBodyBytes: 32, MaxArgumentsJSONDepth: 16, MaxArgumentsProperties: 256}))

	big := `{"jsonrpc":"2.0","id":8,"method":"initialize","padding":"` + strings.Repeat("x", 128) + `"}`
	rec := doMCP(t, h, big)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, -32602, resp.Error.Code)
}

func TestHandleMCP_GetRejected(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, MCPPath, nil)
	rec := httptest.NewRecorder()
	h.handleMCP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleManifest(t *testing.T) {
	svc := &fakeService{manifest: map[string]any{"name": "gw"}}
	h := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, ManifestPath, nil)
	rec := httptest.NewRecorder()
	h.handleManifest(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"gw"`)
}

func TestHandleDiagnostics_NotImplemented(t *testing.T) {
	svc := &diagnosticslessService{}
	h := NewHandler(svc, "test-server", nil)

	req := httptest.NewRequest(http.MethodGet, DiagnosticsPath, nil)
	rec := httptest.NewRecorder()
	h.handleDiagnostics(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// diagnosticslessService implements Service but neither Diagnostics nor
// Manifest, exercising the handler's type-assertion fallbacks.
type diagnosticslessService struct{}

func (diagnosticslessService) Initialize(ctx context.Context) InitializeResult {
	return InitializeResult{}
}
func (diagnosticslessService) ToolsList(ctx context.Context) []ToolSummary { return nil }
func (diagnosticslessService) ToolsCall(ctx context.Context, name string, args map[string]any, ac *auth.Context) tool.Result {
	return tool.Result{}
}
