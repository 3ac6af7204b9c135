package auth

import (
	"net/http"

	"github.com/contextify/contextify/internal/domain/policy"
)

// Propagate injects the auth context into an outbound request per the
// given mode (spec.md §4.4). It never mutates ctx; missing fields for
// the requested mode are simply skipped (the request goes out
// anonymous for that concern), matching the "log, don't fail" rule of
// spec.md §4.3 for the auth-propagation pipeline action.
func Propagate(mode policy.AuthPropagationMode, ctx *Context, req *http.Request) {
	if ctx == nil || mode == policy.AuthNone {
		return
	}

	switch mode {
	case policy.AuthBearer:
		if ctx.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+ctx.BearerToken)
		}
	case policy.AuthAPIKey:
		if ctx.APIKey != "" {
			header := ctx.APIKeyHeaderName
			if header == "" {
				header = DefaultAPIKeyHeader
			}
			req.Header.Set(header, ctx.APIKey)
		}
	case policy.AuthAdditionalHeaders:
		for k, v := range ctx.AdditionalHeaders {
			req.Header.Set(k, v)
		}
	case policy.AuthCookies:
		for _, c := range ctx.Cookies {
			req.AddCookie(c)
		}
	case policy.AuthInfer:
		propagateInferred(ctx, req)
	}
}

// propagateInferred chooses a concrete mode based on which fields are
// populated, preferring bearer > apiKey > additionalHeaders > cookies.
func propagateInferred(ctx *Context, req *http.Request) {
	switch {
	case ctx.BearerToken != "":
		Propagate(policy.AuthBearer, ctx, req)
	case ctx.APIKey != "":
		Propagate(policy.AuthAPIKey, ctx, req)
	case len(ctx.AdditionalHeaders) > 0:
		Propagate(policy.AuthAdditionalHeaders, ctx, req)
	case len(ctx.Cookies) > 0:
		Propagate(policy.AuthCookies, ctx, req)
	}
}
