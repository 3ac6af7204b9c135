package pipeline

import (
	"context"

	"github.com/contextify/contextify/internal/domain/redaction"
	"github.com/contextify/contextify/internal/domain/tool"
)

// RedactionAction scrubs a successful result's content after the rest
// of the chain has run. It always appears in the chain (Applies is
// always true) but takes a fast path when the engine has no rules
// configured, per spec.md §4.5.
type RedactionAction struct {
	Engine *redaction.Engine
}

func (a *RedactionAction) Order() int { return OrderRedaction }

func (a *RedactionAction) Applies(ctx context.Context, inv Invocation) bool { return true }

func (a *RedactionAction) Invoke(ctx context.Context, inv Invocation, next Next) tool.Result {
	res := next(ctx)
	if a.Engine == nil || !res.IsSuccess() {
		return res
	}

	s := *res.Success
	if s.JSONContent != nil {
		s.JSONContent = []byte(a.Engine.RedactJSON(string(s.JSONContent)))
	}
	if s.TextContent != "" {
		s.TextContent = a.Engine.RedactText(s.TextContent)
	}
	return tool.Result{Success: &s}
}
