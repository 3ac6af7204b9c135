package policy

import (
	"strings"

	"github.com/contextify/contextify/internal/domain/endpoint"
)

// Resolver resolves an endpoint descriptor against a policy document to
// produce an effective policy (spec.md §4.1).
type Resolver struct{}

// NewResolver creates a policy Resolver. It is stateless; a single value
// can be shared across goroutines and across catalog rebuilds.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve implements the matching priority and precedence rules of
// spec.md §4.1:
//
//  1. Deny entries are checked first, across all three selector kinds in
//     priority order (operationId, routeTemplate, displayName); any match
//     wins outright, regardless of any allow match.
//  2. Otherwise allow entries are checked the same way; the first match
//     applies its Enabled flag and settings.
//  3. Otherwise the document's DenyByDefault flag decides, with no
//     per-tool settings.
func (r *Resolver) Resolve(doc Document, d endpoint.Descriptor) (EffectivePolicy, error) {
	if err := d.Validate(); err != nil {
		return EffectivePolicy{}, ErrInvalidDescriptor
	}

	if _, ok := firstMatch(doc.Deny, d); ok {
		return EffectivePolicy{
			IsEnabled:        false,
			ResolutionSource: SourceDeny,
		}, nil
	}

	if entry, ok := firstMatch(doc.Allow, d); ok {
		return EffectivePolicy{
			IsEnabled:           entry.Enabled,
			TimeoutMs:           entry.Settings.TimeoutMs,
			ConcurrencyLimit:    entry.Settings.ConcurrencyLimit,
			AuthPropagationMode: entry.Settings.AuthPropagationMode,
			RateLimit:           entry.Settings.RateLimit,
			ResolutionSource:    SourceAllow,
		}, nil
	}

	return EffectivePolicy{
		IsEnabled:        !doc.DenyByDefault,
		ResolutionSource: SourceDefault,
	}, nil
}

// firstMatch implements the priority order of spec.md §4.1: it sweeps
// the list once per selector kind, highest priority first (operationId,
// then routeTemplate, then displayName), and returns the first entry
// (in list order) that matches on that kind. A list is swept for a
// lower-priority kind only if no entry matched on any higher kind, so an
// operationId match anywhere in the list always beats a routeTemplate
// match anywhere in the list.
func firstMatch(entries []Entry, d endpoint.Descriptor) (Entry, bool) {
	methodOK := func(sel Selector) bool {
		return sel.Method == "" || strings.EqualFold(sel.Method, d.HTTPMethod)
	}

	if d.OperationID != "" {
		for _, e := range entries {
			if e.Selector.OperationID != "" && e.Selector.OperationID == d.OperationID && methodOK(e.Selector) {
				return e, true
			}
		}
	}
	if d.RouteTemplate != "" {
		for _, e := range entries {
			if e.Selector.RouteTemplate != "" && e.Selector.RouteTemplate == d.RouteTemplate && methodOK(e.Selector) {
				return e, true
			}
		}
	}
	if d.DisplayName != "" {
		for _, e := range entries {
			if e.Selector.DisplayName != "" && e.Selector.DisplayName == d.DisplayName && methodOK(e.Selector) {
				return e, true
			}
		}
	}
	return Entry{}, false
}
