// Package policy contains the selector-based access-control model: the
// policy document produced by an external policy source, and the
// effective policy the resolver derives for a given endpoint descriptor.
package policy

// AuthPropagationMode controls how (if at all) the executor forwards
// caller auth material to the backing endpoint or upstream.
type AuthPropagationMode string

const (
	AuthNone              AuthPropagationMode = "none"
	AuthInfer             AuthPropagationMode = "infer"
	AuthBearer            AuthPropagationMode = "bearer"
	AuthAPIKey            AuthPropagationMode = "apiKey"
	AuthCookies           AuthPropagationMode = "cookies"
	AuthAdditionalHeaders AuthPropagationMode = "additionalHeaders"
)

// RateLimitStrategy selects the limiter algorithm a tool's rate limit uses.
type RateLimitStrategy string

const (
	StrategyFixedWindow   RateLimitStrategy = "fixedWindow"
	StrategySlidingWindow RateLimitStrategy = "slidingWindow"
	StrategyTokenBucket   RateLimitStrategy = "tokenBucket"
)

// RateLimitScope selects which identifiers are folded into a rate
// limiter's cache key alongside the tool name.
type RateLimitScope string

const (
	ScopeGlobal     RateLimitScope = "global"
	ScopeTenant     RateLimitScope = "tenant"
	ScopeUser       RateLimitScope = "user"
	ScopeTool       RateLimitScope = "tool"
	ScopeTenantTool RateLimitScope = "tenantTool"
	ScopeUserTool   RateLimitScope = "userTool"
)

// RateLimitSpec is the per-tool rate limit configuration carried on a
// policy entry's settings.
type RateLimitSpec struct {
	Strategy         RateLimitStrategy
	PermitLimit      int
	WindowMs         int64 // fixedWindow / slidingWindow
	RefillPeriodMs   int64 // tokenBucket
	TokensPerPeriod  int   // tokenBucket
	QueueLimit       int
	Scope            RateLimitScope
	SegmentationKey  string // optional argument name folded into the key
}

// Validate checks the invariants spec.md §3 places on a rate limit spec.
func (r RateLimitSpec) Validate() error {
	if r.PermitLimit < 1 {
		return errInvalidRateLimit("permitLimit must be >= 1")
	}
	switch r.Strategy {
	case StrategyFixedWindow, StrategySlidingWindow:
		if r.WindowMs <= 0 {
			return errInvalidRateLimit("windowMs must be > 0")
		}
	case StrategyTokenBucket:
		if r.RefillPeriodMs <= 0 {
			return errInvalidRateLimit("refillPeriodMs must be > 0")
		}
		if r.TokensPerPeriod < 1 {
			return errInvalidRateLimit("tokensPerPeriod must be >= 1")
		}
	default:
		return errInvalidRateLimit("unknown strategy " + string(r.Strategy))
	}
	return nil
}

// Settings are the per-tool overrides a selector entry may carry.
type Settings struct {
	TimeoutMs           int64
	ConcurrencyLimit    int
	AuthPropagationMode AuthPropagationMode
	RateLimit           *RateLimitSpec
}

// Validate checks the invariants spec.md §3 places on per-tool settings.
func (s Settings) Validate() error {
	if s.ConcurrencyLimit < 0 {
		return errInvalidSettings("concurrencyLimit must be > 0 when set")
	}
	if s.RateLimit != nil {
		if err := s.RateLimit.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Selector identifies an endpoint to match a policy entry against. At
// least one of OperationID, RouteTemplate, DisplayName must be set on
// the endpoint descriptor being matched for a decision to be reachable;
// the selector's own fields may be partially empty (wildcards).
type Selector struct {
	OperationID   string
	RouteTemplate string
	DisplayName   string
	Method        string // empty matches any method
}

// Entry is a single allow/deny rule: a selector plus an enabled flag and
// optional per-tool settings, applied when the entry matches.
type Entry struct {
	Selector Selector
	Enabled  bool
	Settings Settings
}

// Document is the immutable policy document received from the policy
// source (an external collaborator; see spec.md §1 non-goals). Allow and
// Deny are each searched by selector kind first (operationId, then
// routeTemplate, then displayName) and in list order within a kind; see
// firstMatch in resolver.go.
type Document struct {
	SchemaVersion  int
	DenyByDefault  bool
	Allow          []Entry
	Deny           []Entry
	SourceVersion  string
}

// Validate checks the structural invariants spec.md §3 requires of a
// policy document before it can be used to resolve any descriptor.
func (d Document) Validate() error {
	if d.SchemaVersion < 1 {
		return errInvalidDocument("schemaVersion must be >= 1")
	}
	for i := range d.Allow {
		if err := d.Allow[i].Settings.Validate(); err != nil {
			return err
		}
	}
	for i := range d.Deny {
		if err := d.Deny[i].Settings.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ResolutionSource records which part of the document produced an
// effective policy, for audit/debugging and for the testable property
// in spec.md §8 that deny's resolutionSource is always "deny".
type ResolutionSource string

const (
	SourceAllow   ResolutionSource = "allow"
	SourceDeny    ResolutionSource = "deny"
	SourceDefault ResolutionSource = "default"
)

// EffectivePolicy is the resolver's output for one endpoint descriptor.
type EffectivePolicy struct {
	IsEnabled           bool
	TimeoutMs           int64
	ConcurrencyLimit    int
	AuthPropagationMode AuthPropagationMode
	RateLimit           *RateLimitSpec
	ResolutionSource    ResolutionSource
}
