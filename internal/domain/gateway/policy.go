package gateway

import "strings"

// pattern is a precompiled wildcard glob against external tool names.
// Exactly one '*' is supported per spec.md §4.6: prefix ("weather*"),
// suffix ("*.read"), infix ("weather*cast"), or an exact literal with
// no wildcard at all.
type pattern struct {
	raw    string
	prefix string
	suffix string
	hasGlob bool
}

func compilePattern(raw string) pattern {
	idx := strings.IndexByte(raw, '*')
	if idx < 0 {
		return pattern{raw: raw}
	}
	return pattern{raw: raw, prefix: raw[:idx], suffix: raw[idx+1:], hasGlob: true}
}

func (p pattern) matches(name string) bool {
	if !p.hasGlob {
		return p.raw == name
	}
	if len(name) < len(p.prefix)+len(p.suffix) {
		return false
	}
	return strings.HasPrefix(name, p.prefix) && strings.HasSuffix(name, p.suffix)
}

// ToolPolicy decides whether an external tool name is visible through
// the gateway. Deny always wins over allow (spec.md §4.6).
type ToolPolicy struct {
	allowed       []pattern
	denied        []pattern
	denyByDefault bool
}

// ToolPolicyConfig is the uncompiled configuration for a ToolPolicy.
type ToolPolicyConfig struct {
	AllowedPatterns []string
	DeniedPatterns  []string
	DenyByDefault   bool
}

// NewToolPolicy compiles cfg's patterns once so hot-path Decide calls
// never touch string parsing.
func NewToolPolicy(cfg ToolPolicyConfig) *ToolPolicy {
	tp := &ToolPolicy{denyByDefault: cfg.DenyByDefault}
	for _, p := range cfg.AllowedPatterns {
		tp.allowed = append(tp.allowed, compilePattern(p))
	}
	for _, p := range cfg.DeniedPatterns {
		tp.denied = append(tp.denied, compilePattern(p))
	}
	return tp
}

// Decide applies the three-step rule: any denied match wins; else
// denyByDefault with no allowed match denies; else allow.
func (tp *ToolPolicy) Decide(externalName string) bool {
	for _, p := range tp.denied {
		if p.matches(externalName) {
			return false
		}
	}
	if tp.denyByDefault {
		for _, p := range tp.allowed {
			if p.matches(externalName) {
				return true
			}
		}
		return false
	}
	return true
}

// IsActive reports whether the policy can ever deny anything: either it
// carries patterns, or it denies by default.
func (tp *ToolPolicy) IsActive() bool {
	return tp.denyByDefault || len(tp.allowed) > 0 || len(tp.denied) > 0
}
