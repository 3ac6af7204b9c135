// Package redaction scrubs sensitive fields out of tool results before
// they reach a caller, using field-name and regex-pattern rules against
// the JSON and text payloads a tool.Result carries (spec.md §4.4).
package redaction

import "regexp"

// Mask replaces a redacted value in the output.
const Mask = "[REDACTED]"

// FieldRule redacts any JSON node whose dotted path matches Name segment
// for segment, ignoring case, with "#" matching any array index (e.g.
// "user.ssn" or "items.#.secret"). A matched object or array is masked
// whole.
type FieldRule struct {
	Name string
}

// PatternRule redacts any substring of a text or JSON-string value that
// matches Pattern.
type PatternRule struct {
	Pattern string
	re      *regexp.Regexp
}

// Rules is the compiled configuration for an Engine.
type Rules struct {
	Fields   []FieldRule
	Patterns []PatternRule
}

// Compile validates and compiles every pattern rule's regexp once so
// Redact never pays compilation cost per call.
func (r Rules) Compile() (Rules, error) {
	out := Rules{Fields: r.Fields, Patterns: make([]PatternRule, len(r.Patterns))}
	for i, p := range r.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return Rules{}, err
		}
		out.Patterns[i] = PatternRule{Pattern: p.Pattern, re: re}
	}
	return out, nil
}

// Empty reports whether the ruleset would never change any payload,
// letting callers take a fast path that skips the engine entirely.
func (r Rules) Empty() bool {
	return len(r.Fields) == 0 && len(r.Patterns) == 0
}
