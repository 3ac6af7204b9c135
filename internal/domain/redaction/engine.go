package redaction

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Engine applies a compiled Rules set to JSON and text payloads.
type Engine struct {
	rules Rules
}

// NewEngine compiles rules and returns an Engine. Pass an already-empty
// Rules value to get a no-op engine.
func NewEngine(rules Rules) (*Engine, error) {
	compiled, err := rules.Compile()
	if err != nil {
		return nil, err
	}
	return &Engine{rules: compiled}, nil
}

// RedactJSON rewrites any configured field path in raw to Mask and
// applies pattern rules to every remaining string value. It is a no-op
// (byte-identical return) when the ruleset is empty, and only
// re-serializes when a rule actually matched: deserialize once, write
// back only if changed.
func (e *Engine) RedactJSON(raw string) string {
	if e.rules.Empty() || raw == "" {
		return raw
	}

	changed := false
	out := raw

	if len(e.rules.Fields) > 0 {
		if redacted, ok := e.redactFields(out); ok {
			out = redacted
			changed = true
		}
	}

	if len(e.rules.Patterns) > 0 {
		redactedStrings := e.redactStringLeaves(out)
		if redactedStrings != out {
			out = redactedStrings
			changed = true
		}
	}

	if !changed {
		return raw
	}
	return out
}

// RedactText applies only the pattern rules to a plain-text payload.
func (e *Engine) RedactText(text string) string {
	if len(e.rules.Patterns) == 0 || text == "" {
		return text
	}
	out := text
	for _, p := range e.rules.Patterns {
		out = p.re.ReplaceAllString(out, Mask)
	}
	return out
}

// redactFields walks every node of a JSON document (not just leaves, so
// a field rule can mask an entire object or array) and masks any node
// whose dotted path matches a Fields rule, comparing path segments with
// strings.EqualFold so a rule named "ssn" also matches "SSN" or "Ssn"
// (spec.md SPEC_FULL §4 SUPPLEMENT 4.3 case-insensitive field list). A
// rule segment of "#" matches any array index, mirroring gjson's own
// wildcard. Matched nodes are not descended into further.
func (e *Engine) redactFields(raw string) (string, bool) {
	result := gjson.Parse(raw)
	if !result.Exists() {
		return raw, false
	}

	out := raw
	changed := false
	var walk func(path []string, v gjson.Result)
	walk = func(path []string, v gjson.Result) {
		if len(path) > 0 && fieldRuleMatches(path, e.rules.Fields) {
			if next, err := sjson.Set(out, strings.Join(path, "."), Mask); err == nil {
				out = next
				changed = true
			}
			return
		}
		switch {
		case v.IsObject():
			v.ForEach(func(key, val gjson.Result) bool {
				walk(append(append([]string{}, path...), key.String()), val)
				return true
			})
		case v.IsArray():
			i := 0
			v.ForEach(func(_, val gjson.Result) bool {
				walk(append(append([]string{}, path...), strconv.Itoa(i)), val)
				i++
				return true
			})
		}
	}
	walk(nil, result)
	return out, changed
}

// fieldRuleMatches reports whether path matches any configured field
// rule, segment-for-segment and case-insensitively.
func fieldRuleMatches(path []string, fields []FieldRule) bool {
	for _, f := range fields {
		if pathMatches(path, strings.Split(f.Name, ".")) {
			return true
		}
	}
	return false
}

func pathMatches(path, ruleSegments []string) bool {
	if len(path) != len(ruleSegments) {
		return false
	}
	for i, seg := range ruleSegments {
		if seg == "#" {
			continue
		}
		if !strings.EqualFold(seg, path[i]) {
			return false
		}
	}
	return true
}

// redactStringLeaves walks every string leaf of a JSON document and
// replaces pattern matches in place, returning the rewritten document.
func (e *Engine) redactStringLeaves(raw string) string {
	result := gjson.Parse(raw)
	if !result.Exists() {
		return raw
	}

	out := raw
	var walk func(path string, v gjson.Result)
	walk = func(path string, v gjson.Result) {
		switch {
		case v.IsObject():
			v.ForEach(func(key, val gjson.Result) bool {
				childPath := key.String()
				if path != "" {
					childPath = path + "." + key.String()
				}
				walk(childPath, val)
				return true
			})
		case v.IsArray():
			i := 0
			v.ForEach(func(_, val gjson.Result) bool {
				childPath := path + "." + strconv.Itoa(i)
				walk(childPath, val)
				i++
				return true
			})
		case v.Type == gjson.String:
			redacted := v.String()
			for _, p := range e.rules.Patterns {
				redacted = p.re.ReplaceAllString(redacted, Mask)
			}
			if redacted != v.String() {
				if next, err := sjson.Set(out, path, redacted); err == nil {
					out = next
				}
			}
		}
	}
	walk("", result)
	return out
}
