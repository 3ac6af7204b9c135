// Package catalog builds and serves the content-addressed, atomically
// swappable snapshot of tool descriptors (spec.md §4.2).
package catalog

import (
	"context"
	"time"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/tool"
)

// Snapshot is the immutable, content-addressed view of the current tool
// set. Once published it is never mutated; readers always see one whole
// snapshot, never a partially built one (spec.md §3, §8).
type Snapshot struct {
	CreatedUTC        time.Time
	PolicySourceVersion string
	Digest            string
	ToolsByName       map[string]tool.Descriptor
	// order preserves build/insertion order for deterministic listing,
	// independent of Go's randomized map iteration.
	order []string
}

// NewSnapshot builds a Snapshot from an ordered slice of descriptors.
// Later entries with a duplicate ToolName overwrite earlier ones
// (last-wins, per spec.md §4.2), a warning for that is the builder's
// concern, not the snapshot's.
func NewSnapshot(createdUTC time.Time, policySourceVersion string, tools []tool.Descriptor) Snapshot {
	byName := make(map[string]tool.Descriptor, len(tools))
	order := make([]string, 0, len(tools))
	for _, td := range tools {
		if _, exists := byName[td.ToolName]; !exists {
			order = append(order, td.ToolName)
		}
		byName[td.ToolName] = td
	}
	return Snapshot{
		CreatedUTC:          createdUTC,
		PolicySourceVersion: policySourceVersion,
		ToolsByName:         byName,
		order:               order,
		Digest:              digest(order, byName),
	}
}

// Tools returns the snapshot's tools in deterministic insertion order.
func (s Snapshot) Tools() []tool.Descriptor {
	out := make([]tool.Descriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.ToolsByName[name])
	}
	return out
}

// Lookup returns a tool descriptor by name.
func (s Snapshot) Lookup(name string) (tool.Descriptor, bool) {
	td, ok := s.ToolsByName[name]
	return td, ok
}

// Len returns the number of tools in the snapshot.
func (s Snapshot) Len() int { return len(s.order) }

// InvocationContext is the per-call context passed through the pipeline
// (spec.md §3). It lives for exactly one call.
type InvocationContext struct {
	ToolName      string
	Arguments     map[string]interface{}
	Context       context.Context
	AuthContext   *auth.Context
	CorrelationID string
}
