package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/contextify/contextify/internal/domain/endpoint"
	"github.com/contextify/contextify/internal/domain/policy"
	"github.com/contextify/contextify/internal/domain/tool"
)

// CandidateTool bundles an endpoint descriptor with the optional
// description/input schema an external endpoint-discovery collaborator
// supplied for it (spec.md §4.2). Neither Description nor
// InputSchemaJSON is part of the endpoint descriptor's own shape.
type CandidateTool struct {
	Endpoint        endpoint.Descriptor
	Description     string
	InputSchemaJSON json.RawMessage
}

// BuildWarning records a non-fatal issue found while building a
// snapshot (e.g. a tool name collision). Builds with only warnings are
// still published (spec.md §4.2).
type BuildWarning struct {
	ToolName string
	Message  string
}

// BuildError is a fatal issue that prevents a snapshot from being
// published (e.g. the policy document itself fails validation).
type BuildError struct {
	Message string
}

func (e *BuildError) Error() string { return "catalog: " + e.Message }

// Builder turns a policy document plus a set of candidate endpoint
// descriptors into a Snapshot (spec.md §4.2).
type Builder struct {
	resolver *policy.Resolver
	logger   *slog.Logger
}

// NewBuilder creates a catalog Builder.
func NewBuilder(resolver *policy.Resolver, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{resolver: resolver, logger: logger}
}

// Build resolves the effective policy for each candidate, skips disabled
// tools, derives a canonical tool name, and assembles a Snapshot. It
// returns the build warnings alongside the snapshot; a non-nil error
// means the document itself was invalid and no snapshot was produced.
func (b *Builder) Build(now time.Time, doc policy.Document, candidates []CandidateTool) (Snapshot, []BuildWarning, error) {
	if err := doc.Validate(); err != nil {
		return Snapshot{}, nil, &BuildError{Message: err.Error()}
	}

	var warnings []BuildWarning
	seen := make(map[string]bool, len(candidates))
	descriptors := make([]tool.Descriptor, 0, len(candidates))

	for i := range candidates {
		c := candidates[i]
		eff, err := b.resolver.Resolve(doc, c.Endpoint)
		if err != nil {
			warnings = append(warnings, BuildWarning{Message: fmt.Sprintf("candidate %d: %v", i, err)})
			continue
		}
		if !eff.IsEnabled {
			continue
		}

		name := canonicalToolName(c.Endpoint)
		if seen[name] {
			warnings = append(warnings, BuildWarning{ToolName: name, Message: "duplicate tool name, last write wins"})
			b.logger.Warn("catalog: duplicate tool name", "tool", name)
		}
		seen[name] = true

		endpointCopy := c.Endpoint
		descriptors = append(descriptors, tool.Descriptor{
			ToolName:           name,
			Description:        c.Description,
			InputSchemaJSON:    c.InputSchemaJSON,
			EndpointDescriptor: &endpointCopy,
			EffectivePolicy:    eff,
		})
	}

	return NewSnapshot(now, doc.SourceVersion, descriptors), warnings, nil
}

// slugPattern matches runs of characters that are not safe in a tool
// name slug; they collapse to a single underscore.
var slugPattern = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// canonicalToolName derives a stable tool name for a descriptor: prefer
// operationId, else a safe slug of "method_route", else displayName
// (spec.md §4.2).
func canonicalToolName(d endpoint.Descriptor) string {
	if d.OperationID != "" {
		return d.OperationID
	}
	if d.RouteTemplate != "" {
		method := strings.ToLower(d.HTTPMethod)
		if method == "" {
			method = "any"
		}
		raw := method + "_" + d.RouteTemplate
		slug := slugPattern.ReplaceAllString(raw, "_")
		return strings.Trim(slug, "_")
	}
	return d.DisplayName
}
