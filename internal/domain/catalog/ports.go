package catalog

import (
	"context"
	"time"

	"github.com/contextify/contextify/internal/domain/policy"
)

// PolicySource is the external collaborator that supplies the current
// policy document (spec.md §1 non-goals: "specific configuration
// sources ... are external collaborators"). Implementations might read
// a file, poll a KV store, or watch a change-token stream.
type PolicySource interface {
	Current(ctx context.Context) (policy.Document, error)
}

// CandidateSource is the external collaborator that supplies the
// current set of endpoint descriptors to join against the policy
// document (an OpenAPI/endpoint-discovery integration, out of scope for
// this spec per §1 non-goals).
type CandidateSource interface {
	Candidates(ctx context.Context) ([]CandidateTool, error)
}

// NewBuildFunc wires a Builder to a PolicySource and CandidateSource,
// producing the BuildFunc a Provider drives on each reload.
func NewBuildFunc(builder *Builder, policies PolicySource, candidates CandidateSource, now func() time.Time) BuildFunc {
	return func(ctx context.Context) (Snapshot, []BuildWarning, error) {
		doc, err := policies.Current(ctx)
		if err != nil {
			return Snapshot{}, nil, err
		}
		cands, err := candidates.Candidates(ctx)
		if err != nil {
			return Snapshot{}, nil, err
		}
		return builder.Build(now(), doc, cands)
	}
}
