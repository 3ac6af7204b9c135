package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/contextify/contextify/internal/domain/catalog"
	"github.com/contextify/contextify/internal/domain/endpoint"
	"github.com/contextify/contextify/internal/domain/policy"
)

// FilePolicySource reads a policy.Document from a YAML file on disk,
// re-reading it on every Current call so an operator can hot-edit the
// file and have the next catalog rebuild pick it up (spec.md §1 treats
// the policy source itself as an external collaborator; this is the
// file-backed implementation contextify ships for standalone/dev use).
type FilePolicySource struct {
	path string

	mu   sync.Mutex
	last policy.Document
}

// NewFilePolicySource creates a FilePolicySource over path.
func NewFilePolicySource(path string) *FilePolicySource {
	return &FilePolicySource{path: path}
}

type yamlSelector struct {
	OperationID   string `yaml:"operationId"`
	RouteTemplate string `yaml:"routeTemplate"`
	DisplayName   string `yaml:"displayName"`
	Method        string `yaml:"method"`
}

type yamlRateLimit struct {
	Strategy        string `yaml:"strategy"`
	PermitLimit     int    `yaml:"permitLimit"`
	WindowMs        int64  `yaml:"windowMs"`
	RefillPeriodMs  int64  `yaml:"refillPeriodMs"`
	TokensPerPeriod int    `yaml:"tokensPerPeriod"`
	QueueLimit      int    `yaml:"queueLimit"`
	Scope           string `yaml:"scope"`
	SegmentationKey string `yaml:"segmentationKey"`
}

type yamlSettings struct {
	TimeoutMs           int64          `yaml:"timeoutMs"`
	ConcurrencyLimit    int            `yaml:"concurrencyLimit"`
	AuthPropagationMode string         `yaml:"authPropagationMode"`
	RateLimit           *yamlRateLimit `yaml:"rateLimit"`
}

type yamlEntry struct {
	Selector yamlSelector `yaml:"selector"`
	Enabled  bool         `yaml:"enabled"`
	Settings yamlSettings `yaml:"settings"`
}

type yamlDocument struct {
	SchemaVersion int         `yaml:"schemaVersion"`
	DenyByDefault bool        `yaml:"denyByDefault"`
	SourceVersion string      `yaml:"sourceVersion"`
	Allow         []yamlEntry `yaml:"allow"`
	Deny          []yamlEntry `yaml:"deny"`
}

func (e yamlEntry) toEntry() policy.Entry {
	var rl *policy.RateLimitSpec
	if e.Settings.RateLimit != nil {
		r := e.Settings.RateLimit
		rl = &policy.RateLimitSpec{
			Strategy:        policy.RateLimitStrategy(r.Strategy),
			PermitLimit:     r.PermitLimit,
			WindowMs:        r.WindowMs,
			RefillPeriodMs:  r.RefillPeriodMs,
			TokensPerPeriod: r.TokensPerPeriod,
			QueueLimit:      r.QueueLimit,
			Scope:           policy.RateLimitScope(r.Scope),
			SegmentationKey: r.SegmentationKey,
		}
	}
	return policy.Entry{
		Selector: policy.Selector{
			OperationID:   e.Selector.OperationID,
			RouteTemplate: e.Selector.RouteTemplate,
			DisplayName:   e.Selector.DisplayName,
			Method:        e.Selector.Method,
		},
		Enabled: e.Enabled,
		Settings: policy.Settings{
			TimeoutMs:           e.Settings.TimeoutMs,
			ConcurrencyLimit:    e.Settings.ConcurrencyLimit,
			AuthPropagationMode: policy.AuthPropagationMode(e.Settings.AuthPropagationMode),
			RateLimit:           rl,
		},
	}
}

// Current reads and parses the policy document file.
func (s *FilePolicySource) Current(ctx context.Context) (policy.Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		return last, fmt.Errorf("config: reading policy document %s: %w", s.path, err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return policy.Document{}, fmt.Errorf("config: parsing policy document %s: %w", s.path, err)
	}

	out := policy.Document{
		SchemaVersion: doc.SchemaVersion,
		DenyByDefault: doc.DenyByDefault,
		SourceVersion: doc.SourceVersion,
	}
	if out.SourceVersion == "" {
		out.SourceVersion = fmt.Sprintf("file:%d", time.Now().UnixNano())
	}
	for _, e := range doc.Allow {
		out.Allow = append(out.Allow, e.toEntry())
	}
	for _, e := range doc.Deny {
		out.Deny = append(out.Deny, e.toEntry())
	}

	s.mu.Lock()
	s.last = out
	s.mu.Unlock()
	return out, nil
}

// FileCandidateSource reads the set of endpoint descriptors (plus their
// description/input schema) from a YAML file, the file-backed stand-in
// contextify ships for the OpenAPI/endpoint-discovery collaborator
// spec.md §1 treats as external.
type FileCandidateSource struct {
	path string
}

// NewFileCandidateSource creates a FileCandidateSource over path.
func NewFileCandidateSource(path string) *FileCandidateSource {
	return &FileCandidateSource{path: path}
}

type yamlCandidate struct {
	RouteTemplate         string          `yaml:"routeTemplate"`
	HTTPMethod            string          `yaml:"httpMethod"`
	OperationID           string          `yaml:"operationId"`
	DisplayName           string          `yaml:"displayName"`
	Produces              []string        `yaml:"produces"`
	Consumes              []string        `yaml:"consumes"`
	RequiresAuth          bool            `yaml:"requiresAuth"`
	AcceptableAuthSchemes []string        `yaml:"acceptableAuthSchemes"`
	Description           string          `yaml:"description"`
	InputSchema            map[string]any `yaml:"inputSchema"`
}

// Candidates reads and parses the endpoint descriptor file.
func (s *FileCandidateSource) Candidates(ctx context.Context) ([]catalog.CandidateTool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("config: reading candidate endpoints %s: %w", s.path, err)
	}

	var items []yamlCandidate
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("config: parsing candidate endpoints %s: %w", s.path, err)
	}

	out := make([]catalog.CandidateTool, 0, len(items))
	for _, it := range items {
		var schemaJSON json.RawMessage
		if it.InputSchema != nil {
			b, err := json.Marshal(it.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("config: marshalling input schema for %q: %w", it.OperationID, err)
			}
			schemaJSON = b
		}
		out = append(out, catalog.CandidateTool{
			Endpoint: endpoint.Descriptor{
				RouteTemplate:         it.RouteTemplate,
				HTTPMethod:            it.HTTPMethod,
				OperationID:           it.OperationID,
				DisplayName:           it.DisplayName,
				Produces:              it.Produces,
				Consumes:              it.Consumes,
				RequiresAuth:          it.RequiresAuth,
				AcceptableAuthSchemes: it.AcceptableAuthSchemes,
			},
			Description:     it.Description,
			InputSchemaJSON: schemaJSON,
		})
	}
	return out, nil
}
