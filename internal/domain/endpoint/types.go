// Package endpoint contains the descriptor type supplied by the external
// endpoint/OpenAPI-discovery collaborator (spec.md §1 non-goals) that the
// catalog builder joins against a policy document.
package endpoint

import "errors"

// ErrNoIdentifyingField is returned by Validate when none of
// OperationID/RouteTemplate/DisplayName is set.
var ErrNoIdentifyingField = errors.New("endpoint: descriptor has no identifying field")

// Descriptor describes one backend HTTP operation a tool can be built
// from. It is supplied wholesale by an external collaborator; this
// package only defines its shape and the one structural invariant
// spec.md §3 places on it.
type Descriptor struct {
	RouteTemplate          string
	HTTPMethod             string
	OperationID            string
	DisplayName            string
	Produces               []string
	Consumes               []string
	RequiresAuth           bool
	AcceptableAuthSchemes  []string
}

// Validate checks that at least one identifying field is present.
func (d Descriptor) Validate() error {
	if d.OperationID == "" && d.RouteTemplate == "" && d.DisplayName == "" {
		return ErrNoIdentifyingField
	}
	return nil
}
