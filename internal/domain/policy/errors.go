package policy

import "errors"

// ErrInvalidDescriptor is returned by Resolve when the endpoint
// descriptor being matched carries none of operationId/routeTemplate/
// displayName (spec.md §4.1).
var ErrInvalidDescriptor = errors.New("policy: descriptor has no identifying field")

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func errInvalidRateLimit(msg string) error { return &validationError{"policy: invalid rate limit: " + msg} }
func errInvalidSettings(msg string) error  { return &validationError{"policy: invalid settings: " + msg} }
func errInvalidDocument(msg string) error  { return &validationError{"policy: invalid document: " + msg} }
