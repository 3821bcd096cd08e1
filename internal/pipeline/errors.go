package pipeline

import "errors"

// Error taxonomy per spec.md §7. Every kind is a distinct sentinel checked
// with errors.Is; none is ever rethrown out of a task — the task is the
// unit of failure containment.
var (
	ErrUnauthorized     = errors.New("pipeline: node not in authorized set")
	ErrStale            = errors.New("pipeline: re-check did not return OK")
	ErrRequestAbsent    = errors.New("pipeline: request not found on chain")
	ErrConfigMissing    = errors.New("pipeline: config missing from content store")
	ErrConfigInvalid    = errors.New("pipeline: config malformed")
	ErrModelUnspecified = errors.New("pipeline: platform or model unspecified")
)
