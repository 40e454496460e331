package relgraph

import "errors"

// Structural errors raised by mutating calls that would violate a
// graph invariant. The caller must treat them as a rejected mutation.
var (
	ErrInvalidParameters    = errors.New("invalid parameters")
	ErrSelfReference        = errors.New("self reference")
	ErrCircularReference    = errors.New("circular reference")
	ErrRelationshipNotFound = errors.New("relationship not found")
)
