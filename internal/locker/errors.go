package locker

import (
	"fmt"
	"strings"
)

// ConflictError is returned when a claim overlaps a lock that is held or
// a more urgent declared claim.
type ConflictError struct {
	// Resources are the overlapping resources.
	Resources []string
	// Holder is the conflicting claim.
	Holder *Claim
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("resources [%s] are %s by %s (claim %s, PID %d, priority %d)",
		strings.Join(e.Resources, ", "), e.Holder.State, e.Holder.Applicant,
		e.Holder.ID, e.Holder.PID, e.Holder.Priority)
}

// UnknownClaimError is returned when committing a claim that no longer exists.
type UnknownClaimError struct {
	ID string
}

// Error implements the error interface.
func (e *UnknownClaimError) Error() string {
	return fmt.Sprintf("claim %s not found (released or expired)", e.ID)
}
