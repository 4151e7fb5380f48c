package orchestration

import (
	"fmt"
	"strings"

	"github.com/ariel-frischer/orchestra/internal/graph"
)

// NotFoundError is returned by the graph when a single node removal targets
// a missing node.
type NotFoundError = graph.NotFoundError

// MembershipError is returned when a step argument does not belong to the
// orchestration being mutated.
type MembershipError struct {
	// StepID is the ID of the foreign step ("" for a nil step).
	StepID string
	// Orchestration is the name of the orchestration being mutated.
	Orchestration string
}

// Error implements the error interface.
func (e *MembershipError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("nil step does not belong to orchestration %q", e.Orchestration)
	}
	return fmt.Sprintf("step %q does not belong to orchestration %q", e.StepID, e.Orchestration)
}

// OrderingViolationError is returned when an edge would make a forward step
// depend on a rollback step.
type OrderingViolationError struct {
	// Parent is the rollback step ID.
	Parent string
	// Child is the forward step ID.
	Child string
}

// Error implements the error interface.
func (e *OrderingViolationError) Error() string {
	return fmt.Sprintf("rollback step %q cannot be a parent of forward step %q", e.Parent, e.Child)
}

// CycleError is returned when the proposed edges would make the graph cyclic.
type CycleError struct {
	// Edges are the proposed edges that closed the cycle.
	Edges []graph.Edge[string]
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if len(e.Edges) == 0 {
		return "cycle detected in step dependencies"
	}
	parts := make([]string, 0, len(e.Edges))
	for _, edge := range e.Edges {
		parts = append(parts, edge.From+" -> "+edge.To)
	}
	return fmt.Sprintf("cycle detected in step dependencies: adding [%s]", strings.Join(parts, ", "))
}

// TargetSpecificationError is returned when a rollback step names targets
// or a forward step ends up without any.
type TargetSpecificationError struct {
	StepID string
	Reason string
}

// Error implements the error interface.
func (e *TargetSpecificationError) Error() string {
	return fmt.Sprintf("invalid target for step %q: %s", e.StepID, e.Reason)
}

// ReferenceNotFoundError is returned when a serialized orchestration
// references a step or action that is not part of the data set.
type ReferenceNotFoundError struct {
	// Kind is "step" or "action".
	Kind string
	// ID is the unresolved reference.
	ID string
	// Referrer is the ID of the step holding the reference.
	Referrer string
}

// Error implements the error interface.
func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("step %q references unknown %s %q", e.Referrer, e.Kind, e.ID)
}

// DuplicateStepError is returned when a step ID is already taken.
type DuplicateStepError struct {
	StepID string
}

// Error implements the error interface.
func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("step %q already exists", e.StepID)
}

// ConsistencyError signals that the equivalence walk could not match a step
// that the membership pass had accepted.
type ConsistencyError struct {
	StepID  string
	Message string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("equivalence check inconsistent at step %q: %s", e.StepID, e.Message)
}
