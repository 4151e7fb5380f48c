package orchestration

import "github.com/ariel-frischer/orchestra/internal/graph"

// check is a single validation step. Checks run in sequence and the first
// failure wins, so callers can tell failure kinds apart by error type.
type check func() error

func validate(checks ...check) error {
	for _, c := range checks {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

// membership fails with *MembershipError for the first step not owned by o.
func (o *Orchestration) membership(steps ...*Step) check {
	return func() error {
		for _, s := range steps {
			if !o.owns(s) {
				id := ""
				if s != nil {
					id = s.id
				}
				return &MembershipError{StepID: id, Orchestration: o.Name}
			}
		}
		return nil
	}
}

// uniqueID fails with *DuplicateStepError if id is taken.
func (o *Orchestration) uniqueID(id string) check {
	return func() error {
		if _, ok := o.index[id]; ok {
			return &DuplicateStepError{StepID: id}
		}
		return nil
	}
}

// ordering rejects any edge from a rollback step to a forward step. pending
// is a step that is being added and is not indexed yet.
func (o *Orchestration) ordering(edges []graph.Edge[string], pending *Step) check {
	return func() error {
		undo := func(id string) bool {
			if pending != nil && id == pending.id {
				return pending.undo
			}
			s, ok := o.index[id]
			return ok && s.undo
		}
		for _, e := range edges {
			if undo(e.From) && !undo(e.To) {
				return &OrderingViolationError{Parent: e.From, Child: e.To}
			}
		}
		return nil
	}
}

// acyclic fails with *CycleError if the trial graph has a cycle.
func acyclic(trial *graph.Graph[string], edges []graph.Edge[string]) check {
	return func() error {
		if trial.IsCyclic() {
			return &CycleError{Edges: edges}
		}
		return nil
	}
}
