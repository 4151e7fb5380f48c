package orchestration

// EqImp reports whether o and other implement the same workflow,
// regardless of step identity, insertion order or position.
//
// The walk is greedy: each step of o, in step order, is paired with the
// first not yet paired step of other that is step-equivalent to it, and
// only then are their children compared. When o holds several
// step-equivalent steps with different dependency shapes the first match
// may be the wrong one, so two isomorphic workflows can compare unequal.
// This is a known limitation of the comparison and is kept as is.
//
// Mismatched inputs yield false. A *ConsistencyError is returned only when
// a step that passed the membership pass cannot be paired during the walk.
func (o *Orchestration) EqImp(other *Orchestration) (bool, error) {
	if other == nil || len(o.steps) != len(other.steps) {
		return false, nil
	}
	for _, s := range o.steps {
		if !anyEquivalent(s, other.steps) {
			return false, nil
		}
	}

	matched := make(map[*Step]bool, len(other.steps))
	equal := true
	for _, s := range o.steps {
		counterpart := firstUnmatched(s, other.steps, matched)
		if counterpart == nil {
			return false, &ConsistencyError{
				StepID:  s.id,
				Message: "no unmatched equivalent step left in the other orchestration",
			}
		}
		matched[counterpart] = true

		children := s.Children()
		otherChildren := counterpart.Children()
		if len(children) != len(otherChildren) {
			equal = false
			continue
		}
		for _, c := range children {
			if !anyEquivalent(c, otherChildren) {
				equal = false
			}
		}
	}
	return equal, nil
}

func anyEquivalent(s *Step, candidates []*Step) bool {
	for _, c := range candidates {
		if c.EqImp(s) {
			return true
		}
	}
	return false
}

func firstUnmatched(s *Step, candidates []*Step, matched map[*Step]bool) *Step {
	for _, c := range candidates {
		if !matched[c] && c.EqImp(s) {
			return c
		}
	}
	return nil
}
