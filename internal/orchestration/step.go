package orchestration

import (
	"maps"
	"reflect"
	"slices"
	"time"
)

// DefaultTarget is the target assigned to forward steps that name none.
const DefaultTarget = "all"

// StepDef describes a step to add to an orchestration. Nil override
// pointers and maps mean "inherit".
type StepDef struct {
	// ID is generated when empty.
	ID     string
	Name   string
	Undo   bool
	Action *Action
	// Target must be empty for rollback steps; forward steps default to
	// DefaultTarget.
	Target   []string
	Parents  []*Step
	Children []*Step

	Parameters      map[string]any
	SystemKwargs    map[string]any
	Code            *string
	ExpectedStdout  *string
	ExpectedStderr  *string
	ExpectedRC      *int
	RegexpFetch     *string
	ErrorOnFetch    *bool
	StopOnError     *bool
	StopUndoOnError *bool
	UndoOnError     *bool
	CreatedOn       time.Time
}

// Step is a unit of work inside an orchestration. Steps are created with
// Orchestration.AddStep and belong to exactly one orchestration.
type Step struct {
	id        string
	name      string
	undo      bool
	action    *Action
	target    []string
	createdOn time.Time
	orch      *Orchestration

	parameters      map[string]any
	systemKwargs    map[string]any
	code            *string
	expectedStdout  *string
	expectedStderr  *string
	expectedRC      *int
	regexpFetch     *string
	errorOnFetch    *bool
	stopOnError     *bool
	stopUndoOnError *bool
	undoOnError     *bool
}

// ID returns the step identity.
func (s *Step) ID() string { return s.id }

// Name returns the display name, falling back to the action name and ID.
func (s *Step) Name() string {
	if s.name != "" {
		return s.name
	}
	if s.action != nil && s.action.Name != "" {
		return s.action.Name
	}
	return s.id
}

// Undo reports whether this is a rollback step.
func (s *Step) Undo() bool { return s.undo }

// Action returns the wrapped action template, possibly nil.
func (s *Step) Action() *Action { return s.action }

// Target returns the execution targets. Always empty for rollback steps.
func (s *Step) Target() []string { return slices.Clone(s.target) }

// CreatedOn returns the creation timestamp.
func (s *Step) CreatedOn() time.Time { return s.createdOn }

// Orchestration returns the owner, or nil once the step has been deleted.
func (s *Step) Orchestration() *Orchestration { return s.orch }

// SetTarget replaces the targets of a forward step. Rollback steps reject
// any target, forward steps reject an empty one.
func (s *Step) SetTarget(target []string) error {
	if err := checkTarget(s.id, s.undo, target); err != nil {
		return err
	}
	s.target = slices.Clone(target)
	return nil
}

// checkTarget enforces the target rules after defaulting.
func checkTarget(id string, undo bool, target []string) error {
	if undo && len(target) > 0 {
		return &TargetSpecificationError{StepID: id, Reason: "rollback steps inherit the target of their forward step"}
	}
	if !undo && len(target) == 0 {
		return &TargetSpecificationError{StepID: id, Reason: "forward steps need at least one target"}
	}
	return nil
}

// Parents returns the direct parents in insertion order.
func (s *Step) Parents() []*Step {
	if s.orch == nil {
		return nil
	}
	return s.orch.lookupAll(s.orch.graph.Predecessors(s.id))
}

// Children returns the direct children in insertion order.
func (s *Step) Children() []*Step {
	if s.orch == nil {
		return nil
	}
	return s.orch.lookupAll(s.orch.graph.Successors(s.id))
}

// action-layer accessors tolerate a nil action.

func (s *Step) actionParameters() map[string]any {
	if s.action == nil {
		return nil
	}
	return s.action.Parameters
}

func (s *Step) actionSystemKwargs() map[string]any {
	if s.action == nil {
		return nil
	}
	return s.action.SystemKwargs
}

func (s *Step) actionCode() *string {
	if s.action == nil {
		return nil
	}
	return &s.action.Code
}

func (s *Step) actionExpectedStdout() *string {
	if s.action == nil {
		return nil
	}
	return s.action.ExpectedStdout
}

func (s *Step) actionExpectedStderr() *string {
	if s.action == nil {
		return nil
	}
	return s.action.ExpectedStderr
}

func (s *Step) actionExpectedRC() *int {
	if s.action == nil {
		return nil
	}
	return s.action.ExpectedRC
}

func (s *Step) actionRegexpFetch() *string {
	if s.action == nil {
		return nil
	}
	return s.action.RegexpFetch
}

func (s *Step) actionErrorOnFetch() *bool {
	if s.action == nil {
		return nil
	}
	return s.action.ErrorOnFetch
}

// orchestration-layer accessors; a detached step falls back to the
// orchestration defaults.

func (s *Step) orchestrationDefaults() *Orchestration {
	if s.orch == nil {
		return &detached
	}
	return s.orch
}

// Code returns the effective code template.
func (s *Step) Code() string {
	return resolve(s.code, nil, s.actionCode())
}

// Parameters returns the action parameters overlaid by the orchestration
// and step parameters. The returned map is a fresh copy.
func (s *Step) Parameters() map[string]any {
	return overlay(s.actionParameters(), s.orchestrationDefaults().Parameters, s.parameters)
}

// SystemKwargs returns the merged system options. The returned map is a
// fresh copy.
func (s *Step) SystemKwargs() map[string]any {
	return overlay(s.actionSystemKwargs(), s.orchestrationDefaults().SystemKwargs, s.systemKwargs)
}

// ExpectedStdout returns the text that stdout must contain, "" for none.
func (s *Step) ExpectedStdout() string {
	return resolve(s.expectedStdout, nil, s.actionExpectedStdout())
}

// ExpectedStderr returns the text that stderr must contain, "" for none.
func (s *Step) ExpectedStderr() string {
	return resolve(s.expectedStderr, nil, s.actionExpectedStderr())
}

// ExpectedRC returns the expected return code and whether one is set.
func (s *Step) ExpectedRC() (int, bool) {
	return lookup(s.expectedRC, nil, s.actionExpectedRC())
}

// RegexpFetch returns the output fetcher pattern, "" for none.
func (s *Step) RegexpFetch() string {
	return resolve(s.regexpFetch, nil, s.actionRegexpFetch())
}

// ErrorOnFetch reports whether a fetcher that does not match fails the step.
func (s *Step) ErrorOnFetch() bool {
	return resolve(s.errorOnFetch, nil, s.actionErrorOnFetch())
}

// StopOnError reports whether a failure stops scheduling further steps.
func (s *Step) StopOnError() bool {
	return resolve(s.stopOnError, &s.orchestrationDefaults().StopOnError, nil)
}

// StopUndoOnError reports whether a failed rollback stops the rollback phase.
func (s *Step) StopUndoOnError() bool {
	return resolve(s.stopUndoOnError, &s.orchestrationDefaults().StopUndoOnError, nil)
}

// UndoOnError reports whether a failure triggers the rollback phase.
func (s *Step) UndoOnError() bool {
	return resolve(s.undoOnError, &s.orchestrationDefaults().UndoOnError, nil)
}

// SetCode overrides the code template.
func (s *Step) SetCode(code string) {
	s.code = normalize(code, resolve[string](nil, nil, s.actionCode()), true)
}

// SetExpectedStdout overrides the expected stdout.
func (s *Step) SetExpectedStdout(v string) {
	s.expectedStdout = normalize(v, resolve[string](nil, nil, s.actionExpectedStdout()), true)
}

// SetExpectedStderr overrides the expected stderr.
func (s *Step) SetExpectedStderr(v string) {
	s.expectedStderr = normalize(v, resolve[string](nil, nil, s.actionExpectedStderr()), true)
}

// SetExpectedRC overrides the expected return code.
func (s *Step) SetExpectedRC(rc int) {
	fallback, ok := lookup[int](nil, nil, s.actionExpectedRC())
	s.expectedRC = normalize(rc, fallback, ok)
}

// SetRegexpFetch overrides the output fetcher pattern.
func (s *Step) SetRegexpFetch(pattern string) {
	s.regexpFetch = normalize(pattern, resolve[string](nil, nil, s.actionRegexpFetch()), true)
}

// SetErrorOnFetch overrides the fetch failure policy.
func (s *Step) SetErrorOnFetch(v bool) {
	s.errorOnFetch = normalize(v, resolve[bool](nil, nil, s.actionErrorOnFetch()), true)
}

// SetStopOnError overrides the orchestration default.
func (s *Step) SetStopOnError(v bool) {
	s.stopOnError = normalize(v, s.orchestrationDefaults().StopOnError, true)
}

// SetStopUndoOnError overrides the orchestration default.
func (s *Step) SetStopUndoOnError(v bool) {
	s.stopUndoOnError = normalize(v, s.orchestrationDefaults().StopUndoOnError, true)
}

// SetUndoOnError overrides the orchestration default.
func (s *Step) SetUndoOnError(v bool) {
	s.undoOnError = normalize(v, s.orchestrationDefaults().UndoOnError, true)
}

// SetParameters stores the entries of params that differ from the
// inherited parameters. Inherited keys cannot be removed this way.
func (s *Step) SetParameters(params map[string]any) {
	s.parameters = diffLayer(params, overlay(s.actionParameters(), s.orchestrationDefaults().Parameters))
}

// SetSystemKwargs stores the entries of kwargs that differ from the
// inherited system options.
func (s *Step) SetSystemKwargs(kwargs map[string]any) {
	s.systemKwargs = diffLayer(kwargs, overlay(s.actionSystemKwargs(), s.orchestrationDefaults().SystemKwargs))
}

// diffLayer returns the entries of m not already present with an equal
// value in fallback, or nil when nothing differs.
func diffLayer(m, fallback map[string]any) map[string]any {
	diff := make(map[string]any)
	for k, v := range m {
		if fv, ok := fallback[k]; ok && reflect.DeepEqual(fv, v) {
			continue
		}
		diff[k] = v
	}
	if len(diff) == 0 {
		return nil
	}
	return diff
}

// EqImp reports whether two steps behave the same: same undo flag and the
// same effective parameters, expectations, system options and code.
// Identity and graph position are ignored.
func (s *Step) EqImp(other *Step) bool {
	if other == nil {
		return false
	}
	if s.undo != other.undo || s.Code() != other.Code() {
		return false
	}
	if s.ExpectedStdout() != other.ExpectedStdout() || s.ExpectedStderr() != other.ExpectedStderr() {
		return false
	}
	rc, hasRC := s.ExpectedRC()
	otherRC, otherHasRC := other.ExpectedRC()
	if hasRC != otherHasRC || rc != otherRC {
		return false
	}
	return maps.EqualFunc(s.Parameters(), other.Parameters(), valuesEqual) &&
		maps.EqualFunc(s.SystemKwargs(), other.SystemKwargs(), valuesEqual)
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
