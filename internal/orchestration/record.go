package orchestration

import (
	"maps"
	"slices"
	"time"

	"github.com/ariel-frischer/orchestra/internal/graph"
)

// StepRecord is the serialized form of a step. Nil overrides mean the
// attribute is inherited.
type StepRecord struct {
	ID              string         `yaml:"id" json:"id" validate:"required"`
	Name            string         `yaml:"name,omitempty" json:"name,omitempty"`
	ActionID        string         `yaml:"action_id,omitempty" json:"action_id,omitempty"`
	Undo            bool           `yaml:"undo" json:"undo"`
	Target          []string       `yaml:"target,omitempty" json:"target,omitempty"`
	StopOnError     *bool          `yaml:"stop_on_error,omitempty" json:"stop_on_error,omitempty"`
	StopUndoOnError *bool          `yaml:"stop_undo_on_error,omitempty" json:"stop_undo_on_error,omitempty"`
	UndoOnError     *bool          `yaml:"undo_on_error,omitempty" json:"undo_on_error,omitempty"`
	Code            *string        `yaml:"code,omitempty" json:"code,omitempty"`
	Parameters      map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	ExpectedStdout  *string        `yaml:"expected_stdout,omitempty" json:"expected_stdout,omitempty"`
	ExpectedStderr  *string        `yaml:"expected_stderr,omitempty" json:"expected_stderr,omitempty"`
	ExpectedRC      *int           `yaml:"expected_rc,omitempty" json:"expected_rc,omitempty" validate:"omitempty,gte=0,lte=255"`
	SystemKwargs    map[string]any `yaml:"system_kwargs,omitempty" json:"system_kwargs,omitempty"`
	ParentStepIDs   []string       `yaml:"parent_step_ids,omitempty" json:"parent_step_ids,omitempty"`
	RegexpFetch     *string        `yaml:"regexp_fetch,omitempty" json:"regexp_fetch,omitempty"`
	ErrorOnFetch    *bool          `yaml:"error_on_fetch,omitempty" json:"error_on_fetch,omitempty"`
	CreatedOn       time.Time      `yaml:"created_on,omitempty" json:"created_on,omitempty"`
}

// OrchestrationRecord is the serialized form of an orchestration.
type OrchestrationRecord struct {
	ID              string         `yaml:"id,omitempty" json:"id,omitempty"`
	Name            string         `yaml:"name" json:"name" validate:"required"`
	Version         int            `yaml:"version" json:"version" validate:"gte=0"`
	Description     string         `yaml:"description,omitempty" json:"description,omitempty"`
	StopOnError     *bool          `yaml:"stop_on_error,omitempty" json:"stop_on_error,omitempty"`
	StopUndoOnError *bool          `yaml:"stop_undo_on_error,omitempty" json:"stop_undo_on_error,omitempty"`
	UndoOnError     *bool          `yaml:"undo_on_error,omitempty" json:"undo_on_error,omitempty"`
	Parameters      map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	SystemKwargs    map[string]any `yaml:"system_kwargs,omitempty" json:"system_kwargs,omitempty"`
	CreatedOn       time.Time      `yaml:"created_on,omitempty" json:"created_on,omitempty"`
	Steps           []StepRecord   `yaml:"steps" json:"steps" validate:"dive"`
}

// Load rebuilds an orchestration from its record. Steps are created first;
// then every parent_step_ids entry is resolved to a live step and the
// (parent, step) edges are replayed in stored order, so the result matches
// live incremental construction. Unknown actions or parents fail with
// *ReferenceNotFoundError before any edge is wired.
func Load(rec OrchestrationRecord, actions map[string]*Action) (*Orchestration, error) {
	o := New(rec.Name, rec.Version,
		WithID(rec.ID),
		WithDescription(rec.Description),
		WithParameters(rec.Parameters),
		WithSystemKwargs(rec.SystemKwargs),
	)
	if !rec.CreatedOn.IsZero() {
		o.CreatedOn = rec.CreatedOn
	}
	if rec.StopOnError != nil {
		o.StopOnError = *rec.StopOnError
	}
	if rec.StopUndoOnError != nil {
		o.StopUndoOnError = *rec.StopUndoOnError
	}
	if rec.UndoOnError != nil {
		o.UndoOnError = *rec.UndoOnError
	}

	for _, sr := range rec.Steps {
		var action *Action
		if sr.ActionID != "" {
			a, ok := actions[sr.ActionID]
			if !ok {
				return nil, &ReferenceNotFoundError{Kind: "action", ID: sr.ActionID, Referrer: sr.ID}
			}
			action = a
		}
		if _, err := o.AddStep(sr.stepDef(action)); err != nil {
			return nil, err
		}
	}

	var edges []graph.Edge[string]
	for _, sr := range rec.Steps {
		for _, pid := range sr.ParentStepIDs {
			if _, ok := o.index[pid]; !ok {
				return nil, &ReferenceNotFoundError{Kind: "step", ID: pid, Referrer: sr.ID}
			}
			edges = append(edges, graph.Edge[string]{From: pid, To: sr.ID})
		}
	}

	err := o.change(nil, func(trial *graph.Graph[string]) []graph.Edge[string] {
		trial.AddEdgesFrom(edges)
		return edges
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (sr StepRecord) stepDef(action *Action) StepDef {
	return StepDef{
		ID:              sr.ID,
		Name:            sr.Name,
		Undo:            sr.Undo,
		Action:          action,
		Target:          sr.Target,
		Parameters:      sr.Parameters,
		SystemKwargs:    sr.SystemKwargs,
		Code:            sr.Code,
		ExpectedStdout:  sr.ExpectedStdout,
		ExpectedStderr:  sr.ExpectedStderr,
		ExpectedRC:      sr.ExpectedRC,
		RegexpFetch:     sr.RegexpFetch,
		ErrorOnFetch:    sr.ErrorOnFetch,
		StopOnError:     sr.StopOnError,
		StopUndoOnError: sr.StopUndoOnError,
		UndoOnError:     sr.UndoOnError,
		CreatedOn:       sr.CreatedOn,
	}
}

// Record returns the serialized form of o. Only explicit overrides are
// written, and parent_step_ids follow graph insertion order.
func (o *Orchestration) Record() OrchestrationRecord {
	rec := OrchestrationRecord{
		ID:              o.ID,
		Name:            o.Name,
		Version:         o.Version,
		Description:     o.Description,
		StopOnError:     ptr(o.StopOnError),
		StopUndoOnError: ptr(o.StopUndoOnError),
		UndoOnError:     ptr(o.UndoOnError),
		Parameters:      maps.Clone(o.Parameters),
		SystemKwargs:    maps.Clone(o.SystemKwargs),
		CreatedOn:       o.CreatedOn,
		Steps:           make([]StepRecord, 0, len(o.steps)),
	}
	for _, s := range o.steps {
		rec.Steps = append(rec.Steps, s.record())
	}
	return rec
}

func (s *Step) record() StepRecord {
	sr := StepRecord{
		ID:              s.id,
		Name:            s.name,
		Undo:            s.undo,
		Target:          slices.Clone(s.target),
		StopOnError:     s.stopOnError,
		StopUndoOnError: s.stopUndoOnError,
		UndoOnError:     s.undoOnError,
		Code:            s.code,
		Parameters:      maps.Clone(s.parameters),
		ExpectedStdout:  s.expectedStdout,
		ExpectedStderr:  s.expectedStderr,
		ExpectedRC:      s.expectedRC,
		SystemKwargs:    maps.Clone(s.systemKwargs),
		RegexpFetch:     s.regexpFetch,
		ErrorOnFetch:    s.errorOnFetch,
		CreatedOn:       s.createdOn,
	}
	if s.action != nil {
		sr.ActionID = s.action.ID
	}
	if s.orch != nil {
		if parents := s.orch.graph.Predecessors(s.id); len(parents) > 0 {
			sr.ParentStepIDs = parents
		}
	}
	return sr
}

func ptr[T any](v T) *T {
	return &v
}
