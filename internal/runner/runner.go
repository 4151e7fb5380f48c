// Package runner executes an orchestration level by level under a lock.
//
// Forward steps run first. Steps of one level run concurrently; a step
// whose parent did not succeed is skipped. A failed step with
// stop_on_error ends the forward phase. When any failed step has
// undo_on_error, the rollback steps run next: a rollback step runs when
// all its forward parents were executed and all its rollback parents
// succeeded. A failed rollback step with stop_undo_on_error ends the
// rollback phase.
package runner

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ariel-frischer/orchestra/internal/ctxlog"
	"github.com/ariel-frischer/orchestra/internal/executor"
	"github.com/ariel-frischer/orchestra/internal/locker"
	"github.com/ariel-frischer/orchestra/internal/orchestration"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Locker guards an orchestration against concurrent runs.
type Locker interface {
	Acquire(ctx context.Context, applicant string, resources []string, priority int) (*locker.Claim, error)
	Release(ctx context.Context, claim *locker.Claim) error
}

// Executor runs a single step.
type Executor interface {
	Execute(ctx context.Context, step *orchestration.Step, vars map[string]any) (*executor.CompletedProcess, error)
}

// Phase tells forward execution from rollback.
type Phase string

const (
	PhaseForward  Phase = "forward"
	PhaseRollback Phase = "rollback"
)

// Status is the outcome of one step.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks a step that was never started.
	StatusSkipped Status = "skipped"
)

// StepResult is the outcome of one step.
type StepResult struct {
	StepID  string
	Name    string
	Phase   Phase
	Level   int
	Status  Status
	Process *executor.CompletedProcess
	// Err is set when the step could not be started.
	Err error
}

// executed reports whether the step was started.
func (r StepResult) executed() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

// Result is the outcome of a run. Steps are ordered by phase, level and
// step order.
type Result struct {
	RunID         string
	Orchestration string
	Success       bool
	RolledBack    bool
	StartTime     time.Time
	EndTime       time.Time
	Steps         []StepResult
	// Vars are the run parameters plus every fetched value.
	Vars map[string]any
}

// Failed returns the results of the steps that failed.
func (r *Result) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// Observer is notified as the run progresses. Calls for one level may
// come from several goroutines.
type Observer interface {
	LevelStarted(phase Phase, level int, steps []*orchestration.Step)
	StepFinished(result StepResult)
}

// MissingParametersError is returned when the run parameters do not
// cover the user parameters of the orchestration.
type MissingParametersError struct {
	Names []string
}

// Error implements the error interface.
func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("missing run parameters: %s", strings.Join(e.Names, ", "))
}

// Runner runs orchestrations.
type Runner struct {
	locker      Locker
	executor    Executor
	maxParallel int
	priority    int
	applicant   string
	observer    Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxParallel sets the maximum number of concurrent steps in a level.
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxParallel = n
		}
	}
}

// WithPriority sets the lock priority (lower is more urgent).
func WithPriority(p int) Option {
	return func(r *Runner) {
		r.priority = p
	}
}

// WithApplicant names the lock holder.
func WithApplicant(name string) Option {
	return func(r *Runner) {
		r.applicant = name
	}
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// New creates a Runner. Default maxParallel is 4.
func New(l Locker, e Executor, opts ...Option) *Runner {
	r := &Runner{
		locker:      l,
		executor:    e,
		maxParallel: 4,
		priority:    10,
		applicant:   "orchestra",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LockResource is the resource locked while o runs.
func LockResource(o *orchestration.Orchestration) string {
	return "orchestration/" + o.ID
}

// Run executes o with the given parameters. Step failures are reported in
// the Result; an error means the run could not start or was cancelled.
func (r *Runner) Run(ctx context.Context, o *orchestration.Orchestration, params map[string]any) (*Result, error) {
	if err := checkParameters(o, params); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run", runID, "orchestration", o.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	claim, err := r.locker.Acquire(ctx, r.applicant, []string{LockResource(o)}, r.priority)
	if err != nil {
		return nil, fmt.Errorf("locking orchestration %s: %w", o.Name, err)
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), claim); err != nil {
			logger.Warn("releasing lock", "error", err)
		}
	}()

	run := &run{
		runner:  r,
		orch:    o,
		vars:    maps.Clone(params),
		results: make(map[string]StepResult, o.Len()),
		result: &Result{
			RunID:         runID,
			Orchestration: o.Name,
			StartTime:     time.Now(),
		},
	}
	if run.vars == nil {
		run.vars = make(map[string]any)
	}

	logger.Info("run started", "steps", o.Len(), "depth", o.Depth())
	err = run.execute(ctx)
	run.result.EndTime = time.Now()
	run.result.Vars = run.vars
	logger.Info("run finished", "success", run.result.Success,
		"rolled_back", run.result.RolledBack, "duration", run.result.EndTime.Sub(run.result.StartTime))
	return run.result, err
}

// checkParameters ensures every user parameter is either supplied or
// fetched by some step.
func checkParameters(o *orchestration.Orchestration, params map[string]any) error {
	provided := make(map[string]bool, len(params))
	for k := range params {
		provided[k] = true
	}
	for _, s := range o.Steps() {
		for _, name := range s.FetchedParameters() {
			provided[name] = true
		}
	}

	missing := make(map[string]bool)
	for _, s := range o.Steps() {
		for _, name := range s.UserParameters() {
			if !provided[name] {
				missing[name] = true
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	names := slices.Collect(maps.Keys(missing))
	sort.Strings(names)
	return &MissingParametersError{Names: names}
}

// run holds the state of one execution.
type run struct {
	runner  *Runner
	orch    *orchestration.Orchestration
	vars    map[string]any
	results map[string]StepResult
	result  *Result
}

func (rn *run) execute(ctx context.Context) error {
	stopped, err := rn.phase(ctx, PhaseForward)
	if err != nil {
		return err
	}

	forwardOK := !stopped
	undo := false
	for _, res := range rn.result.Steps {
		if res.Status != StatusSucceeded {
			forwardOK = false
		}
		if res.Status == StatusFailed {
			if s, ok := rn.orch.Step(res.StepID); ok && s.UndoOnError() {
				undo = true
			}
		}
	}
	rn.result.Success = forwardOK

	if undo {
		rn.result.RolledBack = true
		if _, err := rn.phase(ctx, PhaseRollback); err != nil {
			return err
		}
	}
	return nil
}

// phase runs the steps of one phase level by level. It reports whether
// the phase was stopped by a failing step.
func (rn *run) phase(ctx context.Context, phase Phase) (bool, error) {
	logger := ctxlog.FromContext(ctx)
	stopped := false

	for level := 1; level <= rn.orch.Depth(); level++ {
		var ready, skipped []*orchestration.Step
		for _, s := range rn.orch.StepsAtLevel(level) {
			if s.Undo() != (phase == PhaseRollback) {
				continue
			}
			if !stopped && rn.eligible(s, phase) {
				ready = append(ready, s)
			} else {
				skipped = append(skipped, s)
			}
		}
		for _, s := range skipped {
			rn.record(StepResult{StepID: s.ID(), Name: s.Name(), Phase: phase, Level: level, Status: StatusSkipped})
		}
		if len(ready) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stopped, err
		}

		logger.Info("level started", "phase", phase, "level", level, "steps", len(ready))
		if rn.runner.observer != nil {
			rn.runner.observer.LevelStarted(phase, level, ready)
		}
		results := rn.level(ctx, phase, level, ready)

		for _, res := range results {
			rn.record(res)
			if res.Process != nil {
				for k, v := range res.Process.Fetched {
					rn.vars[k] = v
				}
			}
			if res.Status == StatusFailed && rn.stops(res.StepID, phase) {
				logger.Warn("stopping phase after failure", "phase", phase, "step", res.StepID)
				stopped = true
			}
		}
	}
	return stopped, nil
}

// level runs ready steps concurrently and returns their results in step order.
func (rn *run) level(ctx context.Context, phase Phase, level int, ready []*orchestration.Step) []StepResult {
	results := make([]StepResult, len(ready))
	vars := maps.Clone(rn.vars)

	var g errgroup.Group
	g.SetLimit(rn.runner.maxParallel)
	for i, s := range ready {
		g.Go(func() error {
			res := StepResult{StepID: s.ID(), Name: s.Name(), Phase: phase, Level: level}
			cp, err := rn.runner.executor.Execute(ctx, s, vars)
			res.Process, res.Err = cp, err
			res.Status = StatusFailed
			if err == nil && cp != nil && cp.Success {
				res.Status = StatusSucceeded
			}
			ctxlog.FromContext(ctx).Info("step finished", "step", s.ID(), "phase", phase, "status", res.Status)

			results[i] = res
			if rn.runner.observer != nil {
				rn.runner.observer.StepFinished(res)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// eligible applies the dependency rule of the phase to s.
func (rn *run) eligible(s *orchestration.Step, phase Phase) bool {
	for _, p := range s.Parents() {
		res, ok := rn.results[p.ID()]
		if !ok {
			return false
		}
		switch {
		case phase == PhaseForward || p.Undo():
			if res.Status != StatusSucceeded {
				return false
			}
		default:
			if !res.executed() {
				return false
			}
		}
	}
	return true
}

func (rn *run) stops(stepID string, phase Phase) bool {
	s, ok := rn.orch.Step(stepID)
	if !ok {
		return false
	}
	if phase == PhaseRollback {
		return s.StopUndoOnError()
	}
	return s.StopOnError()
}

func (rn *run) record(res StepResult) {
	rn.results[res.StepID] = res
	rn.result.Steps = append(rn.result.Steps, res)
}
