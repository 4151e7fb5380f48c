package orchestration

import (
	"slices"
	"sort"
	"time"

	"github.com/ariel-frischer/orchestra/internal/graph"
	"github.com/google/uuid"
)

// detached holds the orchestration defaults seen by deleted steps.
var detached = Orchestration{StopOnError: true, StopUndoOnError: true, UndoOnError: true}

// Orchestration is a named, versioned workflow: an ordered list of steps
// wired into a single dependency graph whose nodes are the step IDs.
type Orchestration struct {
	ID          string
	Name        string
	Version     int
	Description string
	CreatedOn   time.Time

	// Defaults inherited by steps that do not override them.
	StopOnError     bool
	StopUndoOnError bool
	UndoOnError     bool
	Parameters      map[string]any
	SystemKwargs    map[string]any

	steps []*Step
	index map[string]*Step
	graph *graph.Graph[string]
}

// Option configures an Orchestration.
type Option func(*Orchestration)

// WithID sets the orchestration ID instead of a generated one.
func WithID(id string) Option {
	return func(o *Orchestration) {
		if id != "" {
			o.ID = id
		}
	}
}

// WithDescription sets the free-text description.
func WithDescription(d string) Option {
	return func(o *Orchestration) {
		o.Description = d
	}
}

// WithErrorPolicy sets the stop/undo defaults inherited by steps.
func WithErrorPolicy(stopOnError, stopUndoOnError, undoOnError bool) Option {
	return func(o *Orchestration) {
		o.StopOnError = stopOnError
		o.StopUndoOnError = stopUndoOnError
		o.UndoOnError = undoOnError
	}
}

// WithParameters sets the orchestration-level parameters.
func WithParameters(params map[string]any) Option {
	return func(o *Orchestration) {
		o.Parameters = params
	}
}

// WithSystemKwargs sets the orchestration-level system options.
func WithSystemKwargs(kwargs map[string]any) Option {
	return func(o *Orchestration) {
		o.SystemKwargs = kwargs
	}
}

// New creates an empty orchestration. Error policy defaults to stop on
// error, stop undo on error and undo on error.
func New(name string, version int, opts ...Option) *Orchestration {
	o := &Orchestration{
		ID:              uuid.NewString(),
		Name:            name,
		Version:         version,
		CreatedOn:       time.Now().UTC(),
		StopOnError:     true,
		StopUndoOnError: true,
		UndoOnError:     true,
		index:           make(map[string]*Step),
		graph:           graph.New[string](),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Steps returns the owned steps in insertion order.
func (o *Orchestration) Steps() []*Step {
	return slices.Clone(o.steps)
}

// Step returns the step with the given ID.
func (o *Orchestration) Step(id string) (*Step, bool) {
	s, ok := o.index[id]
	return s, ok
}

// Len returns the number of steps.
func (o *Orchestration) Len() int {
	return len(o.steps)
}

// owns reports whether s is a live member of o.
func (o *Orchestration) owns(s *Step) bool {
	return s != nil && s.orch == o && o.index[s.id] == s
}

// lookupAll maps node IDs back to steps.
func (o *Orchestration) lookupAll(ids []string) []*Step {
	steps := make([]*Step, 0, len(ids))
	for _, id := range ids {
		steps = append(steps, o.index[id])
	}
	return steps
}

// AddStep creates a step owned by o and wires it to the given parents and
// children. Membership, target, ordering and acyclicity are checked before
// anything is mutated.
func (o *Orchestration) AddStep(def StepDef) (*Step, error) {
	s := &Step{
		id:              def.ID,
		name:            def.Name,
		undo:            def.Undo,
		action:          def.Action,
		target:          slices.Clone(def.Target),
		createdOn:       def.CreatedOn,
		parameters:      def.Parameters,
		systemKwargs:    def.SystemKwargs,
		code:            def.Code,
		expectedStdout:  def.ExpectedStdout,
		expectedStderr:  def.ExpectedStderr,
		expectedRC:      def.ExpectedRC,
		regexpFetch:     def.RegexpFetch,
		errorOnFetch:    def.ErrorOnFetch,
		stopOnError:     def.StopOnError,
		stopUndoOnError: def.StopUndoOnError,
		undoOnError:     def.UndoOnError,
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.createdOn.IsZero() {
		s.createdOn = time.Now().UTC()
	}
	if !s.undo && len(s.target) == 0 {
		s.target = []string{DefaultTarget}
	}

	trial := o.graph.Copy()
	trial.AddNode(s.id)
	edges := append(edgesTo(s.id, def.Parents), edgesFrom(s.id, def.Children)...)
	trial.AddEdgesFrom(edges)

	err := validate(
		o.membership(slices.Concat(def.Parents, def.Children)...),
		o.uniqueID(s.id),
		func() error { return checkTarget(s.id, s.undo, s.target) },
		o.ordering(edges, s),
		acyclic(trial, edges),
	)
	if err != nil {
		return nil, err
	}

	s.orch = o
	o.steps = append(o.steps, s)
	o.index[s.id] = s
	o.graph = trial
	return s, nil
}

// DeleteStep removes s and every edge touching it.
func (o *Orchestration) DeleteStep(s *Step) error {
	if err := validate(o.membership(s)); err != nil {
		return err
	}
	if err := o.graph.RemoveNode(s.id); err != nil {
		return err
	}
	o.steps = slices.DeleteFunc(o.steps, func(x *Step) bool { return x == s })
	delete(o.index, s.id)
	s.orch = nil
	return nil
}

// AddParents adds parent -> s edges.
func (o *Orchestration) AddParents(s *Step, parents ...*Step) error {
	return o.change(append([]*Step{s}, parents...), func(trial *graph.Graph[string]) []graph.Edge[string] {
		edges := edgesTo(s.id, parents)
		trial.AddEdgesFrom(edges)
		return edges
	})
}

// AddChildren adds s -> child edges.
func (o *Orchestration) AddChildren(s *Step, children ...*Step) error {
	return o.change(append([]*Step{s}, children...), func(trial *graph.Graph[string]) []graph.Edge[string] {
		edges := edgesFrom(s.id, children)
		trial.AddEdgesFrom(edges)
		return edges
	})
}

// DeleteParents removes parent -> s edges. Missing edges are ignored.
func (o *Orchestration) DeleteParents(s *Step, parents ...*Step) error {
	if err := validate(o.membership(append([]*Step{s}, parents...)...)); err != nil {
		return err
	}
	o.graph.RemoveEdgesFrom(edgesTo(s.id, parents))
	return nil
}

// DeleteChildren removes s -> child edges. Missing edges are ignored.
func (o *Orchestration) DeleteChildren(s *Step, children ...*Step) error {
	if err := validate(o.membership(append([]*Step{s}, children...)...)); err != nil {
		return err
	}
	o.graph.RemoveEdgesFrom(edgesFrom(s.id, children))
	return nil
}

// SetParents replaces the parents of s: every current parent edge is
// deleted, then the given ones are added.
func (o *Orchestration) SetParents(s *Step, parents ...*Step) error {
	return o.change(append([]*Step{s}, parents...), func(trial *graph.Graph[string]) []graph.Edge[string] {
		for _, p := range trial.Predecessors(s.id) {
			trial.RemoveEdge(p, s.id)
		}
		edges := edgesTo(s.id, parents)
		trial.AddEdgesFrom(edges)
		return edges
	})
}

// SetChildren replaces the children of s: every current child edge is
// deleted, then the given ones are added.
func (o *Orchestration) SetChildren(s *Step, children ...*Step) error {
	return o.change(append([]*Step{s}, children...), func(trial *graph.Graph[string]) []graph.Edge[string] {
		for _, c := range trial.Successors(s.id) {
			trial.RemoveEdge(s.id, c)
		}
		edges := edgesFrom(s.id, children)
		trial.AddEdgesFrom(edges)
		return edges
	})
}

// Dependency lists the children of one parent step.
type Dependency struct {
	Parent   *Step
	Children []*Step
}

// SetDependencies replaces the whole edge set of the orchestration.
func (o *Orchestration) SetDependencies(deps []Dependency) error {
	var members []*Step
	for _, d := range deps {
		members = append(members, d.Parent)
		members = append(members, d.Children...)
	}
	return o.change(members, func(trial *graph.Graph[string]) []graph.Edge[string] {
		trial.RemoveEdgesFrom(trial.Edges())
		var edges []graph.Edge[string]
		for _, d := range deps {
			edges = append(edges, edgesFrom(d.Parent.id, d.Children)...)
		}
		trial.AddEdgesFrom(edges)
		return edges
	})
}

// change runs the membership check, applies edit to a trial copy of the
// graph, checks the returned edges for ordering and the trial for cycles,
// and only then swaps the trial in.
func (o *Orchestration) change(members []*Step, edit func(trial *graph.Graph[string]) []graph.Edge[string]) error {
	if err := validate(o.membership(members...)); err != nil {
		return err
	}
	trial := o.graph.Copy()
	edges := edit(trial)
	if err := validate(o.ordering(edges, nil), acyclic(trial, edges)); err != nil {
		return err
	}
	o.graph = trial
	return nil
}

// Subtree returns the steps reachable from the given ones (inclusive) with
// their children restricted to that set. Foreign steps are ignored.
func (o *Orchestration) Subtree(steps ...*Step) map[*Step][]*Step {
	var seeds []string
	for _, s := range steps {
		if o.owns(s) {
			seeds = append(seeds, s.id)
		}
	}
	sub := make(map[*Step][]*Step)
	for id, children := range o.graph.Subtree(seeds) {
		sub[o.index[id]] = o.lookupAll(children)
	}
	return sub
}

// Children returns the step -> children mapping for every step.
func (o *Orchestration) Children() map[*Step][]*Step {
	m := make(map[*Step][]*Step, len(o.steps))
	for _, s := range o.steps {
		m[s] = s.Children()
	}
	return m
}

// Parents returns the step -> parents mapping for every step.
func (o *Orchestration) Parents() map[*Step][]*Step {
	m := make(map[*Step][]*Step, len(o.steps))
	for _, s := range o.steps {
		m[s] = s.Parents()
	}
	return m
}

// Root returns the steps without parents, in step order.
func (o *Orchestration) Root() []*Step {
	return o.lookupAll(o.graph.Root())
}

// Level returns the dependency level of s, 0 for a foreign step.
func (o *Orchestration) Level(s *Step) int {
	if !o.owns(s) {
		return 0
	}
	return o.graph.Level(s.id)
}

// Depth returns the highest step level.
func (o *Orchestration) Depth() int {
	return o.graph.Depth()
}

// StepsAtLevel returns the steps at level k in step order.
func (o *Orchestration) StepsAtLevel(k int) []*Step {
	return o.lookupAll(o.graph.NodesAtLevel(k))
}

// Graph returns a copy of the dependency graph over step IDs.
func (o *Orchestration) Graph() *graph.Graph[string] {
	return o.graph.Copy()
}

// Target returns the sorted union of the forward steps' targets.
func (o *Orchestration) Target() []string {
	seen := make(map[string]struct{})
	for _, s := range o.steps {
		for _, t := range s.target {
			seen[t] = struct{}{}
		}
	}
	targets := make([]string, 0, len(seen))
	for t := range seen {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

func edgesTo(id string, parents []*Step) []graph.Edge[string] {
	edges := make([]graph.Edge[string], 0, len(parents))
	for _, p := range parents {
		if p != nil {
			edges = append(edges, graph.Edge[string]{From: p.id, To: id})
		}
	}
	return edges
}

func edgesFrom(id string, children []*Step) []graph.Edge[string] {
	edges := make([]graph.Edge[string], 0, len(children))
	for _, c := range children {
		if c != nil {
			edges = append(edges, graph.Edge[string]{From: id, To: c.id})
		}
	}
	return edges
}
