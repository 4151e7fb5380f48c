// Package orchestration layers workflow rules on top of the generic graph.
//
// An Orchestration owns an ordered list of Steps and exactly one graph whose
// nodes are the step IDs. Every structural change goes through the
// Orchestration: membership is checked first, then the forward/rollback
// ordering rule and acyclicity are checked on a trial copy of the graph, and
// only then is the change committed. A rejected call leaves no trace.
//
// Steps wrap a reusable Action. Each overridable attribute resolves through
// the step override, the orchestration default and the action default, in
// that order.
//
// The package is not safe for concurrent mutation; callers serialize
// writers per orchestration.
package orchestration
