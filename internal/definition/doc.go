// Package definition reads orchestration definition files.
//
// A definition file holds a list of reusable actions and one orchestration
// whose steps reference actions by id and parents by step id. Files are
// YAML or JSON; YAML input keeps line and column information so that
// validation errors can point at the offending node.
package definition
