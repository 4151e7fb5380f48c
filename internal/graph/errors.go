package graph

import "fmt"

// NotFoundError is returned when a single node removal targets a node that
// is not part of the graph.
type NotFoundError struct {
	// Node is the missing node identity.
	Node any
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node %v not found in graph", e.Node)
}
