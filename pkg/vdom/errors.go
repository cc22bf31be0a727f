package vdom

import (
	"errors"
	"fmt"
)

// Sentinel errors for tree operations.
var (
	// ErrCycle is returned when an attach would make a node its own ancestor.
	ErrCycle = errors.New("vdom: attach would create a cycle")

	// ErrNodeNotFound is returned when a node id is not reachable from the root.
	ErrNodeNotFound = errors.New("vdom: node not found")

	// ErrHandlerNotFound is returned when a node has no handler of the given name.
	ErrHandlerNotFound = errors.New("vdom: handler not found")

	// ErrNilChild is returned when attaching a nil node.
	ErrNilChild = errors.New("vdom: nil child")
)

// CycleError describes a rejected attach.
type CycleError struct {
	Parent ID
	Child  ID
}

// Error returns the error message.
func (e *CycleError) Error() string {
	return fmt.Sprintf("vdom: attaching node %d under %d would create a cycle", e.Child, e.Parent)
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
