package domain

import "fmt"

// ValidationError reports user input that does not satisfy a parameter
// definition or a workflow step.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing entity, or one owned by another user.
type NotFoundError struct {
	Kind string
	ID   int64
	// Name identifies the missing item when it was looked up by name.
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// InsufficientDataError reports that an analysis cannot run on the data
// available.
type InsufficientDataError struct {
	Reason string
	Rows   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data (%d rows): %s", e.Rows, e.Reason)
}

// StateError reports an action that is not valid in the current workflow
// state.
type StateError struct {
	State  string
	Action string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("action %q not allowed in state %q: %s", e.Action, e.State, e.Reason)
}
