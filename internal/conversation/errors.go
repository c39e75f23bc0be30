package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSession = errors.New("session id is required")
	ErrStorage        = errors.New("session log failure")
	ErrGeneration     = errors.New("generation failure")
)

const (
	DependencyStorage    = "storage"
	DependencyGeneration = "generation"
)

// StepError reports which dependency aborted a step. errors.Is matches both
// the dependency sentinel (ErrStorage or ErrGeneration) and the cause.
type StepError struct {
	Dependency string
	SessionID  string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed for session %q: %v", e.Dependency, e.SessionID, e.Err)
}

func (e *StepError) Unwrap() []error {
	switch e.Dependency {
	case DependencyStorage:
		return []error{ErrStorage, e.Err}
	case DependencyGeneration:
		return []error{ErrGeneration, e.Err}
	}
	return []error{e.Err}
}

func storageError(sessionID string, err error) error {
	return &StepError{Dependency: DependencyStorage, SessionID: sessionID, Err: err}
}

func generationError(sessionID string, err error) error {
	return &StepError{Dependency: DependencyGeneration, SessionID: sessionID, Err: err}
}
