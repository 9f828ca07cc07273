package pipeline

import (
	"fmt"
)

// Kind classifies why a stage stopped the run
type Kind int

const (
	// a required input is absent
	MissingPrecondition Kind = iota
	// the output of an expensive step already exists
	IdempotencyGuard
	// an external tool or filesystem operation failed
	Failure
)

func (k Kind) String() string {
	kinds := [...]string{"missing precondition", "idempotency guard", "failure"}
	return kinds[int(k)]
}

// StageError is the fatal result of a stage
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %s", e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func missing(s Stage, format string, args ...interface{}) error {
	return &StageError{Stage: s, Kind: MissingPrecondition, Err: fmt.Errorf(format, args...)}
}

func guard(s Stage, format string, args ...interface{}) error {
	return &StageError{Stage: s, Kind: IdempotencyGuard, Err: fmt.Errorf(format, args...)}
}

func failure(s Stage, err error) error {
	return &StageError{Stage: s, Kind: Failure, Err: err}
}
