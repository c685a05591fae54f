package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across layers. Typed errors below wrap these so
// callers can branch with errors.Is without losing detail.
var (
	ErrUnknownTask         = errors.New("unknown task")
	ErrTaskActive          = errors.New("task is still active")
	ErrCapacityExceeded    = errors.New("task capacity exceeded")
	ErrInvalidOptions      = errors.New("invalid conversion options")
	ErrTimeout             = errors.New("task wall-clock budget exceeded")
	ErrUnsupportedClef     = errors.New("unsupported clef")
	ErrOutOfRange          = errors.New("staff position out of renderable range")
	ErrConversionInvariant = errors.New("conversion invariant violated")
)

// InvalidOptionsError reports a rejected submit before any task state exists.
type InvalidOptionsError struct {
	Reason string
}

func (e InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid conversion options: %s", e.Reason)
}

func (e InvalidOptionsError) Is(target error) bool { return target == ErrInvalidOptions }

// UnsupportedClefError reports a clef outside the configured geometry.
type UnsupportedClefError struct {
	Clef Clef
}

func (e UnsupportedClefError) Error() string {
	return fmt.Sprintf("unsupported clef %q", e.Clef)
}

func (e UnsupportedClefError) Is(target error) bool { return target == ErrUnsupportedClef }

// OutOfRangeError signals "unrenderable", not "invalid pitch": the position
// would need more ledger lines than the geometry allows.
type OutOfRangeError struct {
	Position   int
	MaxLedgers int
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("staff position %d exceeds %d ledger lines", e.Position, e.MaxLedgers)
}

func (e OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// ConversionInvariantError indicates a logic defect inside the transposition
// engine. It is always fatal and never retried.
type ConversionInvariantError struct {
	Index  int
	Reason string
}

func (e ConversionInvariantError) Error() string {
	return fmt.Sprintf("conversion invariant violated at note %d: %s", e.Index, e.Reason)
}

func (e ConversionInvariantError) Is(target error) bool { return target == ErrConversionInvariant }

// CollaboratorError wraps a failure of an external pipeline stage so the
// orchestrator can record which stage broke the task.
type CollaboratorError struct {
	Stage string
	Err   error
}

func (e CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e CollaboratorError) Unwrap() error { return e.Err }
