package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrIntrospection wraps any failure to read catalog metadata. It is always
	// fatal: guessing "does not exist" could re-apply a destructive step.
	ErrIntrospection = errors.New("catalog introspection failed")

	// ErrConstraintViolation wraps failures to add the foreign key or to
	// tighten the column to NOT NULL because existing data violates it, and
	// orphaned keys found before any DDL on dialects that cannot roll DDL back.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrSeedConflict is returned when the reference table already maps an id
	// or a code differently than the seed set. Re-keying is not supported.
	ErrSeedConflict = errors.New("seed conflicts with existing reference row")

	// ErrInvalidSeed is returned for malformed seed sets.
	ErrInvalidSeed = errors.New("invalid seed set")

	// ErrInvalidPlan is returned for plans naming unusable tables or columns.
	ErrInvalidPlan = errors.New("invalid migration plan")
)

// StepError records which step aborted a run.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
