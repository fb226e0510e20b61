package vm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShape reports an array whose length does not match the model grid.
	ErrShape = errors.New("vm: shape mismatch")
	// ErrLayerIndex reports a layer index outside [0, nr].
	ErrLayerIndex = errors.New("vm: layer index out of range")
	// ErrInterfaceIndex reports an interface index outside [0, nr).
	ErrInterfaceIndex = errors.New("vm: interface index out of range")
	// ErrTruncated reports a model file that ended before its declared size.
	ErrTruncated = errors.New("vm: truncated model file")
	// ErrFormat reports a header that cannot describe a valid model.
	ErrFormat = errors.New("vm: invalid model header")
	// ErrVelocities reports an unusable velocity list for a layer operator.
	ErrVelocities = errors.New("vm: invalid layer velocities")

	// ErrGridInvalid marks content problems found in the slowness grid.
	ErrGridInvalid = errors.New("vm: slowness grid failed validation")
	// ErrInterfaceInvalid marks content problems found in the interfaces.
	ErrInterfaceInvalid = errors.New("vm: interfaces failed validation")
)

// ValidationError lists every problem found by a Validator.
type ValidationError struct {
	GridProblems      []string
	InterfaceProblems []string
}

// Count returns the total number of problems.
func (e *ValidationError) Count() int {
	return len(e.GridProblems) + len(e.InterfaceProblems)
}

func (e *ValidationError) Error() string {
	var parts []string
	if n := len(e.GridProblems); n > 0 {
		parts = append(parts, fmt.Sprintf("%d problems with slowness grid: %s",
			n, strings.Join(e.GridProblems, "; ")))
	}
	if n := len(e.InterfaceProblems); n > 0 {
		parts = append(parts, fmt.Sprintf("%d problems with interfaces: %s",
			n, strings.Join(e.InterfaceProblems, "; ")))
	}
	return fmt.Sprintf("vm: found %d total problems. %s", e.Count(), strings.Join(parts, ". "))
}

// Unwrap exposes ErrGridInvalid and/or ErrInterfaceInvalid to errors.Is.
func (e *ValidationError) Unwrap() []error {
	var errs []error
	if len(e.GridProblems) > 0 {
		errs = append(errs, ErrGridInvalid)
	}
	if len(e.InterfaceProblems) > 0 {
		errs = append(errs, ErrInterfaceInvalid)
	}
	return errs
}
