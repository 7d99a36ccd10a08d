package hmmlib

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformedInput is returned for empty sequences, symbols outside the
	// alphabet and parameter matrices with inconsistent dimensions.
	ErrMalformedInput = errors.New("malformed input")

	// ErrNumericDegeneracy is returned when a scale factor vanishes during the
	// forward recursion or the log-likelihood stops being finite.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
)

// DegeneracyError reports a fatal numeric failure during training.  The
// model parameters and transition statistics in effect at the time of the
// failure have already been handed to the Checkpointer when this is returned.
type DegeneracyError struct {
	Iter    int
	LogLike float64

	// The smallest and largest scale factors seen in the failing iteration.
	MinScale, MaxScale float64

	Err error
}

func (e *DegeneracyError) Error() string {
	msg := fmt.Sprintf("iteration %d: log-likelihood %v (scale factors in [%g, %g])",
		e.Iter, e.LogLike, e.MinScale, e.MaxScale)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DegeneracyError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNumericDegeneracy
}

func (e *DegeneracyError) Is(target error) bool {
	return target == ErrNumericDegeneracy
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
