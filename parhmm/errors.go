package parhmm

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// SequenceError is the failure of a single sequence in a batch.
type SequenceError struct {
	ID  string
	Err error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("sequence %s: %v", e.ID, e.Err)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}

// BatchError collects the failed sequences of a batch.  The results of the
// other sequences are still returned alongside it.
type BatchError struct {
	Failed []*SequenceError

	merr *multierror.Error
}

func newBatchError(failed []*SequenceError) *BatchError {
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })
	var merr *multierror.Error
	for _, f := range failed {
		merr = multierror.Append(merr, f)
	}
	merr.ErrorFormat = func(es []error) string {
		return fmt.Sprintf("%d sequence(s) failed: %v", len(es), es[0])
	}
	return &BatchError{Failed: failed, merr: merr}
}

func (e *BatchError) Error() string {
	return e.merr.Error()
}

// Unwrap returns the individual sequence errors.
func (e *BatchError) Unwrap() []error {
	return e.merr.WrappedErrors()
}

// IDs returns the identifiers of the failed sequences in sorted order.
func (e *BatchError) IDs() []string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	return ids
}

// Merge combines the failures of several batches over the same sequences.
// Nil batches are skipped and nil is returned if nothing failed.
func Merge(batches ...*BatchError) *BatchError {
	var failed []*SequenceError
	for _, b := range batches {
		if b != nil {
			failed = append(failed, b.Failed...)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return newBatchError(failed)
}
