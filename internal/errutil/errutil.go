// Package errutil combines errors from deferred cleanups.
package errutil

import (
	"github.com/hashicorp/go-multierror"
)

// Combine returns nil if every error is nil, the only non-nil error if
// there is one, and a *multierror.Error of all of them otherwise.
func Combine(errors ...error) (err error) {
	for _, e := range errors {
		switch {
		case e == nil:
			// ignore
		case err == nil:
			err = e
		default:
			err = multierror.Append(err, e)
		}
	}
	return err
}
