package hmmlib

import (
	"context"
	"errors"
	"math"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultMaxIter is the default cap on Baum-Welch iterations.
	DefaultMaxIter = 100

	// DefaultThreshold is the default convergence threshold on the change
	// in total log-likelihood.
	DefaultThreshold = 1e-5
)

// Warnings counts non-fatal events seen while fitting.
type Warnings struct {
	LogLikeDecreased int
	StatesPruned     int
}

// EstimatorFunc runs the forward-backward recursions on every sequence
// against m.  The i'th estimate must belong to seqs[i].  Implementations
// must not modify m.
type EstimatorFunc func(ctx context.Context, m *Model, seqs [][]int) ([]*Estimate, error)

// SequentialEstimator estimates the sequences one at a time on the calling
// goroutine.
func SequentialEstimator(ctx context.Context, m *Model, seqs [][]int) ([]*Estimate, error) {
	ests := make([]*Estimate, len(seqs))
	for r, x := range seqs {
		est, err := m.Estimate(x)
		if err != nil {
			return nil, err
		}
		ests[r] = est
	}
	return ests, nil
}

// Trainer fits a Model with the Baum-Welch algorithm.  The Model is updated
// in place and must not be used by anyone else while Fit runs.
type Trainer struct {
	Model *Model

	// Maximum number of EM iterations, DefaultMaxIter if zero
	MaxIter int

	// Training stops once the log-likelihood improves by less than this,
	// DefaultThreshold if zero
	Threshold float64

	// Added to the parameters after every maximization step
	Pseudocounts Pseudocounts

	// States with at most this much expected transition mass in and out
	// are removed
	PruneThreshold float64

	// Optional, receives the parameters after every iteration and on failure
	Checkpointer Checkpointer

	// Runs the expectation step, SequentialEstimator if nil
	Estimator EstimatorFunc

	// Number of the first iteration as passed to the Checkpointer, for
	// runs continued from a snapshot
	FirstIter int

	Logger hclog.Logger

	// The log-likelihood of each iteration
	LLF []float64

	// Set by Fit
	Converged bool
	Warnings  Warnings
}

// NewTrainer returns a Trainer for m with default settings.
func NewTrainer(m *Model) *Trainer {
	return &Trainer{
		Model:     m,
		MaxIter:   DefaultMaxIter,
		Threshold: DefaultThreshold,
	}
}

func (tr *Trainer) logger() hclog.Logger {
	if tr.Logger == nil {
		tr.Logger = hclog.New(&hclog.LoggerOptions{Name: "hmmlib"})
	}
	return tr.Logger
}

// Fit runs EM on seqs until the log-likelihood converges or MaxIter
// iterations have been done.  The context is checked between iterations.
// A non-finite log-likelihood or scale factor aborts the fit with a
// *DegeneracyError after the parameters have been handed to
// Checkpointer.Failure.
func (tr *Trainer) Fit(ctx context.Context, seqs [][]int) error {

	m := tr.Model
	log := tr.logger()

	if len(seqs) == 0 {
		return malformed("no training sequences")
	}

	maxiter := tr.MaxIter
	if maxiter <= 0 {
		maxiter = DefaultMaxIter
	}
	threshold := tr.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	estimate := tr.Estimator
	if estimate == nil {
		estimate = SequentialEstimator
	}

	// The indicator form of the data does not depend on the parameters
	ind := make([]indicator, len(seqs))
	for r, x := range seqs {
		if err := m.CheckSequence(x); err != nil {
			return err
		}
		ind[r] = newIndicator(x, m.NSymbol)
	}

	tr.LLF = make([]float64, 0, maxiter)
	tr.Converged = false
	log.Info("estimating model parameters", "sequences", len(seqs), "states", m.NState, "maxiter", maxiter)

	var prev float64
	for iter := 0; iter < maxiter; iter++ {

		if err := ctx.Err(); err != nil {
			return err
		}
		num := tr.FirstIter + iter

		ests, err := estimate(ctx, m, seqs)
		if err != nil {
			if errors.Is(err, ErrNumericDegeneracy) {
				return tr.fail(num, math.NaN(), nil, err)
			}
			return err
		}

		ll := 0.0
		for _, est := range ests {
			ll += est.LogLike()
		}
		if !finite(ll) {
			return tr.fail(num, ll, ests, nil)
		}

		res, err := m.maximize(ests, ind, tr.PruneThreshold)
		if err != nil {
			return err
		}
		if len(res.Pruned) > 0 {
			tr.Warnings.StatesPruned += len(res.Pruned)
			log.Info("pruned states", "iter", num, "states", res.Pruned, "remaining", m.NState)
		}

		if tr.Pseudocounts.Any() {
			m.AddPseudocounts(tr.Pseudocounts)
		}

		tr.LLF = append(tr.LLF, ll)
		log.Debug("iteration complete", "iter", num, "llf", ll)

		if tr.Checkpointer != nil {
			if err := tr.Checkpointer.Save(num, m, ll); err != nil {
				return err
			}
		}

		if iter > 0 {
			if ll < prev-1e-10 {
				log.Warn("log-likelihood decreased", "iter", num, "by", prev-ll)
				tr.Warnings.LogLikeDecreased++
			}
			if ll-prev < threshold {
				log.Info("converged", "iter", num, "llf", ll)
				tr.Converged = true
				break
			}
		}
		prev = ll
	}

	log.Info("finished", "iterations", len(tr.LLF), "warnings", tr.Warnings)
	return nil
}

// fail persists the current parameters and transition counts and returns
// the error ending the fit.
func (tr *Trainer) fail(iter int, ll float64, ests []*Estimate, cause error) error {

	derr := &DegeneracyError{
		Iter:     iter,
		LogLike:  ll,
		MinScale: math.Inf(1),
		MaxScale: math.Inf(-1),
		Err:      cause,
	}

	var xisums [][]float64
	for _, est := range ests {
		xisums = append(xisums, est.XiSum)
		for _, c := range est.Scale {
			derr.MinScale = math.Min(derr.MinScale, c)
			derr.MaxScale = math.Max(derr.MaxScale, c)
		}
	}

	tr.logger().Error("numeric failure, aborting", "iter", iter, "error", derr)

	if tr.Checkpointer != nil {
		if err := tr.Checkpointer.Failure(iter, tr.Model, xisums, derr); err != nil {
			tr.logger().Error("could not persist failed model", "error", err)
		}
	}

	return derr
}
