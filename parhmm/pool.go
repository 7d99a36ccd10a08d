// Package parhmm runs per-sequence HMM computations on a pool of worker
// goroutines.
//
// Each worker gets its own copy of the model, so a batch never observes a
// model that is being updated.  A failure on one sequence is reported as a
// *SequenceError and does not stop the other sequences.
package parhmm

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/hashicorp/go-hclog"
	"github.com/schollz/progressbar/v3"
)

// Pool is a fixed-size set of workers.  The zero value uses one worker per
// CPU.
type Pool struct {

	// Number of worker goroutines
	Workers int

	// If not nil, a progress bar is written here
	Progress io.Writer

	Logger hclog.Logger
}

// New returns a pool with the given number of workers.  If workers is not
// positive, the number of CPUs is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{Workers: workers}
}

func (p *Pool) workers(njob int) int {
	w := p.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > njob {
		w = njob
	}
	if w < 1 {
		w = 1
	}
	return w
}

func (p *Pool) logger() hclog.Logger {
	if p.Logger == nil {
		return hclog.NewNullLogger()
	}
	return p.Logger
}

type job struct {
	id string
	x  []int
}

type result[T any] struct {
	id  string
	val T
	err error
}

// call runs fn and turns a panic into an error.
func call[T any](fn func(*hmmlib.Model, []int) (T, error), m *hmmlib.Model, x []int) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(m, x)
}

// run applies fn to every sequence.  Successful results are returned even
// when some sequences fail, in which case the error is a *BatchError.
func run[T any](ctx context.Context, p *Pool, desc string, m *hmmlib.Model, seqs map[string][]int,
	fn func(*hmmlib.Model, []int) (T, error)) (map[string]T, error) {

	ids := make([]string, 0, len(seqs))
	for id := range seqs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nworker := p.workers(len(ids))
	jobs := make(chan job, nworker*2)
	results := make(chan result[T], nworker*2)

	var bar *progressbar.ProgressBar
	if p.Progress != nil {
		bar = progressbar.NewOptions(len(ids),
			progressbar.OptionSetWriter(p.Progress),
			progressbar.OptionSetDescription(desc))
	}

	// Workers
	var wg sync.WaitGroup
	wg.Add(nworker)
	for w := 0; w < nworker; w++ {
		snapshot := m.Clone()
		go func() {
			defer wg.Done()
			for j := range jobs {
				val, err := call(fn, snapshot, j.x)
				select {
				case results <- result[T]{id: j.id, val: val, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed work
	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- job{id: id, x: seqs[id]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]T, len(ids))
	var failed []*SequenceError
	for r := range results {
		if r.err != nil {
			p.logger().Debug("sequence failed", "id", r.id, "error", r.err)
			failed = append(failed, &SequenceError{ID: r.id, Err: r.err})
		} else {
			out[r.id] = r.val
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return out, newBatchError(failed)
	}
	return out, nil
}

// EstimateAll runs the forward-backward recursions on every sequence.
func (p *Pool) EstimateAll(ctx context.Context, m *hmmlib.Model, seqs map[string][]int) (map[string]*hmmlib.Estimate, error) {
	return run(ctx, p, "estimating", m, seqs, func(m *hmmlib.Model, x []int) (*hmmlib.Estimate, error) {
		return m.Estimate(x)
	})
}

// DecodeAll runs the Viterbi algorithm on every sequence.
func (p *Pool) DecodeAll(ctx context.Context, m *hmmlib.Model, seqs map[string][]int, opts ...hmmlib.ViterbiOption) (map[string]*hmmlib.Path, error) {
	return run(ctx, p, "decoding", m, seqs, func(m *hmmlib.Model, x []int) (*hmmlib.Path, error) {
		return m.Viterbi(x, opts...)
	})
}

// Estimator returns an hmmlib.EstimatorFunc that runs the expectation step
// of a Trainer on the pool.
func (p *Pool) Estimator() hmmlib.EstimatorFunc {
	return func(ctx context.Context, m *hmmlib.Model, seqs [][]int) ([]*hmmlib.Estimate, error) {

		byID := make(map[string][]int, len(seqs))
		for r, x := range seqs {
			byID[strconv.Itoa(r)] = x
		}

		res, err := p.EstimateAll(ctx, m, byID)
		if err != nil {
			return nil, err
		}

		ests := make([]*hmmlib.Estimate, len(seqs))
		for r := range seqs {
			ests[r] = res[strconv.Itoa(r)]
		}
		return ests, nil
	}
}
