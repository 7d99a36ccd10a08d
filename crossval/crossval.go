// Package crossval scores sequences with models that were not trained on
// them, by k-fold cross-validation.
package crossval

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/davecao/tappm-cli/parhmm"
	"github.com/davecao/tappm-cli/predictor"
	"github.com/hashicorp/go-hclog"
)

// Fold is one round of cross-validation.
type Fold struct {
	Train, Test []string
}

// subsets splits ids into k consecutive subsets after an optional shuffle.
// The first len(ids)%k subsets hold one more item than the others.
func subsets(ids []string, k int, rng *rand.Rand) [][]string {

	ids = append([]string(nil), ids...)
	if rng != nil {
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	out := make([][]string, k)
	off := 0
	for i := range out {
		n := len(ids) / k
		if i < len(ids)%k {
			n++
		}
		out[i] = ids[off : off+n : off+n]
		off += n
	}
	return out
}

// Split partitions ids into k non-empty subsets.  The ids are shuffled
// with rng first unless it is nil.
func Split(ids []string, k int, rng *rand.Rand) ([][]string, error) {
	switch {
	case k < 2:
		return nil, fmt.Errorf("cross-validation needs at least 2 folds, got %d", k)
	case k > len(ids):
		return nil, fmt.Errorf("cannot split %d sequences into %d folds", len(ids), k)
	}
	return subsets(ids, k, rng), nil
}

// Folds returns the k folds of ids.  Every id is in the test set of
// exactly one fold and in the training set of all others.
func Folds(ids []string, k int, rng *rand.Rand) ([]Fold, error) {

	sub, err := Split(ids, k, rng)
	if err != nil {
		return nil, err
	}

	folds := make([]Fold, k)
	for i := range folds {
		folds[i].Test = sub[i]
		for j, s := range sub {
			if j != i {
				folds[i].Train = append(folds[i].Train, s...)
			}
		}
	}
	return folds, nil
}

// Validator runs k-fold cross-validation of a predictor.
type Validator struct {
	// Gives the starting parameters of every fold, it is not modified
	Base *predictor.Predictor

	// Number of folds
	K int

	// Shuffles the sequences before splitting, the input order is kept
	// if nil
	Rng *rand.Rand

	// Returns the Trainer of a fold, numbered from 1.  The model is set by
	// Run.  hmmlib.NewTrainer is used if nil.
	NewTrainer func(fold int) *hmmlib.Trainer

	Logger hclog.Logger
}

// Result holds the decodings of all held-out sequences.
type Result struct {
	Records map[string]*predictor.Record

	// Fold that decoded each sequence, numbered from 1
	Fold map[string]int

	// Log-likelihood trace of the training of each fold
	LLF [][]float64
}

func (v *Validator) logger() hclog.Logger {
	if v.Logger == nil {
		return hclog.NewNullLogger()
	}
	return v.Logger
}

func index(seqs []predictor.Sequence, byID map[string]predictor.Sequence) ([]string, error) {
	ids := make([]string, 0, len(seqs))
	for _, s := range seqs {
		if _, ok := byID[s.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate sequence identifier %q", hmmlib.ErrMalformedInput, s.ID)
		}
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func pick(byID map[string]predictor.Sequence, ids []string) []predictor.Sequence {
	seqs := make([]predictor.Sequence, len(ids))
	for i, id := range ids {
		seqs[i] = byID[id]
	}
	return seqs
}

// Run trains a fresh copy of the base model on all folds but one and
// decodes the held-out fold with it, for every fold.  The sequences in
// others are never trained on; they are split into folds as well and each
// is decoded by the model of its fold.  If some sequences fail to decode,
// the result is returned together with a *parhmm.BatchError.
func (v *Validator) Run(ctx context.Context, seqs, others []predictor.Sequence) (*Result, error) {

	log := v.logger()

	byID := make(map[string]predictor.Sequence, len(seqs)+len(others))
	ids, err := index(seqs, byID)
	if err != nil {
		return nil, err
	}
	oids, err := index(others, byID)
	if err != nil {
		return nil, err
	}

	folds, err := Folds(ids, v.K, v.Rng)
	if err != nil {
		return nil, err
	}
	extra := subsets(oids, v.K, v.Rng)

	res := &Result{
		Records: make(map[string]*predictor.Record, len(byID)),
		Fold:    make(map[string]int, len(byID)),
		LLF:     make([][]float64, len(folds)),
	}

	var failed []*parhmm.BatchError
	for i, f := range folds {
		num := i + 1
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := *v.Base
		p.Model = v.Base.Model.Clone()

		var tr *hmmlib.Trainer
		if v.NewTrainer != nil {
			tr = v.NewTrainer(num)
		} else {
			tr = hmmlib.NewTrainer(nil)
		}
		tr.Model = p.Model

		if err := p.Train(ctx, pick(byID, f.Train), tr); err != nil {
			return nil, fmt.Errorf("fold %d: %w", num, err)
		}
		res.LLF[i] = tr.LLF

		test := append(pick(byID, f.Test), pick(byID, extra[i])...)
		recs, err := p.Predict(ctx, test)
		if err != nil {
			var berr *parhmm.BatchError
			if !errors.As(err, &berr) {
				return nil, fmt.Errorf("fold %d: %w", num, err)
			}
			failed = append(failed, berr)
		}
		for id, rec := range recs {
			res.Records[id] = rec
			res.Fold[id] = num
		}

		log.Info("fold done", "fold", num, "train", len(f.Train), "test", len(test),
			"iterations", len(tr.LLF), "states", p.Model.NState)
	}

	if berr := parhmm.Merge(failed...); berr != nil {
		return res, berr
	}
	return res, nil
}
