package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/davecao/tappm-cli/classify"
	"github.com/davecao/tappm-cli/crossval"
	"github.com/davecao/tappm-cli/fasta"
	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/davecao/tappm-cli/internal/errutil"
	"github.com/davecao/tappm-cli/parhmm"
	"github.com/davecao/tappm-cli/predictor"
	"github.com/hashicorp/go-hclog"
)

// cvScore is the held-out score of one sequence.
type cvScore struct {
	ID       string  `json:"id"`
	Fold     int     `json:"fold"`
	Positive bool    `json:"positive"`
	Score    float64 `json:"score"`
}

// cvReport is the JSON output of a cross-validation run.
type cvReport struct {
	Folds     int       `json:"folds"`
	AUC       float64   `json:"auc"`
	BER       float64   `json:"ber"`
	Threshold float64   `json:"threshold"`
	TP        int       `json:"tp"`
	FN        int       `json:"fn"`
	FP        int       `json:"fp"`
	TN        int       `json:"tn"`
	TPR       []float64 `json:"tpr"`
	FPR       []float64 `json:"fpr"`
	Failed    []string  `json:"failed,omitempty"`
	Scores    []cvScore `json:"scores"`
}

// foldCheckpoint returns the checkpoint file of a fold.
func foldCheckpoint(path string, fold int) string {
	return fmt.Sprintf("%s.fold%d.gob.gz", strings.TrimSuffix(path, ".gob.gz"), fold)
}

// crossValidate trains the model on all folds but one, scores the held-out
// positives and the negatives against the reference model, and writes the
// ROC of the scores.
func crossValidate(ctx context.Context, opt *options, logger hclog.Logger, stdout, progress io.Writer) error {

	format, err := fasta.ParseFormat(opt.format)
	if err != nil {
		return err
	}
	pr, err := newPredictor(opt, logger, progress)
	if err != nil {
		return err
	}

	ref, err := predictor.Load(opt.refModel, opt.refDecoder)
	if err != nil {
		return err
	}
	ref.Missing = pr.Missing
	ref.Pool = pr.Pool
	ref.Logger = logger.Named("reference")

	pos, err := fasta.ReadFile(opt.input, format)
	if err != nil {
		return err
	}
	neg, err := fasta.ReadFile(opt.negatives, format)
	if err != nil {
		return err
	}
	logger.Info("read data", "positives", len(pos), "negatives", len(neg))

	v := &crossval.Validator{
		Base: pr,
		K:    opt.folds,
		NewTrainer: func(fold int) *hmmlib.Trainer {
			tr := newTrainer(opt, logger.Named(fmt.Sprintf("fold%d", fold)))
			tr.Checkpointer = &hmmlib.FileCheckpointer{Path: foldCheckpoint(opt.checkpoint, fold)}
			return tr
		},
		Logger: logger,
	}
	if opt.seed != 0 {
		v.Rng = rand.New(rand.NewSource(opt.seed))
	}

	pseqs, nseqs := predictor.FromFASTA(pos), predictor.FromFASTA(neg)
	res, err := v.Run(ctx, pseqs, nseqs)
	var cvErr *parhmm.BatchError
	if err != nil && !errors.As(err, &cvErr) {
		return err
	}

	refRecs, err := ref.Predict(ctx, append(append([]predictor.Sequence(nil), pseqs...), nseqs...))
	var refErr *parhmm.BatchError
	if err != nil && !errors.As(err, &refErr) {
		return err
	}

	rep := &cvReport{Folds: opt.folds}
	if failed := parhmm.Merge(cvErr, refErr); failed != nil {
		rep.Failed = failed.IDs()
		logger.Warn("sequences left out", "count", len(rep.Failed), "error", failed)
	}

	var pscores, nscores []float64
	add := func(seqs []predictor.Sequence, positive bool) {
		for _, s := range seqs {
			cv, r := res.Records[s.ID], refRecs[s.ID]
			if cv == nil || r == nil {
				continue
			}
			score := classify.Score(cv.Likelihood, r.Likelihood, len(cv.Path))
			rep.Scores = append(rep.Scores, cvScore{ID: s.ID, Fold: res.Fold[s.ID], Positive: positive, Score: score})
			if positive {
				pscores = append(pscores, score)
			} else {
				nscores = append(nscores, score)
			}
		}
	}
	add(pseqs, true)
	add(nseqs, false)
	sort.Slice(rep.Scores, func(i, j int) bool { return rep.Scores[i].ID < rep.Scores[j].ID })

	curve, err := classify.ROC(pscores, nscores)
	if err != nil {
		return err
	}
	rep.AUC, rep.BER, rep.Threshold = curve.AUC, curve.BER, curve.Threshold
	rep.TP, rep.FN, rep.FP, rep.TN = curve.TP, curve.FN, curve.FP, curve.TN
	rep.TPR, rep.FPR = curve.TPR, curve.FPR

	if err := writeReport(opt.out, rep); err != nil {
		return err
	}
	logger.Info("cross-validation", "folds", opt.folds, "auc", curve.AUC, "ber", curve.BER,
		"threshold", curve.Threshold, "report", opt.out)
	fmt.Fprintf(stdout, "folds=%d auc=%.4f ber=%.4f threshold=%.10f tp=%d fn=%d fp=%d tn=%d\n",
		opt.folds, curve.AUC, curve.BER, curve.Threshold, curve.TP, curve.FN, curve.FP, curve.TN)

	return nil
}

func writeReport(fname string, rep *cvReport) (err error) {

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer func() {
		err = errutil.Combine(err, fid.Close())
	}()

	enc := json.NewEncoder(fid)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
