// Command train estimates the parameters of a discrete HMM from protein
// sequences with the Baum-Welch algorithm.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecao/tappm-cli/boltstore"
	"github.com/davecao/tappm-cli/fasta"
	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/davecao/tappm-cli/internal/appshell"
	"github.com/davecao/tappm-cli/internal/errutil"
	"github.com/davecao/tappm-cli/llplot"
	"github.com/davecao/tappm-cli/parhmm"
	"github.com/davecao/tappm-cli/predictor"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

func main() {
	appshell.Main(run)
}

type options struct {
	input      string
	format     string
	model      string
	decoder    string
	out        string
	reverse    bool
	missing    string
	maxiter    int
	threshold  float64
	pseudo     hmmlib.Pseudocounts
	prune      float64
	mcpu       int
	checkpoint string
	db         string
	resume     string
	plot       string
	summary    string
	progress   bool
	logPrefix  string
	logLevel   string

	// Cross-validation
	folds      int
	negatives  string
	refModel   string
	refDecoder string
	seed       int64
}

func parse(args []string, stderr io.Writer) (*options, error) {

	var o options
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "i", "", "Training sequences in FASTA format [required]")
	fs.StringVar(&o.format, "fmt", "auto", "Header format: free, swissprot, tremble, genebank or auto")
	fs.StringVar(&o.model, "model", "", "Parameter file with the starting values [required]")
	fs.StringVar(&o.decoder, "decoder", "", "State labels, if the parameter file has none")
	fs.StringVar(&o.out, "out", "", "Output parameter file, JSON or YAML by extension, or the JSON report of '-cv' [required]")
	fs.BoolVar(&o.reverse, "reverse", false, "Train on reversed sequences")
	fs.StringVar(&o.missing, "missing", "ignore", "Handling of residues outside the alphabet: ignore or error")
	fs.IntVar(&o.maxiter, "maxiter", hmmlib.DefaultMaxIter, "Maximum number of iterations")
	fs.Float64Var(&o.threshold, "threshold", hmmlib.DefaultThreshold, "Convergence threshold on the log-likelihood")
	fs.Float64Var(&o.pseudo.Trans, "pseudo-trans", 0, "Pseudocount added to the transition probabilities")
	fs.Float64Var(&o.pseudo.Emit, "pseudo-emit", 0, "Pseudocount added to the emission probabilities")
	fs.Float64Var(&o.pseudo.Init, "pseudo-init", 0, "Pseudocount added to the initial probabilities")
	fs.Float64Var(&o.prune, "prune", 0, "Remove states with at most this much expected transition mass")
	fs.IntVar(&o.mcpu, "mcpu", 0, "Number of workers, default is the number of cores")
	fs.StringVar(&o.checkpoint, "checkpoint", "", "Write the latest parameters to this gob.gz file, default is the output file name with '.ckpt.gob.gz' appended")
	fs.StringVar(&o.db, "db", "", "Keep the parameters of every iteration in this BoltDB file")
	fs.StringVar(&o.resume, "resume", "", "Continue this run from the database given by -db")
	fs.StringVar(&o.plot, "plot", "", "Plot the log-likelihood trace to this file (png, svg or pdf)")
	fs.StringVar(&o.summary, "summary", "", "Write the estimated parameters as text to this file, '-' for stdout")
	fs.BoolVar(&o.progress, "progress", false, "Show a progress bar")
	fs.StringVar(&o.logPrefix, "log", "", "Also log to this file, '.log' is appended")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error or off")
	fs.IntVar(&o.folds, "cv", 0, "Cross-validate with this many folds instead of fitting once")
	fs.StringVar(&o.negatives, "negatives", "", "Negative examples in FASTA format, for '-cv'")
	fs.StringVar(&o.refModel, "ref-model", "", "Parameter file of the reference model the scores are relative to, for '-cv'")
	fs.StringVar(&o.refDecoder, "ref-decoder", predictor.MPDecoder, "State labels of the reference model, if its parameter file has none")
	fs.Int64Var(&o.seed, "seed", 0, "Shuffle the sequences with this seed before splitting them into folds, 0 keeps the input order")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case o.input == "" || o.model == "" || o.out == "":
		return nil, errors.New("'-i', '-model' and '-out' are required arguments")
	case o.resume != "" && o.db == "":
		return nil, errors.New("'-resume' needs '-db'")
	case o.folds == 0 && (o.negatives != "" || o.refModel != ""):
		return nil, errors.New("'-negatives' and '-ref-model' need '-cv'")
	case o.folds != 0 && o.folds < 2:
		return nil, errors.New("'-cv' needs at least 2 folds")
	case o.folds != 0 && (o.negatives == "" || o.refModel == ""):
		return nil, errors.New("'-cv' needs '-negatives' and '-ref-model'")
	case o.folds != 0 && (o.db != "" || o.plot != "" || o.summary != ""):
		return nil, errors.New("'-db', '-plot' and '-summary' do not apply to '-cv'")
	}

	if o.checkpoint == "" {
		o.checkpoint = o.out + ".ckpt.gob.gz"
	}

	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {

	opt, err := parse(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "train:", err)
		return 2
	}

	logger, closeLog, err := appshell.NewLogger(appshell.LogConfig{
		Name: "train", Level: opt.logLevel, Prefix: opt.logPrefix,
	}, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "train:", err)
		return 2
	}
	defer closeLog()

	if opt.folds != 0 {
		if err := crossValidate(ctx, opt, logger, stdout, stderr); err != nil {
			logger.Error("cross-validation failed", "error", err)
			return 1
		}
		return 0
	}

	if err := train(ctx, opt, logger, stdout, stderr); err != nil {
		logger.Error("training failed", "error", err)
		return 1
	}
	return 0
}

// newPredictor loads the starting model configured by the options.
func newPredictor(opt *options, logger hclog.Logger, progress io.Writer) (*predictor.Predictor, error) {

	missing, err := predictor.ParseMissingPolicy(opt.missing)
	if err != nil {
		return nil, err
	}

	pr, err := predictor.Load(opt.model, opt.decoder)
	if err != nil {
		return nil, err
	}
	pr.Reverse = opt.reverse
	pr.Missing = missing
	pr.Logger = logger.Named("predictor")
	pr.Pool = parhmm.New(opt.mcpu)
	pr.Pool.Logger = logger.Named("pool")
	if opt.progress {
		pr.Pool.Progress = progress
	}
	return pr, nil
}

func newTrainer(opt *options, logger hclog.Logger) *hmmlib.Trainer {
	tr := hmmlib.NewTrainer(nil)
	tr.MaxIter = opt.maxiter
	tr.Threshold = opt.threshold
	tr.Pseudocounts = opt.pseudo
	tr.PruneThreshold = opt.prune
	tr.Logger = logger
	return tr
}

func train(ctx context.Context, opt *options, logger hclog.Logger, stdout, progress io.Writer) (err error) {

	format, err := fasta.ParseFormat(opt.format)
	if err != nil {
		return err
	}
	pr, err := newPredictor(opt, logger, progress)
	if err != nil {
		return err
	}
	tr := newTrainer(opt, logger)

	ckpt := hmmlib.Checkpointers{&hmmlib.FileCheckpointer{Path: opt.checkpoint}}

	var store *boltstore.Store
	if opt.db != "" {
		cfg := boltstore.Config{Path: opt.db, Logger: logger}
		if opt.resume != "" {
			id, err := uuid.Parse(opt.resume)
			if err != nil {
				return fmt.Errorf("run id %q: %w", opt.resume, err)
			}
			cfg.RunID = &id
		}
		store, err = boltstore.Open(cfg)
		if err != nil {
			return err
		}
		defer func() {
			err = errutil.Combine(err, store.Close())
		}()
		logger.Info("checkpoint store", "path", opt.db, "run", store.RunID())

		if opt.resume != "" {
			snap, err := store.Latest(store.RunID())
			if err != nil {
				return err
			}
			if pr.Model, err = snap.Model(); err != nil {
				return err
			}
			tr.FirstIter = snap.Iter + 1
			logger.Info("resuming", "iter", tr.FirstIter, "llf", snap.LogLike, "states", pr.Model.NState)
		}
		ckpt = append(ckpt, store)
	}
	tr.Checkpointer = ckpt

	recs, err := fasta.ReadFile(opt.input, format)
	if err != nil {
		return err
	}
	logger.Info("read training data", "file", opt.input, "sequences", len(recs))

	if err := pr.Train(ctx, predictor.FromFASTA(recs), tr); err != nil {
		var derr *hmmlib.DegeneracyError
		if errors.As(err, &derr) {
			logger.Error("parameters of the failed iteration were checkpointed", "iter", derr.Iter)
		}
		return err
	}
	m := tr.Model
	logger.Info("estimated parameters", "iterations", len(tr.LLF), "converged", tr.Converged,
		"states", m.NState, "pruned", m.Deleted)

	params := hmmlib.ParamsFromModel(m, pr.Decoder, pr.Alphabet.String())
	if err := hmmlib.SaveParams(opt.out, params); err != nil {
		return err
	}
	logger.Info("wrote parameters", "file", opt.out)

	if opt.summary != "" {
		if err := writeSummary(opt.summary, stdout, m, pr); err != nil {
			return err
		}
	}

	if opt.plot != "" {
		llf := tr.LLF
		if store != nil {
			// The whole run, including earlier invocations
			if llf, err = store.History(store.RunID()); err != nil {
				return err
			}
		}
		if err := llplot.Save(llf, "Log-likelihood, "+opt.input, opt.plot); err != nil {
			return err
		}
		logger.Info("wrote log-likelihood plot", "file", opt.plot)
	}

	return nil
}

func writeSummary(fname string, stdout io.Writer, m *hmmlib.Model, pr *predictor.Predictor) (err error) {

	w := stdout
	if fname != "-" {
		fid, err := os.Create(fname)
		if err != nil {
			return err
		}
		defer func() {
			err = errutil.Combine(err, fid.Close())
		}()
		w = fid
	}

	symbols := strings.Split(pr.Alphabet.String(), "")
	return m.WriteSummary(w, m.StateLabels(pr.Decoder), symbols, "Estimated parameters:")
}
