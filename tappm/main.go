// Command tappm predicts tail-anchored membrane proteins in a FASTA file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/davecao/tappm-cli/classify"
	"github.com/davecao/tappm-cli/fasta"
	"github.com/davecao/tappm-cli/internal/appshell"
	"github.com/davecao/tappm-cli/parhmm"
	"github.com/davecao/tappm-cli/predictor"
	"github.com/davecao/tappm-cli/report"
	"github.com/hashicorp/go-hclog"
)

func main() {
	appshell.Main(run)
}

type options struct {
	input     string
	format    string
	outfmt    string
	outdir    string
	out       string
	threshold float64
	mcpu      int
	taModel   string
	mpModel   string
	missing   string
	progress  bool
	logPrefix string
	logLevel  string
}

func parse(args []string, stderr io.Writer) (*options, error) {

	var o options
	fs := flag.NewFlagSet("tappm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "i", "", "The input file in FASTA format, '-' for stdin [required]")
	fs.StringVar(&o.format, "fmt", "free", "Header format: free, swissprot, tremble, genebank or auto")
	fs.StringVar(&o.outfmt, "outfmt", "tabular", "Report format: tabular, text or json")
	fs.StringVar(&o.outdir, "outdir", ".", "Output directory")
	fs.StringVar(&o.out, "out", "tappm_report", "Output file name, the format is appended as suffix")
	fs.Float64Var(&o.threshold, "t", classify.DefaultThreshold, "Score threshold for a tail-anchored call")
	fs.IntVar(&o.mcpu, "mcpu", 0, "Number of workers, default is the number of cores")
	fs.StringVar(&o.taModel, "ta-model", "", "Parameter file of the tail-anchored model [required]")
	fs.StringVar(&o.mpModel, "mp-model", "", "Parameter file of the membrane protein model [required]")
	fs.StringVar(&o.missing, "missing", "ignore", "Handling of residues outside the alphabet: ignore or error")
	fs.BoolVar(&o.progress, "progress", false, "Show a progress bar")
	fs.StringVar(&o.logPrefix, "log", "", "Also log to this file, '.log' is appended")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error or off")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case o.input == "":
		return nil, errors.New("'-i' is a required argument")
	case o.taModel == "" || o.mpModel == "":
		return nil, errors.New("'-ta-model' and '-mp-model' are required arguments")
	}
	if o.mcpu <= 0 {
		o.mcpu = runtime.NumCPU()
	}

	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {

	opt, err := parse(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "tappm:", err)
		return 2
	}

	logger, closeLog, err := appshell.NewLogger(appshell.LogConfig{
		Name: "tappm", Level: opt.logLevel, Prefix: opt.logPrefix,
	}, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "tappm:", err)
		return 2
	}
	defer closeLog()

	path, err := predict(ctx, opt, logger, stderr)
	if err != nil {
		var berr *parhmm.BatchError
		if errors.As(err, &berr) && path != "" {
			logger.Error("some sequences could not be decoded", "failed", berr.IDs(), "report", path)
			return 1
		}
		logger.Error("prediction failed", "error", err)
		return 1
	}

	fmt.Fprintln(stdout, path)
	return 0
}

// predict writes the report and returns its path.  A *parhmm.BatchError
// is returned together with the path when the report lacks some sequences.
func predict(ctx context.Context, opt *options, logger hclog.Logger, progress io.Writer) (string, error) {

	format, err := fasta.ParseFormat(opt.format)
	if err != nil {
		return "", err
	}
	missing, err := predictor.ParseMissingPolicy(opt.missing)
	if err != nil {
		return "", err
	}
	renderer, err := report.NewRenderer(opt.outfmt)
	if err != nil {
		return "", err
	}
	params := classify.DefaultParams()
	params.Threshold = opt.threshold

	recs, err := fasta.ReadFile(opt.input, format)
	if err != nil {
		return "", err
	}
	logger.Info("read input", "file", opt.input, "sequences", len(recs), "threshold", opt.threshold, "ncpu", opt.mcpu)

	pool := parhmm.New(opt.mcpu)
	pool.Logger = logger.Named("pool")
	if opt.progress {
		pool.Progress = progress
	}

	ta, err := predictor.Load(opt.taModel, predictor.TADecoder)
	if err != nil {
		return "", err
	}
	ta.Reverse = true
	mp, err := predictor.Load(opt.mpModel, predictor.MPDecoder)
	if err != nil {
		return "", err
	}
	for _, p := range []*predictor.Predictor{ta, mp} {
		p.Pool = pool
		p.Missing = missing
		p.Logger = logger.Named("predictor")
	}

	seqs := predictor.FromFASTA(recs)

	// Per-sequence failures leave the other sequences usable.
	var taErr, mpErr *parhmm.BatchError
	taRecs, err := ta.Predict(ctx, seqs)
	if err != nil && !errors.As(err, &taErr) {
		return "", fmt.Errorf("tail-anchored model: %w", err)
	}
	mpRecs, err := mp.Predict(ctx, seqs)
	if err != nil && !errors.As(err, &mpErr) {
		return "", fmt.Errorf("membrane protein model: %w", err)
	}

	items := make([]report.Item, 0, len(recs))
	for _, rec := range recs {
		tr, ok1 := taRecs[rec.Identifier]
		mr, ok2 := mpRecs[rec.Identifier]
		if !ok1 || !ok2 {
			continue
		}
		res := params.Classify(tr.Path, tr.Likelihood, mr.Likelihood, len(tr.Path))
		items = append(items, report.NewItem(rec.Identifier, rec.Line, rec.Seq, tr, mr, res))
	}

	sum := report.NewSummary(items, opt.threshold, opt.mcpu)
	outpath := filepath.Join(opt.outdir, opt.out+"."+renderer.Format())
	if err := renderer.WriteFile(outpath, report.DefaultBackups, sum, items); err != nil {
		return "", err
	}
	logger.Info("wrote report", "file", outpath, "sequences", sum.Total, "tail-anchored", sum.Positive)

	if berr := parhmm.Merge(taErr, mpErr); berr != nil {
		return outpath, berr
	}
	return outpath, nil
}
