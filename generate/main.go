// Command generate samples synthetic protein sequences, and the state
// paths that produced them, from a model parameter file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/davecao/tappm-cli/fasta"
	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/davecao/tappm-cli/internal/appshell"
	"github.com/davecao/tappm-cli/internal/errutil"
	"github.com/davecao/tappm-cli/predictor"
	"github.com/hashicorp/go-hclog"
)

func main() {
	appshell.Main(run)
}

type options struct {
	model     string
	decoder   string
	outname   string
	states    string
	prefix    string
	nseq      int
	minLen    int
	maxLen    int
	seed      int64
	reverse   bool
	recover   bool
	width     int
	logLevel  string
	logPrefix string
}

func parse(args []string, stderr io.Writer) (*options, error) {

	var o options
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.model, "model", "", "Parameter file of the model [required]")
	fs.StringVar(&o.decoder, "decoder", "", "State labels, if the parameter file has none")
	fs.StringVar(&o.outname, "outname", "-", "Output FASTA file, '-' for stdout")
	fs.StringVar(&o.states, "states", "", "Also write the state label paths to this FASTA file")
	fs.StringVar(&o.prefix, "prefix", "sim", "Identifier prefix of the generated sequences")
	fs.IntVar(&o.nseq, "nseq", 10, "Number of sequences")
	fs.IntVar(&o.minLen, "minlen", 50, "Minimum sequence length")
	fs.IntVar(&o.maxLen, "maxlen", 300, "Maximum sequence length")
	fs.Int64Var(&o.seed, "seed", 0, "Random seed, 0 for the current time")
	fs.BoolVar(&o.reverse, "reverse", false, "The model reads sequences from the C-terminus")
	fs.BoolVar(&o.recover, "recover", false, "Decode the generated sequences and report how many states the Viterbi path gets wrong")
	fs.IntVar(&o.width, "width", 60, "Residues per line")
	fs.StringVar(&o.logPrefix, "log", "", "Also log to this file, '.log' is appended")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error or off")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case o.model == "":
		return nil, errors.New("'-model' is a required argument")
	case o.nseq < 0:
		return nil, errors.New("'-nseq' must not be negative")
	case o.minLen < 1 || o.maxLen < o.minLen:
		return nil, fmt.Errorf("invalid length range [%d, %d]", o.minLen, o.maxLen)
	}
	if o.seed == 0 {
		o.seed = time.Now().UTC().UnixNano()
	}

	return &o, nil
}

func run(_ context.Context, args []string, stdout, stderr io.Writer) int {

	opt, err := parse(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "generate:", err)
		return 2
	}

	logger, closeLog, err := appshell.NewLogger(appshell.LogConfig{
		Name: "generate", Level: opt.logLevel, Prefix: opt.logPrefix,
	}, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "generate:", err)
		return 2
	}
	defer closeLog()

	if err := generate(opt, logger, stdout); err != nil {
		logger.Error("generation failed", "error", err)
		return 1
	}
	return 0
}

// recovery counts the positions where the Viterbi path of the generated
// sequences differs from the states that generated them.
type recovery struct {
	Errors, Positions int
}

func (r *recovery) add(m *hmmlib.Model, x, y []int) error {
	path, err := m.Viterbi(x, hmmlib.WithFloor(hmmlib.DefaultFloor))
	if err != nil {
		return err
	}
	e, n, err := hmmlib.CompareStates(path.States, y)
	if err != nil {
		return err
	}
	r.Errors += e
	r.Positions += n
	return nil
}

// simulate returns the residue records and the matching state label
// records, and the state recovery if opt.recover is set.
func simulate(opt *options, pr *predictor.Predictor) ([]*fasta.Record, []*fasta.Record, *recovery, error) {

	rng := rand.New(rand.NewSource(opt.seed))
	chars := pr.Alphabet.String()

	var rec *recovery
	if opt.recover {
		rec = &recovery{}
	}

	seqs := make([]*fasta.Record, opt.nseq)
	paths := make([]*fasta.Record, opt.nseq)
	for i := range seqs {
		n := opt.minLen + rng.Intn(opt.maxLen-opt.minLen+1)
		y, x := pr.Model.Sample(rng, n)
		if rec != nil {
			if err := rec.add(pr.Model, x, y); err != nil {
				return nil, nil, nil, err
			}
		}
		if opt.reverse {
			reverse(x)
			reverse(y)
		}

		res := make([]byte, n)
		for t, v := range x {
			res[t] = chars[v]
		}
		labels, err := pr.Model.Labels(y, pr.Decoder)
		if err != nil {
			return nil, nil, nil, err
		}

		id := fmt.Sprintf("%s%04d", opt.prefix, i+1)
		seqs[i] = &fasta.Record{Header: fasta.Header{Identifier: id}, Line: fmt.Sprintf("%s length=%d", id, n), Seq: res}
		paths[i] = &fasta.Record{Header: fasta.Header{Identifier: id}, Seq: []byte(labels)}
	}

	return seqs, paths, rec, nil
}

func generate(opt *options, logger hclog.Logger, stdout io.Writer) error {

	pr, err := predictor.Load(opt.model, opt.decoder)
	if err != nil {
		return err
	}

	seqs, paths, rec, err := simulate(opt, pr)
	if err != nil {
		return err
	}

	if err := writeFile(opt.outname, stdout, seqs, opt.width); err != nil {
		return err
	}
	if opt.states != "" {
		if err := writeFile(opt.states, stdout, paths, opt.width); err != nil {
			return err
		}
	}

	logger.Info("generated sequences", "count", len(seqs), "seed", opt.seed, "states", pr.Model.NState, "output", opt.outname)
	if rec != nil {
		logger.Info("state recovery", "errors", rec.Errors, "positions", rec.Positions)
	}
	return nil
}

func writeFile(fname string, stdout io.Writer, recs []*fasta.Record, width int) (err error) {

	if fname == "-" {
		return fasta.Write(stdout, recs, width)
	}

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer func() {
		err = errutil.Combine(err, fid.Close())
	}()

	return fasta.Write(fid, recs, width)
}

func reverse(x []int) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
