// Package predictor decodes protein sequences with a trained HMM and
// turns the state paths into labelled topologies.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/davecao/tappm-cli/fasta"
	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/davecao/tappm-cli/parhmm"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// State labels of the bundled models.  TADecoder belongs to the
// tail-anchored model, which reads sequences from the C-terminus, and
// MPDecoder to the reference membrane protein model.
const (
	TADecoder = "TTHHHHHHHHHHHHHHHHHHHHHHHHHCCCCCGTT"
	MPDecoder = "SSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSSG" +
		"LLLLLLLLLLLLLLLLLLLLCCCCCHHHHHHHHHHHHHHHHHHHHHHHHH"
)

// Sequence is a named residue sequence.
type Sequence struct {
	ID       string
	Residues []byte
}

// FromFASTA converts FASTA records, keyed by identifier.
func FromFASTA(recs []*fasta.Record) []Sequence {
	seqs := make([]Sequence, len(recs))
	for i, rec := range recs {
		seqs[i] = Sequence{ID: rec.Identifier, Residues: rec.Seq}
	}
	return seqs
}

// Record is the decoding of one sequence.  All per-position fields are in
// the order of the input residues, also for reverse predictors.
type Record struct {
	ID string

	// Decoder label of each position
	Path string

	// State index of each position, in the numbering of the model as loaded
	PathNum []int

	// Log-probability of the best path
	Likelihood float64

	// Log-likelihood summed over all paths
	LogLike float64

	// Best-path log-score at each position
	Omega []float64
}

// Predictor decodes sequences against one model.
type Predictor struct {
	Model *hmmlib.Model

	// Decoder[k] is the label of state k of the model as loaded
	Decoder string

	Alphabet *Alphabet
	Missing  MissingPolicy

	// Decode sequences from the C-terminus
	Reverse bool

	// Probability floor for Viterbi, hmmlib.DefaultFloor if zero
	Floor float64

	// Runs the per-sequence work, one worker if nil
	Pool *parhmm.Pool

	Logger hclog.Logger
}

// Load returns a predictor for the model in a JSON or YAML parameter file.
// The decoder and alphabet in the file take precedence over the defaults
// given here.
func Load(fname, decoder string) (*Predictor, error) {

	p, err := hmmlib.LoadParams(fname)
	if err != nil {
		return nil, err
	}
	if p.Decoder != "" {
		decoder = p.Decoder
	}
	chars := p.Alphabet
	if chars == "" {
		chars = DefaultAlphabet
	}

	m, err := p.Model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	alpha, err := NewAlphabet(chars)
	if err != nil {
		return nil, err
	}

	pr := &Predictor{Model: m, Decoder: decoder, Alphabet: alpha}
	if err := pr.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return pr, nil
}

func (p *Predictor) logger() hclog.Logger {
	if p.Logger == nil {
		return hclog.NewNullLogger()
	}
	return p.Logger
}

func (p *Predictor) pool() *parhmm.Pool {
	if p.Pool == nil {
		return &parhmm.Pool{Workers: 1, Logger: p.Logger}
	}
	return p.Pool
}

func (p *Predictor) check() error {
	if p.Model == nil {
		return errors.New("predictor has no model")
	}
	if p.Alphabet == nil {
		a, err := NewAlphabet(DefaultAlphabet)
		if err != nil {
			return err
		}
		p.Alphabet = a
	}
	if p.Alphabet.Len() != p.Model.NSymbol {
		return fmt.Errorf("%w: alphabet has %d residues, model has %d symbols",
			hmmlib.ErrMalformedInput, p.Alphabet.Len(), p.Model.NSymbol)
	}
	for _, o := range p.Model.Origin {
		if o >= len(p.Decoder) {
			return fmt.Errorf("%w: decoder has %d labels, state %d has none",
				hmmlib.ErrMalformedInput, len(p.Decoder), o)
		}
	}
	return nil
}

// Convert encodes the sequences, reversing them for reverse predictors.
// Identifiers must be unique.
func (p *Predictor) Convert(seqs []Sequence) (map[string][]int, error) {

	if err := p.check(); err != nil {
		return nil, err
	}

	out := make(map[string][]int, len(seqs))
	for _, s := range seqs {
		if _, ok := out[s.ID]; ok {
			return nil, fmt.Errorf("duplicate sequence identifier %q", s.ID)
		}
		x, skipped, err := p.Alphabet.Encode(s.Residues, p.Missing)
		if err != nil {
			return nil, fmt.Errorf("%w: sequence %s: %v", hmmlib.ErrMalformedInput, s.ID, err)
		}
		if len(skipped) > 0 {
			p.logger().Warn("ignored invalid residues", "id", s.ID, "residues", string(skipped))
		}
		if p.Reverse {
			reverseInts(x)
		}
		out[s.ID] = x
	}

	return out, nil
}

// Predict decodes every sequence.  If some sequences fail, the records of
// the others are returned together with a *parhmm.BatchError.
func (p *Predictor) Predict(ctx context.Context, seqs []Sequence) (map[string]*Record, error) {

	data, err := p.Convert(seqs)
	if err != nil {
		return nil, err
	}

	floor := p.Floor
	if floor <= 0 {
		floor = hmmlib.DefaultFloor
	}

	paths, perr := p.pool().DecodeAll(ctx, p.Model, data, hmmlib.WithFloor(floor), hmmlib.WithOmega())
	if perr != nil {
		var berr *parhmm.BatchError
		if !errors.As(perr, &berr) {
			return nil, perr
		}
	}

	out := make(map[string]*Record, len(paths))
	var cerr *multierror.Error
	for id, path := range paths {
		rec, err := p.record(id, path)
		if err != nil {
			cerr = multierror.Append(cerr, err)
			continue
		}
		out[id] = rec
	}
	if err := cerr.ErrorOrNil(); err != nil {
		return nil, err
	}

	return out, perr
}

func (p *Predictor) record(id string, path *hmmlib.Path) (*Record, error) {

	states := append([]int(nil), path.States...)
	omega := append([]float64(nil), path.Omega...)
	if p.Reverse {
		reverseInts(states)
		reverseFloats(omega)
	}

	labels, err := p.Model.Labels(states, p.Decoder)
	if err != nil {
		return nil, fmt.Errorf("sequence %s: %w", id, err)
	}

	pathnum := make([]int, len(states))
	for i, k := range states {
		pathnum[i] = p.Model.Origin[k]
	}

	return &Record{
		ID:         id,
		Path:       labels,
		PathNum:    pathnum,
		Likelihood: path.Score,
		LogLike:    path.LogLike,
		Omega:      omega,
	}, nil
}

// Train fits the predictor's model to seqs with tr.  The model and, if set,
// the pool of the predictor are used for tr.Model and tr.Estimator when
// those are unset.
func (p *Predictor) Train(ctx context.Context, seqs []Sequence, tr *hmmlib.Trainer) error {

	data, err := p.Convert(seqs)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	x := make([][]int, len(ids))
	for i, id := range ids {
		x[i] = data[id]
	}

	if tr.Model == nil {
		tr.Model = p.Model
	}
	if tr.Estimator == nil && p.Pool != nil {
		tr.Estimator = p.Pool.Estimator()
	}
	if tr.Logger == nil {
		tr.Logger = p.Logger
	}

	return tr.Fit(ctx, x)
}

func reverseInts(x []int) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

func reverseFloats(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
