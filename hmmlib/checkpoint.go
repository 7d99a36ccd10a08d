package hmmlib

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// Snapshot is the persisted form of a model.  Snapshots are written after
// every training iteration and, with XiSums and Cause set, when training
// fails.
type Snapshot struct {
	Iter    int
	LogLike float64

	NState  int
	NSymbol int
	Trans   []float64
	Emit    []float64
	Init    []float64
	Origin  []int
	Deleted []int

	// Per-sequence expected transition counts of the failing iteration
	XiSums [][]float64

	// Description of the failure, empty for regular checkpoints
	Cause string
}

// NewSnapshot copies the parameters of m into a Snapshot.
func NewSnapshot(m *Model, iter int, loglike float64) *Snapshot {
	c := m.Clone()
	return &Snapshot{
		Iter:    iter,
		LogLike: loglike,
		NState:  c.NState,
		NSymbol: c.NSymbol,
		Trans:   c.Trans,
		Emit:    c.Emit,
		Init:    c.Init,
		Origin:  c.Origin,
		Deleted: c.Deleted,
	}
}

// Model rebuilds the model held by the snapshot.
func (s *Snapshot) Model() (*Model, error) {
	m := &Model{
		NState:  s.NState,
		NSymbol: s.NSymbol,
		Trans:   append([]float64(nil), s.Trans...),
		Emit:    append([]float64(nil), s.Emit...),
		Init:    append([]float64(nil), s.Init...),
		Origin:  append([]int(nil), s.Origin...),
		Deleted: append([]int(nil), s.Deleted...),
	}
	if len(m.Trans) != m.NState*m.NState || len(m.Emit) != m.NSymbol*m.NState || len(m.Init) != m.NState {
		return nil, malformed("snapshot sizes do not match %d states and %d symbols", m.NState, m.NSymbol)
	}
	if len(m.Origin) != m.NState {
		m.resetOrigin()
	}
	return m, nil
}

// EncodeSnapshot writes s to w as a gob value.
func EncodeSnapshot(w io.Writer, s *Snapshot) error {
	return gob.NewEncoder(w).Encode(s)
}

// DecodeSnapshot reads a gob-encoded Snapshot from r.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Checkpointer persists model parameters during training.
type Checkpointer interface {

	// Save is called after every successful maximization step.
	Save(iter int, m *Model, loglike float64) error

	// Failure is called once, before training aborts on a numeric failure.
	Failure(iter int, m *Model, xisums [][]float64, cause error) error
}

// Checkpointers passes every call on to each of its elements.  All
// elements are called even if some fail.
type Checkpointers []Checkpointer

// Save calls Save on every element.
func (cs Checkpointers) Save(iter int, m *Model, loglike float64) error {
	var merr *multierror.Error
	for _, c := range cs {
		if err := c.Save(iter, m, loglike); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// Failure calls Failure on every element.
func (cs Checkpointers) Failure(iter int, m *Model, xisums [][]float64, cause error) error {
	var merr *multierror.Error
	for _, c := range cs {
		if err := c.Failure(iter, m, xisums, cause); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// FileCheckpointer writes each snapshot to a gzip-compressed gob file,
// replacing the previous one.
type FileCheckpointer struct {
	Path string
}

// Save writes the current parameters to the checkpoint file.
func (fc *FileCheckpointer) Save(iter int, m *Model, loglike float64) error {
	return WriteSnapshot(fc.Path, NewSnapshot(m, iter, loglike))
}

// Failure writes the parameters and transition counts of a failed
// iteration to the checkpoint file.
func (fc *FileCheckpointer) Failure(iter int, m *Model, xisums [][]float64, cause error) error {
	s := NewSnapshot(m, iter, 0)
	s.XiSums = xisums
	if cause != nil {
		s.Cause = cause.Error()
	}
	return WriteSnapshot(fc.Path, s)
}

// WriteSnapshot writes a gzip-compressed gob snapshot to fname.  The file
// is written next to its destination and renamed into place, so a crash
// never leaves a truncated checkpoint behind.
func WriteSnapshot(fname string, s *Snapshot) (err error) {

	fid, err := os.CreateTemp(filepath.Dir(fname), filepath.Base(fname)+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(fid.Name())
		}
	}()

	gid := gzip.NewWriter(fid)
	if err = EncodeSnapshot(gid, s); err != nil {
		_ = fid.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err = gid.Close(); err != nil {
		_ = fid.Close()
		return err
	}
	if err = fid.Close(); err != nil {
		return err
	}

	return os.Rename(fid.Name(), fname)
}

// ReadSnapshot reads a gzip-compressed gob snapshot.
func ReadSnapshot(fname string) (*Snapshot, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	gid, err := gzip.NewReader(fid)
	if err != nil {
		return nil, err
	}
	defer gid.Close()

	return DecodeSnapshot(gid)
}
