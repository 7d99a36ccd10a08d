package hmmlib

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCheckpointer(t *testing.T) {

	rng := rand.New(rand.NewSource(12))
	gen := generator(t)
	seqs := gendat(rng, gen, 4, 30)

	fname := filepath.Join(t.TempDir(), "model.gob.gz")
	tr := NewTrainer(randModel(rng, 3, gen.NSymbol))
	tr.MaxIter = 3
	tr.Threshold = 1e-300
	tr.Checkpointer = &FileCheckpointer{Path: fname}
	tr.Logger = hclog.NewNullLogger()
	require.NoError(t, tr.Fit(context.Background(), seqs))

	snap, err := ReadSnapshot(fname)
	require.NoError(t, err)
	assert.Equal(t, len(tr.LLF)-1, snap.Iter)
	assert.Equal(t, tr.LLF[len(tr.LLF)-1], snap.LogLike)
	assert.Empty(t, snap.Cause)

	m, err := snap.Model()
	require.NoError(t, err)
	assert.Equal(t, tr.Model.Trans, m.Trans)
	assert.Equal(t, tr.Model.Emit, m.Emit)
	assert.Equal(t, tr.Model.Init, m.Init)
	assert.Equal(t, tr.Model.Origin, m.Origin)
}

func TestFileCheckpointerFailure(t *testing.T) {

	fname := filepath.Join(t.TempDir(), "failed.gob.gz")
	fc := &FileCheckpointer{Path: fname}
	m := generator(t)
	xisums := [][]float64{{1, 2, 3, 4, 5, 6, 7, 8, 9}}

	require.NoError(t, fc.Failure(4, m, xisums, errors.New("boom")))

	snap, err := ReadSnapshot(fname)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Iter)
	assert.Equal(t, xisums, snap.XiSums)
	assert.Equal(t, "boom", snap.Cause)
}

func TestSnapshotSizes(t *testing.T) {

	var buf bytes.Buffer
	s := NewSnapshot(generator(t), 0, 0)
	s.Trans = s.Trans[:4]
	require.NoError(t, EncodeSnapshot(&buf, s))

	got, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	_, err = got.Model()
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParamsRoundTrip(t *testing.T) {

	m := generator(t)
	dir := t.TempDir()

	for _, name := range []string{"model.json", "model.yaml"} {
		t.Run(name, func(t *testing.T) {
			fname := filepath.Join(dir, name)
			require.NoError(t, SaveParams(fname, ParamsFromModel(m, "ABC", "wxyz")))

			p, err := LoadParams(fname)
			require.NoError(t, err)
			assert.Equal(t, "ABC", p.Decoder)
			assert.Equal(t, "wxyz", p.Alphabet)

			m2, err := p.Model()
			require.NoError(t, err)
			assert.Equal(t, m.Trans, m2.Trans)
			assert.Equal(t, m.Emit, m2.Emit)
			assert.Equal(t, m.Init, m2.Init)
		})
	}
}

func TestParamsValidation(t *testing.T) {

	p := ParamsFromModel(generator(t), "AB", "")
	_, err := p.Model()
	assert.ErrorIs(t, err, ErrMalformedInput)

	p = ParamsFromModel(generator(t), "", "xyz")
	_, err = p.Model()
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParamsDropPrunedLabels(t *testing.T) {
	m := generator(t)
	_, err := m.Resize([]bool{true, false, true})
	require.NoError(t, err)
	p := ParamsFromModel(m, "ABC", "")
	assert.Equal(t, "AC", p.Decoder)
}

func TestWriteSummary(t *testing.T) {

	m := generator(t)
	_, err := m.Resize([]bool{true, true, false})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteSummary(&buf, m.StateLabels("XYZ"), []string{"a", "b", "c", "d"}, "Fitted model"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Fitted model\n"))
	assert.Contains(t, out, "Transition matrix:")
	assert.Contains(t, out, "Emission probabilities:")
	assert.Contains(t, out, "X0")
	assert.Contains(t, out, "Y1")
	assert.Contains(t, out, "Pruned states: [2]")
	assert.Contains(t, out, "0.8000")
}

func TestLabels(t *testing.T) {

	m := generator(t)
	_, err := m.Resize([]bool{true, false, true})
	require.NoError(t, err)

	s, err := m.Labels([]int{0, 1, 1, 0}, "HMT")
	require.NoError(t, err)
	assert.Equal(t, "HTTH", s)

	_, err = m.Labels([]int{2}, "HMT")
	assert.ErrorIs(t, err, ErrMalformedInput)

	n, tot, err := CompareStates([]int{0, 1, 1}, []int{0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, tot)
}

type failingCheckpointer struct{}

func (failingCheckpointer) Save(int, *Model, float64) error { return errors.New("disk full") }

func (failingCheckpointer) Failure(int, *Model, [][]float64, error) error {
	return errors.New("disk full")
}

func TestCheckpointers(t *testing.T) {

	m := generator(t)
	a, b := &recordingCheckpointer{}, &recordingCheckpointer{}

	require.NoError(t, Checkpointers{a, b}.Save(3, m, -1))
	assert.Equal(t, []int{3}, a.saved)
	assert.Equal(t, []int{3}, b.saved)

	// Later elements still run after a failure
	err := Checkpointers{failingCheckpointer{}, a}.Failure(4, m, nil, ErrNumericDegeneracy)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, a.failures)

	assert.NoError(t, Checkpointers(nil).Save(0, m, 0))
}
