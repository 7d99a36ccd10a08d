package boltstore

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) *hmmlib.Model {
	m, err := hmmlib.NewModel(
		[][]float64{{0.7, 0.3}, {0.4, 0.6}},
		[][]float64{{0.6, 0.3}, {0.3, 0.3}, {0.1, 0.4}},
		[]float64{0.5, 0.5},
	)
	require.NoError(t, err)
	return m
}

func TestStoreTrainingRun(t *testing.T) {

	dbPath := filepath.Join(t.TempDir(), "ckpt.db")
	store, err := Open(Config{Path: dbPath})
	require.NoError(t, err)
	defer store.Close()

	m := testModel(t)
	rng := rand.New(rand.NewSource(1))
	seqs := make([][]int, 5)
	for r := range seqs {
		_, seqs[r] = m.Sample(rng, 30)
	}

	tr := hmmlib.NewTrainer(m)
	tr.MaxIter = 5
	tr.Threshold = 1e-300
	tr.Checkpointer = store
	tr.Logger = hclog.NewNullLogger()
	require.NoError(t, tr.Fit(context.Background(), seqs))

	llf, err := store.History(store.RunID())
	require.NoError(t, err)
	assert.Equal(t, tr.LLF, llf)

	snap, err := store.Latest(store.RunID())
	require.NoError(t, err)
	assert.Equal(t, len(tr.LLF)-1, snap.Iter)
	got, err := snap.Model()
	require.NoError(t, err)
	assert.Equal(t, m.Trans, got.Trans)
	assert.Equal(t, m.Emit, got.Emit)

	_, err = store.FailureSnapshot(store.RunID())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreFailureAndRuns(t *testing.T) {

	dbPath := filepath.Join(t.TempDir(), "ckpt.db")

	first, err := Open(Config{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, first.Save(0, testModel(t), -10))
	require.NoError(t, first.Failure(1, testModel(t), [][]float64{{1, 0, 0, 1}}, errors.New("nan")))
	id := first.RunID()
	require.NoError(t, first.Close())

	second, err := Open(Config{Path: dbPath})
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, id, second.RunID())

	runs, err := second.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Contains(t, runs, id)

	snap, err := second.FailureSnapshot(id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Iter)
	assert.Equal(t, "nan", snap.Cause)
	assert.Equal(t, [][]float64{{1, 0, 0, 1}}, snap.XiSums)

	// The new run has no iterations yet
	_, err = second.Latest(second.RunID())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreResumeRun(t *testing.T) {

	dbPath := filepath.Join(t.TempDir(), "ckpt.db")

	first, err := Open(Config{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, first.Save(0, testModel(t), -10))
	id := first.RunID()
	require.NoError(t, first.Close())

	again, err := Open(Config{Path: dbPath, RunID: &id})
	require.NoError(t, err)
	defer again.Close()
	require.NoError(t, again.Save(1, testModel(t), -8))

	llf, err := again.History(id)
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, -8}, llf)
}
