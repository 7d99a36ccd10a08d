package hmmlib

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViterbiTwoState(t *testing.T) {

	m, err := NewModel(
		[][]float64{{0.9, 0.1}, {0.1, 0.9}},
		[][]float64{{0.8, 0.2}, {0.2, 0.8}},
		[]float64{0.5, 0.5},
	)
	require.NoError(t, err)

	path, err := m.Viterbi([]int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1}, path.States)
}

func TestViterbiBruteForce(t *testing.T) {

	m, err := NewModel(
		[][]float64{{0.7, 0.3}, {0.45, 0.55}},
		[][]float64{{0.65, 0.25}, {0.35, 0.75}},
		[]float64{0.6, 0.4},
	)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 20; trial++ {
		x := make([]int, 9)
		for i := range x {
			x[i] = rng.Intn(2)
		}

		best, score, ll := bruteForce(m, x)

		path, err := m.Viterbi(x, WithOmega(), WithLogAlpha())
		require.NoError(t, err)
		assert.Equal(t, best, path.States, "sequence %v", x)
		assert.InDelta(t, score, path.Score, 1e-10)
		assert.InDelta(t, ll, path.LogLike, 1e-10)

		require.Len(t, path.Omega, len(x))
		assert.InDelta(t, path.Score, path.Omega[len(x)-1], 1e-12)

		// The last row of log alpha sums to the likelihood
		var tot float64
		for _, v := range path.LogAlpha[len(x)-1] {
			tot += math.Exp(v)
		}
		assert.InDelta(t, ll, math.Log(tot), 1e-8)
	}
}

func TestViterbiFloor(t *testing.T) {

	// State 1 can never be entered
	m, err := NewModel(
		[][]float64{{1, 0}, {0.5, 0.5}},
		[][]float64{{0.5, 0.5}, {0.5, 0.5}},
		[]float64{1, 0},
	)
	require.NoError(t, err)
	old := m.Clone()

	path, err := m.Viterbi([]int{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, path.States)
	assert.Equal(t, old, m)

	// The floor makes zero probabilities finite
	assert.False(t, math.IsInf(path.Score, 0))
	p2, err := m.Viterbi([]int{0, 1, 0}, WithFloor(1e-3))
	require.NoError(t, err)
	assert.Equal(t, path.Score, p2.Score)
	assert.Equal(t, old, m)
}

func TestViterbiTies(t *testing.T) {

	m, err := NewModel(
		[][]float64{{0.5, 0.5}, {0.5, 0.5}},
		[][]float64{{0.5, 0.5}, {0.5, 0.5}},
		[]float64{0.5, 0.5},
	)
	require.NoError(t, err)

	path, err := m.Viterbi([]int{0, 1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0}, path.States)
	assert.Nil(t, path.Omega)
	assert.Nil(t, path.LogAlpha)
}
