package hmmlib

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// randModel returns a model with strictly positive random parameters.
func randModel(rng *rand.Rand, nstate, nsymbol int) *Model {
	m := &Model{
		NState:  nstate,
		NSymbol: nsymbol,
		Trans:   make([]float64, nstate*nstate),
		Emit:    make([]float64, nsymbol*nstate),
		Init:    make([]float64, nstate),
	}
	for _, x := range [][]float64{m.Trans, m.Emit, m.Init} {
		for i := range x {
			x[i] = 0.1 + rng.Float64()
		}
	}
	m.NormalizeTransition()
	m.NormalizeEmission()
	m.NormalizeInitial()
	m.resetOrigin()
	return m
}

// generator is a 3-state model with well separated emissions.
func generator(t *testing.T) *Model {
	m, err := NewModel(
		[][]float64{
			{0.8, 0.15, 0.05},
			{0.1, 0.8, 0.1},
			{0.05, 0.15, 0.8},
		},
		[][]float64{
			{0.7, 0.1, 0.1},
			{0.1, 0.7, 0.1},
			{0.1, 0.1, 0.7},
			{0.1, 0.1, 0.1},
		},
		[]float64{0.5, 0.3, 0.2},
	)
	require.NoError(t, err)
	return m
}

func gendat(rng *rand.Rand, m *Model, nseq, ntime int) [][]int {
	seqs := make([][]int, nseq)
	for r := range seqs {
		_, seqs[r] = m.Sample(rng, ntime)
	}
	return seqs
}

// bruteForce enumerates every state path of x.  It returns the best path,
// its log-probability and the log-likelihood of x.
func bruteForce(m *Model, x []int) ([]int, float64, float64) {

	ntime := len(x)
	npath := int(math.Pow(float64(m.NState), float64(ntime)))
	y := make([]int, ntime)
	var best []int
	bestScore := math.Inf(-1)
	var total float64

	for p := 0; p < npath; p++ {
		q := p
		for t := ntime - 1; t >= 0; t-- {
			y[t] = q % m.NState
			q /= m.NState
		}
		lp := m.PathLogProb(x, y, 1e-300)
		total += math.Exp(lp)
		if lp > bestScore {
			bestScore = lp
			best = append(best[:0], y...)
		}
	}

	return best, bestScore, math.Log(total)
}
