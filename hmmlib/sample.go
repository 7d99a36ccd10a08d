package hmmlib

import (
	"math/rand"
)

// draw returns an index sampled from the distribution p.
func draw(rng *rand.Rand, p []float64, stride, off int) int {
	u := rng.Float64()
	var cum float64
	n := len(p) / stride
	for i := 0; i < n; i++ {
		cum += p[i*stride+off]
		if u < cum {
			return i
		}
	}
	return n - 1
}

// Sample generates a state sequence and a symbol sequence of length n from
// the model.
func (m *Model) Sample(rng *rand.Rand, n int) ([]int, []int) {

	states := make([]int, n)
	obs := make([]int, n)
	if n == 0 {
		return states, obs
	}

	states[0] = draw(rng, m.Init, 1, 0)
	obs[0] = draw(rng, m.Emit, m.NState, states[0])
	for t := 1; t < n; t++ {
		states[t] = draw(rng, m.TransRow(states[t-1]), 1, 0)
		obs[t] = draw(rng, m.Emit, m.NState, states[t])
	}

	return states, obs
}
