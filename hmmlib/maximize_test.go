package hmmlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// State 1 never emits an observed symbol and state 2 is only entered at the
// last position, so state 1 is pruned while state 2 has no outgoing mass.
func TestMaximizePruneKeepsRowsStochastic(t *testing.T) {

	m, err := NewModel(
		[][]float64{
			{0.5, 0.25, 0.25},
			{0.2, 0.4, 0.4},
			{0.2, 0.4, 0.4},
		},
		[][]float64{
			{1, 0, 0},
			{0, 0, 1},
			{0, 1, 0},
		},
		[]float64{1, 0, 0},
	)
	require.NoError(t, err)

	x := []int{0, 0, 0, 1}
	est, err := m.Estimate(x)
	require.NoError(t, err)

	res, err := m.Maximize([]*Estimate{est}, [][]int{x}, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, res.Pruned)
	assert.Equal(t, 2, m.NState)
	assert.Equal(t, []int{0, 2}, m.Origin)
	require.NoError(t, m.Validate(1e-10))

	assert.InDeltaSlice(t, []float64{2.0 / 3, 1.0 / 3}, m.TransRow(0), 1e-10)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 2.0 / 3}, m.TransRow(1), 1e-10)
}
