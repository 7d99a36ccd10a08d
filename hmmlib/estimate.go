package hmmlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Estimate holds the posterior quantities computed by the scaled
// forward-backward recursions for one observation sequence.
type Estimate struct {

	// Gamma[n][k] is the posterior probability of state k at position n.
	// Each row sums to 1.
	Gamma [][]float64

	// XiSum[i*K+j] is the expected number of transitions from state i to
	// state j, summed over the sequence.
	XiSum []float64

	// Scale[n] is the normalizing constant of the forward variable at
	// position n.
	Scale []float64
}

// LogLike returns the log-likelihood of the sequence, which is the sum of
// the log scale factors.
func (est *Estimate) LogLike() float64 {
	return sumLog(est.Scale)
}

func sumLog(c []float64) float64 {
	var ll float64
	for _, v := range c {
		ll += math.Log(v)
	}
	return ll
}

// CheckSequence returns an error if x is empty or contains a symbol
// outside of [0, NSymbol).
func (m *Model) CheckSequence(x []int) error {
	if len(x) == 0 {
		return malformed("empty observation sequence")
	}
	for n, v := range x {
		if v < 0 || v >= m.NSymbol {
			return malformed("symbol %d at position %d is outside [0, %d)", v, n, m.NSymbol)
		}
	}
	return nil
}

// Forward calculates the scaled forward probabilities for x.  alpha[n] is
// the distribution of the state at position n given x[0..n], and scale[n]
// is the factor that alpha[n] was divided by.
func (m *Model) Forward(x []int) ([][]float64, []float64, error) {

	if err := m.CheckSequence(x); err != nil {
		return nil, nil, err
	}

	ntime := len(x)
	alpha := makeFloatArray(ntime, m.NState)
	scale := make([]float64, ntime)

	// Initial time point
	floats.MulTo(alpha[0], m.Init, m.emitRow(x[0]))
	if err := m.rescale(alpha[0], scale, 0); err != nil {
		return nil, nil, err
	}

	for t := 1; t < ntime; t++ {
		prev, cur := alpha[t-1], alpha[t]
		for i, a := range prev {
			if a == 0 {
				continue
			}
			floats.AddScaled(cur, a, m.TransRow(i))
		}
		floats.Mul(cur, m.emitRow(x[t]))
		if err := m.rescale(cur, scale, t); err != nil {
			return nil, nil, err
		}
	}

	return alpha, scale, nil
}

func (m *Model) rescale(a, scale []float64, t int) error {
	c := floats.Sum(a)
	if c <= 0 || !finite(c) {
		return fmt.Errorf("%w: scale factor %v at position %d", ErrNumericDegeneracy, c, t)
	}
	scale[t] = c
	floats.Scale(1/c, a)
	return nil
}

// Estimate runs the scaled forward-backward recursions on one observation
// sequence and returns the state posteriors and expected transition counts.
func (m *Model) Estimate(x []int) (*Estimate, error) {

	alpha, scale, err := m.Forward(x)
	if err != nil {
		return nil, err
	}

	ntime := len(x)
	nstate := m.NState
	beta := makeFloatArray(ntime, nstate)
	for k := range beta[ntime-1] {
		beta[ntime-1][k] = 1
	}

	// eb holds E[x[t]] * beta[t] for the position currently being used
	eb := make([]float64, nstate)
	xisum := make([]float64, nstate*nstate)

	for t := ntime - 1; t > 0; t-- {

		floats.MulTo(eb, m.emitRow(x[t]), beta[t])

		// Accumulate the unnormalized transition expectations
		// alpha[t-1] (outer) eb / c[t]
		for i, a := range alpha[t-1] {
			if a == 0 {
				continue
			}
			floats.AddScaled(xisum[i*nstate:(i+1)*nstate], a/scale[t], eb)
		}

		// Backward step
		for i := 0; i < nstate; i++ {
			beta[t-1][i] = floats.Dot(m.TransRow(i), eb) / scale[t]
		}
	}

	floats.Mul(xisum, m.Trans)

	gamma := makeFloatArray(ntime, nstate)
	for t := range gamma {
		floats.MulTo(gamma[t], alpha[t], beta[t])
	}

	return &Estimate{
		Gamma: gamma,
		XiSum: xisum,
		Scale: scale,
	}, nil
}
