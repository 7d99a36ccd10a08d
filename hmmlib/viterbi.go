package hmmlib

import (
	"math"
)

// DefaultFloor is the smallest probability used when taking logarithms in
// Viterbi decoding.  Zero probabilities become very unlikely rather than
// impossible.
const DefaultFloor = 1e-10

// Path is the result of Viterbi decoding one sequence.
type Path struct {

	// The most likely state sequence, in forward order
	States []int

	// Log-probability of the best path
	Score float64

	// Omega[n] is the best-path log-score at position n along States.  Only
	// set when requested with WithOmega.
	Omega []float64

	// Log-likelihood of the sequence summed over all paths
	LogLike float64

	// LogAlpha[n][k] is the unscaled log forward probability.  Only set when
	// requested with WithLogAlpha.
	LogAlpha [][]float64
}

type viterbiConfig struct {
	floor    float64
	omega    bool
	logAlpha bool
}

// ViterbiOption configures Viterbi.
type ViterbiOption func(*viterbiConfig)

// WithFloor sets the probability floor applied before taking logarithms.
func WithFloor(floor float64) ViterbiOption {
	return func(c *viterbiConfig) { c.floor = floor }
}

// WithOmega requests the per-position best-path scores.
func WithOmega() ViterbiOption {
	return func(c *viterbiConfig) { c.omega = true }
}

// WithLogAlpha requests the unscaled log forward probabilities.
func WithLogAlpha() ViterbiOption {
	return func(c *viterbiConfig) { c.logAlpha = true }
}

// Viterbi returns the most likely state sequence for x.  The model is
// not modified; probabilities are clipped to the floor on copies.  Ties are
// broken in favor of the lowest state index.
func (m *Model) Viterbi(x []int, opts ...ViterbiOption) (*Path, error) {

	cfg := viterbiConfig{floor: DefaultFloor}
	for _, o := range opts {
		o(&cfg)
	}

	alpha, scale, err := m.Forward(x)
	if err != nil {
		return nil, err
	}

	ntime := len(x)
	nstate := m.NState
	path := &Path{LogLike: sumLog(scale)}

	if cfg.logAlpha {
		// Add the accumulated log scale factors back to the scaled alphas.
		path.LogAlpha = makeFloatArray(ntime, nstate)
		var acc float64
		for t := range alpha {
			acc += math.Log(math.Max(scale[t], cfg.floor))
			for k, a := range alpha[t] {
				path.LogAlpha[t][k] = math.Log(math.Max(a, cfg.floor)) + acc
			}
		}
	}

	lt := clipLog(m.Trans, cfg.floor)
	le := clipLog(m.Emit, cfg.floor)
	li := clipLog(m.Init, cfg.floor)

	// lpr[t][j] is the best log-score of a path ending in state j at t, and
	// lpt[t][j] the previous state on that path.
	lpr := makeFloatArray(ntime, nstate)
	lpt := makeIntArray(ntime, nstate)

	for k := 0; k < nstate; k++ {
		lpr[0][k] = li[k] + le[x[0]*nstate+k]
	}

	for t := 1; t < ntime; t++ {
		prev := lpr[t-1]
		ler := le[x[t]*nstate : (x[t]+1)*nstate]
		for st2 := 0; st2 < nstate; st2++ {
			best := prev[0] + lt[st2]
			jj := 0
			for st1 := 1; st1 < nstate; st1++ {
				if v := prev[st1] + lt[st1*nstate+st2]; v > best {
					best = v
					jj = st1
				}
			}
			lpt[t][st2] = jj
			lpr[t][st2] = best + ler[st2]
		}
	}

	// Traceback
	y := make([]int, ntime)
	y[ntime-1] = argmax(lpr[ntime-1])
	for t := ntime - 1; t > 0; t-- {
		y[t-1] = lpt[t][y[t]]
	}

	path.States = y
	path.Score = lpr[ntime-1][y[ntime-1]]

	if cfg.omega {
		path.Omega = make([]float64, ntime)
		for t, st := range y {
			path.Omega[t] = lpr[t][st]
		}
	}

	return path, nil
}

// PathLogProb returns the log-probability of the joint event that the
// states follow y and the symbols follow x, using the same floor as Viterbi.
func (m *Model) PathLogProb(x, y []int, floor float64) float64 {
	if floor <= 0 {
		floor = DefaultFloor
	}
	lp := math.Log(math.Max(m.Init[y[0]], floor)) + math.Log(math.Max(m.Emit[x[0]*m.NState+y[0]], floor))
	for t := 1; t < len(x); t++ {
		lp += math.Log(math.Max(m.Trans[y[t-1]*m.NState+y[t]], floor))
		lp += math.Log(math.Max(m.Emit[x[t]*m.NState+y[t]], floor))
	}
	return lp
}
