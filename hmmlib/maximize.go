package hmmlib

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// indicator is the 1-of-M representation of an observation sequence.
// bySymbol[m] lists the positions at which symbol m was observed, which is
// the sparse form of row m of the M x N indicator matrix.
type indicator struct {
	ntime    int
	bySymbol [][]int
}

func newIndicator(x []int, nsymbol int) indicator {
	ind := indicator{
		ntime:    len(x),
		bySymbol: make([][]int, nsymbol),
	}
	for t, v := range x {
		ind.bySymbol[v] = append(ind.bySymbol[v], t)
	}
	return ind
}

// MaxResult summarizes one maximization step.
type MaxResult struct {

	// Total log-likelihood of the sequences under the parameters that
	// produced the estimates
	LogLike float64

	// Original indices of the states pruned in this step
	Pruned []int

	// The summed expected transition counts, after pruning
	SumXiSum []float64
}

// pruneMask flags the states that have any expected transition mass in
// or out.  A state whose outgoing and incoming totals are both at most
// threshold is invalid.  State 0 is always kept.
func pruneMask(sumxi []float64, nstate int, threshold float64) ([]bool, bool) {

	valid := make([]bool, nstate)
	all := true
	for j := 0; j < nstate; j++ {
		var out, in float64
		for i := 0; i < nstate; i++ {
			out += sumxi[j*nstate+i]
			in += sumxi[i*nstate+j]
		}
		valid[j] = j == 0 || out > threshold || in > threshold
		if !valid[j] {
			all = false
		}
	}

	return valid, all
}

// Maximize re-estimates the model parameters from per-sequence estimates.
// seqs[r] must be the sequence that produced ests[r].  States with no
// expected transition mass (see pruneMask) are removed before the update.
// The returned log-likelihood is that of the parameters in effect before
// the update.
func (m *Model) Maximize(ests []*Estimate, seqs [][]int, pruneThreshold float64) (*MaxResult, error) {
	ind := make([]indicator, len(seqs))
	for r, x := range seqs {
		if err := m.CheckSequence(x); err != nil {
			return nil, err
		}
		ind[r] = newIndicator(x, m.NSymbol)
	}
	return m.maximize(ests, ind, pruneThreshold)
}

func (m *Model) maximize(ests []*Estimate, ind []indicator, pruneThreshold float64) (*MaxResult, error) {

	if len(ests) == 0 {
		return nil, malformed("no estimates to maximize")
	}
	if len(ests) != len(ind) {
		return nil, malformed("%d estimates for %d sequences", len(ests), len(ind))
	}

	res := &MaxResult{}
	for _, est := range ests {
		res.LogLike += est.LogLike()
	}

	nstate := m.NState
	sumxi := make([]float64, nstate*nstate)
	gammas := make([][][]float64, len(ests))
	for r, est := range ests {
		if len(est.XiSum) != len(sumxi) {
			return nil, fmt.Errorf("%w: estimate %d has %d transition counts, expected %d",
				ErrMalformedInput, r, len(est.XiSum), len(sumxi))
		}
		floats.Add(sumxi, est.XiSum)
		gammas[r] = est.Gamma
	}

	if valid, all := pruneMask(sumxi, nstate, pruneThreshold); !all {
		before := len(m.Deleted)
		remap, err := m.Resize(valid)
		if err != nil {
			return nil, err
		}
		res.Pruned = append([]int(nil), m.Deleted[before:]...)
		sumxi = remap.Square(sumxi)
		for r := range gammas {
			gammas[r] = remap.Rows(gammas[r])
		}
		nstate = m.NState
	}
	res.SumXiSum = sumxi

	// Initial state distribution
	init := make([]float64, nstate)
	var den float64
	for _, g := range gammas {
		floats.Add(init, g[0])
		den += floats.Sum(g[0])
	}
	if den > 0 {
		floats.Scale(1/den, init)
		m.Init = init
	}

	// Transition matrix.  A row without any expected transitions keeps its
	// previous values, renormalized since pruning may have removed some.
	for i := 0; i < nstate; i++ {
		row := sumxi[i*nstate : (i+1)*nstate]
		if s := floats.Sum(row); s > 0 {
			floats.ScaleTo(m.TransRow(i), 1/s, row)
		} else {
			normalizeSum(m.TransRow(i), 1/float64(nstate))
		}
	}

	// Emission probabilities
	num := make([]float64, m.NSymbol*nstate)
	occ := make([]float64, nstate)
	for r, g := range gammas {
		for x, pos := range ind[r].bySymbol {
			row := num[x*nstate : (x+1)*nstate]
			for _, t := range pos {
				floats.Add(row, g[t])
			}
		}
		for _, gt := range g {
			floats.Add(occ, gt)
		}
	}
	for k := 0; k < nstate; k++ {
		if occ[k] <= 0 {
			continue
		}
		for x := 0; x < m.NSymbol; x++ {
			m.Emit[x*nstate+k] = num[x*nstate+k] / occ[k]
		}
	}

	return res, nil
}
