package hmmlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Model is a hidden Markov model with a discrete emission alphabet.  All
// matrices are stored row-major in flat slices.
//
// A Model is owned by a single caller during training and is updated in
// place by Maximize.  Use Clone to hand a snapshot to another goroutine.
type Model struct {

	// Number of states (K)
	NState int

	// Number of distinct emission symbols (M)
	NSymbol int

	// The transition probability matrix, Trans[i*NState+j] is the
	// probability of moving from state i to state j.  Rows sum to 1.
	Trans []float64

	// The emission probabilities, Emit[m*NState+k] is the probability that
	// state k emits symbol m.  Columns sum to 1.
	Emit []float64

	// The initial state distribution
	Init []float64

	// Origin[k] is the index that state k had when the model was created.
	// It only differs from k after states have been pruned.
	Origin []int

	// Original indices of all states removed by pruning, in removal order
	Deleted []int
}

// NewModel returns a model built from a transition matrix (K x K), an
// emission matrix (M x K, column k is the emission distribution of state
// k) and an initial distribution of length K.  The values are copied.
func NewModel(trans, emit [][]float64, init []float64) (*Model, error) {

	nstate := len(init)
	if nstate == 0 {
		return nil, malformed("no states")
	}
	if len(trans) != nstate {
		return nil, malformed("transition matrix has %d rows, expected %d", len(trans), nstate)
	}
	if len(emit) == 0 {
		return nil, malformed("no emission symbols")
	}

	m := &Model{
		NState:  nstate,
		NSymbol: len(emit),
		Trans:   make([]float64, 0, nstate*nstate),
		Emit:    make([]float64, 0, len(emit)*nstate),
		Init:    append([]float64(nil), init...),
	}

	for i, row := range trans {
		if len(row) != nstate {
			return nil, malformed("transition row %d has %d columns, expected %d", i, len(row), nstate)
		}
		m.Trans = append(m.Trans, row...)
	}
	for i, row := range emit {
		if len(row) != nstate {
			return nil, malformed("emission row %d has %d columns, expected %d", i, len(row), nstate)
		}
		m.Emit = append(m.Emit, row...)
	}

	for _, x := range [][]float64{m.Trans, m.Emit, m.Init} {
		for _, v := range x {
			if v < 0 || !finite(v) {
				return nil, malformed("invalid probability %v", v)
			}
		}
	}

	m.resetOrigin()
	return m, nil
}

func (m *Model) resetOrigin() {
	m.Origin = make([]int, m.NState)
	for k := range m.Origin {
		m.Origin[k] = k
	}
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	return &Model{
		NState:  m.NState,
		NSymbol: m.NSymbol,
		Trans:   append([]float64(nil), m.Trans...),
		Emit:    append([]float64(nil), m.Emit...),
		Init:    append([]float64(nil), m.Init...),
		Origin:  append([]int(nil), m.Origin...),
		Deleted: append([]int(nil), m.Deleted...),
	}
}

// emitRow returns the emission probabilities of symbol x for every state.
func (m *Model) emitRow(x int) []float64 {
	return m.Emit[x*m.NState : (x+1)*m.NState]
}

// TransRow returns the outgoing transition probabilities of state i.
func (m *Model) TransRow(i int) []float64 {
	return m.Trans[i*m.NState : (i+1)*m.NState]
}

// NormalizeTransition rescales each row of the transition matrix to sum to 1.
func (m *Model) NormalizeTransition() {
	for i := 0; i < m.NState; i++ {
		normalizeSum(m.TransRow(i), 1/float64(m.NState))
	}
}

// NormalizeEmission rescales each column of the emission matrix to sum to 1.
func (m *Model) NormalizeEmission() {
	col := make([]float64, m.NSymbol)
	for k := 0; k < m.NState; k++ {
		for x := 0; x < m.NSymbol; x++ {
			col[x] = m.Emit[x*m.NState+k]
		}
		normalizeSum(col, 1/float64(m.NSymbol))
		for x := 0; x < m.NSymbol; x++ {
			m.Emit[x*m.NState+k] = col[x]
		}
	}
}

// NormalizeInitial rescales the initial distribution to sum to 1.
func (m *Model) NormalizeInitial() {
	normalizeSum(m.Init, 1/float64(m.NState))
}

// Pseudocounts are added to the parameters after each maximization step.
// A value that is not positive leaves the corresponding parameter alone.
type Pseudocounts struct {
	Trans float64
	Emit  float64
	Init  float64
}

// Any returns true if at least one pseudocount is positive.
func (pc Pseudocounts) Any() bool {
	return pc.Trans > 0 || pc.Emit > 0 || pc.Init > 0
}

// AddPseudocounts adds the pseudocounts uniformly and renormalizes.
func (m *Model) AddPseudocounts(pc Pseudocounts) {
	if pc.Trans > 0 {
		floats.AddConst(pc.Trans, m.Trans)
		m.NormalizeTransition()
	}
	if pc.Emit > 0 {
		floats.AddConst(pc.Emit, m.Emit)
		m.NormalizeEmission()
	}
	if pc.Init > 0 {
		floats.AddConst(pc.Init, m.Init)
		m.NormalizeInitial()
	}
}

// Validate checks that every probability distribution held by the model
// sums to one within tol.
func (m *Model) Validate(tol float64) error {

	if len(m.Trans) != m.NState*m.NState || len(m.Emit) != m.NSymbol*m.NState || len(m.Init) != m.NState {
		return malformed("parameter sizes do not match %d states and %d symbols", m.NState, m.NSymbol)
	}

	for i := 0; i < m.NState; i++ {
		if s := floats.Sum(m.TransRow(i)); math.Abs(s-1) > tol {
			return fmt.Errorf("transition row %d sums to %v", i, s)
		}
	}

	for k := 0; k < m.NState; k++ {
		var s float64
		for x := 0; x < m.NSymbol; x++ {
			s += m.Emit[x*m.NState+k]
		}
		if math.Abs(s-1) > tol {
			return fmt.Errorf("emission column %d sums to %v", k, s)
		}
	}

	if s := floats.Sum(m.Init); math.Abs(s-1) > tol {
		return fmt.Errorf("initial distribution sums to %v", s)
	}

	return nil
}

// Remap relates state indices before and after a Resize.
type Remap struct {

	// OldToNew[j] is the new index of old state j, or -1 if it was removed
	OldToNew []int

	// NewToOld[k] is the old index of new state k
	NewToOld []int
}

// Removed returns the old indices of the removed states.
func (r Remap) Removed() []int {
	var rm []int
	for j, k := range r.OldToNew {
		if k < 0 {
			rm = append(rm, j)
		}
	}
	return rm
}

// Square restricts a flat K x K matrix to the retained states.
func (r Remap) Square(x []float64) []float64 {
	nold := len(r.OldToNew)
	nnew := len(r.NewToOld)
	y := make([]float64, 0, nnew*nnew)
	for _, i := range r.NewToOld {
		for _, j := range r.NewToOld {
			y = append(y, x[i*nold+j])
		}
	}
	return y
}

// Columns restricts a flat matrix with one column per state to the
// retained states.
func (r Remap) Columns(x []float64) []float64 {
	nold := len(r.OldToNew)
	nrow := len(x) / nold
	y := make([]float64, 0, nrow*len(r.NewToOld))
	for i := 0; i < nrow; i++ {
		row := x[i*nold : (i+1)*nold]
		for _, j := range r.NewToOld {
			y = append(y, row[j])
		}
	}
	return y
}

// Rows restricts each row of x (one entry per state) to the retained states.
func (r Remap) Rows(x [][]float64) [][]float64 {
	y := makeFloatArray(len(x), len(r.NewToOld))
	for i, row := range x {
		for k, j := range r.NewToOld {
			y[i][k] = row[j]
		}
	}
	return y
}

// Resize removes every state j for which valid[j] is false.  New parameter
// slices are allocated, so slices obtained from the model beforehand keep
// their old contents.  The original indices of the removed states are
// appended to Deleted.
func (m *Model) Resize(valid []bool) (Remap, error) {

	if len(valid) != m.NState {
		return Remap{}, malformed("resize mask has length %d, expected %d", len(valid), m.NState)
	}

	r := Remap{OldToNew: make([]int, m.NState)}
	for j, ok := range valid {
		if ok {
			r.OldToNew[j] = len(r.NewToOld)
			r.NewToOld = append(r.NewToOld, j)
		} else {
			r.OldToNew[j] = -1
		}
	}
	if len(r.NewToOld) == 0 {
		return Remap{}, malformed("resize would remove every state")
	}

	if len(m.Origin) != m.NState {
		m.resetOrigin()
	}
	origin := make([]int, len(r.NewToOld))
	for k, j := range r.NewToOld {
		origin[k] = m.Origin[j]
	}
	for _, j := range r.Removed() {
		m.Deleted = append(m.Deleted, m.Origin[j])
	}

	m.Trans = r.Square(m.Trans)
	m.Emit = r.Columns(m.Emit)
	m.Init = r.Columns(m.Init)
	m.Origin = origin
	m.NState = len(r.NewToOld)

	return r, nil
}
