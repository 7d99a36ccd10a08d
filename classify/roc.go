package classify

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/integrate"
)

// Curve is the receiver operating characteristic of a score on positive
// and negative examples, with the threshold of minimal balanced error rate.
type Curve struct {
	// TPR[n] and FPR[n] are the rates at the n'th threshold, from the
	// highest threshold to the lowest
	TPR, FPR []float64

	// Area under the curve
	AUC float64

	// Balanced error rate at Threshold
	BER float64

	// Scores at or above Threshold are called positive
	Threshold float64

	TP, FN, FP, TN int
}

// ROC computes the curve of scores pos of positive and neg of negative
// examples.  The candidate thresholds are the midpoints between consecutive
// sorted scores plus one point below and one above all scores; ties in the
// balanced error rate go to the highest threshold.  Neither pos nor neg may
// be empty.
func ROC(pos, neg []float64) (*Curve, error) {

	if len(pos) == 0 || len(neg) == 0 {
		return nil, errors.New("ROC needs positive and negative scores")
	}

	pos = sortedDesc(pos)
	neg = sortedDesc(neg)

	all := append(append([]float64(nil), pos...), neg...)
	sort.Float64s(all)

	// Thresholds in ascending order
	mds := make([]float64, 0, len(all)+1)
	mds = append(mds, all[0]-1)
	for i := 1; i < len(all); i++ {
		mds = append(mds, (all[i-1]+all[i])/2)
	}
	mds = append(mds, all[len(all)-1]+1)

	r := &Curve{
		TPR: make([]float64, len(mds)),
		FPR: make([]float64, len(mds)),
		BER: 1,
	}
	npos, nneg := float64(len(pos)), float64(len(neg))
	var tp, fp int
	for n := range mds {
		x := mds[len(mds)-1-n]
		for tp < len(pos) && pos[tp] >= x {
			tp++
		}
		for fp < len(neg) && neg[fp] >= x {
			fp++
		}
		ber := (1 - float64(tp)/npos + float64(fp)/nneg) / 2
		if ber < r.BER {
			r.BER = ber
			r.Threshold = x
		}
		r.TPR[n] = float64(tp) / npos
		r.FPR[n] = float64(fp) / nneg
	}
	r.AUC = integrate.Trapezoidal(r.FPR, r.TPR)

	for _, v := range pos {
		if v >= r.Threshold {
			r.TP++
		} else {
			r.FN++
		}
	}
	for _, v := range neg {
		if v >= r.Threshold {
			r.FP++
		} else {
			r.TN++
		}
	}

	return r, nil
}

func sortedDesc(x []float64) []float64 {
	y := append([]float64(nil), x...)
	sort.Sort(sort.Reverse(sort.Float64Slice(y)))
	return y
}
