// Package classify decides whether a protein is tail-anchored from the
// decodings of the tail-anchored and the reference membrane protein models.
package classify

import (
	"fmt"
	"strings"
)

const (
	// DefaultThreshold is the smallest length-normalized log-likelihood
	// difference for a positive call.
	DefaultThreshold = -0.0167222981

	// DefaultHelixLabel is the path label of transmembrane helix states.
	DefaultHelixLabel = 'H'

	// DefaultMinHelix is the minimum length of a transmembrane segment.
	DefaultMinHelix = 15

	// DefaultCTermDistance is how far from the C-terminus the single
	// transmembrane segment may start.
	DefaultCTermDistance = 50
)

// Params configures the classifier.
type Params struct {
	Threshold     float64
	HelixLabel    byte
	MinHelix      int
	CTermDistance int
}

// DefaultParams returns the parameters of the published classifier.
func DefaultParams() Params {
	return Params{
		Threshold:     DefaultThreshold,
		HelixLabel:    DefaultHelixLabel,
		MinHelix:      DefaultMinHelix,
		CTermDistance: DefaultCTermDistance,
	}
}

// Segment is a half-open range [Start, End) of path positions.
type Segment struct {
	Start, End int
}

func (s Segment) String() string {
	return fmt.Sprintf("(%d, %d)", s.Start, s.End)
}

// Len returns the number of positions in the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Score returns the log-likelihood difference per residue.
func Score(llTA, llRef float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return (llTA - llRef) / float64(n)
}

// FindHelices returns the maximal runs of label in path that are at least
// minLen long.
func FindHelices(path string, label byte, minLen int) []Segment {
	var segs []Segment
	for i := 0; i < len(path); {
		if path[i] != label {
			i++
			continue
		}
		j := i
		for j < len(path) && path[j] == label {
			j++
		}
		if j-i >= minLen {
			segs = append(segs, Segment{i, j})
		}
		i = j
	}
	return segs
}

// Result is the classification of one protein.
type Result struct {
	Score float64

	// Score is at or above the threshold
	AboveThreshold bool

	// All transmembrane segments of the TA path
	Helices []Segment

	// The segments starting within CTermDistance of the C-terminus
	CTermHelices []Segment

	// The protein is predicted to be tail-anchored
	TailAnchored bool
}

// HasHelix returns true if the path has at least one transmembrane segment.
func (r *Result) HasHelix() bool {
	return len(r.Helices) > 0
}

// Classify scores a protein of length n from the TA model path and the two
// best-path log-likelihoods.  It is tail-anchored if the score reaches the
// threshold and the path has exactly one transmembrane segment, which
// starts within CTermDistance of the C-terminus.
func (p Params) Classify(taPath string, llTA, llRef float64, n int) *Result {

	r := &Result{
		Score:   Score(llTA, llRef, n),
		Helices: FindHelices(taPath, p.HelixLabel, p.MinHelix),
	}
	r.AboveThreshold = r.Score >= p.Threshold

	cter := n - p.CTermDistance
	for _, s := range r.Helices {
		if s.Start >= cter {
			r.CTermHelices = append(r.CTermHelices, s)
		}
	}

	r.TailAnchored = r.AboveThreshold && len(r.Helices) == 1 && len(r.CTermHelices) == 1

	return r
}

// FormatSegments joins segments with sep, or returns "-" if there are none.
func FormatSegments(segs []Segment, sep string) string {
	if len(segs) == 0 {
		return "-"
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, sep)
}
