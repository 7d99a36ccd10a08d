package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	assert.InDelta(t, 0.5, Score(-10, -15, 10), 1e-12)
	assert.InDelta(t, -0.25, Score(-20, -15, 20), 1e-12)
	assert.Equal(t, 0.0, Score(-1, -2, 0))
}

func TestFindHelices(t *testing.T) {

	tests := []struct {
		name string
		path string
		want []Segment
	}{
		{"none", "TTTTCCCC", nil},
		{"short", "TT" + strings.Repeat("H", 14) + "TT", nil},
		{"exact", "TT" + strings.Repeat("H", 15) + "TT", []Segment{{2, 17}}},
		{"long run is one segment", strings.Repeat("H", 32), []Segment{{0, 32}}},
		{"two", strings.Repeat("H", 15) + "C" + strings.Repeat("H", 20), []Segment{{0, 15}, {16, 36}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindHelices(tt.path, 'H', 15))
		})
	}
}

func TestClassify(t *testing.T) {

	p := DefaultParams()
	helix := strings.Repeat("H", 20)

	tests := []struct {
		name   string
		path   string
		score  float64
		wantTA bool
	}{
		{"tail anchored", strings.Repeat("T", 80) + helix + "TTTTT", 0.01, true},
		{"below threshold", strings.Repeat("T", 80) + helix + "TTTTT", -0.02, false},
		{"helix too far from C-terminus", helix + strings.Repeat("T", 85), 0.01, false},
		{"two helices", strings.Repeat("T", 40) + helix + "TTTTT" + helix + "TTTTTTTTTT", 0.01, false},
		{"no helix", strings.Repeat("T", 105), 0.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := len(tt.path)
			r := p.Classify(tt.path, tt.score*float64(n), 0, n)
			assert.InDelta(t, tt.score, r.Score, 1e-12)
			assert.Equal(t, tt.wantTA, r.TailAnchored)
		})
	}
}

func TestClassifyBoundary(t *testing.T) {

	p := DefaultParams()

	// A score equal to the threshold is positive
	path := strings.Repeat("T", 80) + strings.Repeat("H", 20) + strings.Repeat("T", 5)
	p.Threshold = Score(-1, 0, len(path))
	assert.True(t, p.Classify(path, -1, 0, len(path)).TailAnchored)
	p.Threshold = DefaultThreshold

	// A helix starting exactly CTermDistance residues before the end counts
	path = strings.Repeat("T", 50) + strings.Repeat("H", 20) + strings.Repeat("T", 30)
	r := p.Classify(path, 1, 0, len(path))
	assert.Equal(t, []Segment{{50, 70}}, r.CTermHelices)
	assert.True(t, r.TailAnchored)

	path = strings.Repeat("T", 49) + strings.Repeat("H", 20) + strings.Repeat("T", 31)
	r = p.Classify(path, 1, 0, len(path))
	assert.Empty(t, r.CTermHelices)
	assert.True(t, r.HasHelix())
	assert.False(t, r.TailAnchored)
}

func TestFormatSegments(t *testing.T) {
	assert.Equal(t, "-", FormatSegments(nil, ";"))
	assert.Equal(t, "(1, 16);(20, 40)", FormatSegments([]Segment{{1, 16}, {20, 40}}, ";"))
}
