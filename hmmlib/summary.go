package hmmlib

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// WriteSummary writes the model parameters to w as text tables.  The
// optional state and symbol labels are used if they have the right length.
func (m *Model) WriteSummary(w io.Writer, stateLabels, symbolLabels []string, title string) error {

	var buf bytes.Buffer

	buf.WriteString(title)
	buf.WriteString("\n\n")

	buf.WriteString("Initial states distribution:\n")
	writeMatrix(&buf, m.Init, m.NState, 1, stateLabels, nil)
	buf.WriteString("\n")

	buf.WriteString("Transition matrix:\n")
	writeMatrix(&buf, m.Trans, m.NState, m.NState, stateLabels, stateLabels)
	buf.WriteString("\n")

	buf.WriteString("Emission probabilities:\n")
	writeMatrix(&buf, m.Emit, m.NSymbol, m.NState, symbolLabels, stateLabels)
	buf.WriteString("\n")

	if len(m.Deleted) > 0 {
		fmt.Fprintf(&buf, "Pruned states: %v\n\n", m.Deleted)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// StateLabels returns one label per state.  If decoder is given the label
// of state k is its decoder character followed by its original index.
func (m *Model) StateLabels(decoder string) []string {
	labels := make([]string, m.NState)
	for k := range labels {
		o := k
		if k < len(m.Origin) {
			o = m.Origin[k]
		}
		if o < len(decoder) {
			labels[k] = fmt.Sprintf("%c%d", decoder[o], o)
		} else {
			labels[k] = fmt.Sprintf("S%d", o)
		}
	}
	return labels
}

// writeMatrix writes a flat row-major matrix in text format to buf.
// Labels with the wrong length are ignored.
func writeMatrix(buf *bytes.Buffer, x []float64, nrow, ncol int, rowlabels, collabels []string) {

	if rowlabels != nil && len(rowlabels) != nrow {
		rowlabels = nil
	}
	if collabels != nil && len(collabels) != ncol {
		collabels = nil
	}

	if collabels != nil {
		if rowlabels != nil {
			fmt.Fprintf(buf, "%20s", "")
		}
		for _, c := range collabels {
			fmt.Fprintf(buf, "%20s", c)
		}
		buf.WriteString("\n")
	}

	for i := 0; i < nrow; i++ {
		if rowlabels != nil {
			fmt.Fprintf(buf, "%-20s", rowlabels[i])
		}
		for j := 0; j < ncol; j++ {
			fmt.Fprintf(buf, "%20.4f", x[i*ncol+j])
		}
		buf.WriteString("\n")
	}
}

// CompareStates returns the number of positions where the state sequences
// x and y disagree, and the number of positions compared.
func CompareStates(x, y []int) (int, int, error) {

	if len(x) != len(y) {
		return 0, 0, malformed("state sequences have lengths %d and %d", len(x), len(y))
	}

	var e int
	for t := range x {
		if x[t] != y[t] {
			e++
		}
	}

	return e, len(x), nil
}

// Labels maps each state of states to its decoder character, using the
// original state indices of m.
func (m *Model) Labels(states []int, decoder string) (string, error) {
	var b strings.Builder
	b.Grow(len(states))
	for n, k := range states {
		if k < 0 || k >= m.NState {
			return "", malformed("state %d at position %d is outside [0, %d)", k, n, m.NState)
		}
		o := k
		if k < len(m.Origin) {
			o = m.Origin[k]
		}
		if o >= len(decoder) {
			return "", malformed("no decoder label for state %d", o)
		}
		b.WriteByte(decoder[o])
	}
	return b.String(), nil
}
