package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davecao/tappm-cli/classify"
	"github.com/davecao/tappm-cli/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []Item {
	path := strings.Repeat("T", 70) + strings.Repeat("H", 20) + "TTTTTTTTTT"
	seq := strings.Repeat("A", len(path))
	res := classify.DefaultParams().Classify(path, -50, -52, len(path))
	ta := &predictor.Record{ID: "zeta protein", Path: path, Likelihood: -50}
	ref := &predictor.Record{ID: "zeta protein", Likelihood: -52}

	other := classify.DefaultParams().Classify("TTTT", -10, -5, 4)
	return []Item{
		NewItem("zeta protein", "zeta protein desc", []byte(seq), ta, ref, res),
		NewItem("alpha", "alpha", []byte("ACDE"),
			&predictor.Record{Path: "TTTT", Likelihood: -10},
			&predictor.Record{Likelihood: -5}, other),
	}
}

func testSummary(items []Item) Summary {
	s := NewSummary(items, classify.DefaultThreshold, 4)
	s.Time = time.Date(2016, 1, 20, 20, 25, 15, 0, time.UTC)
	return s
}

func TestNewItem(t *testing.T) {
	items := testItems()
	assert.Equal(t, "zeta", items[0].Identifier)
	assert.True(t, items[0].TailAnchored)
	assert.InDelta(t, 0.02, items[0].Score, 1e-12)
	assert.False(t, items[1].TailAnchored)

	s := testSummary(items)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Positive)
}

func TestRenderTabular(t *testing.T) {

	r, err := NewRenderer("tabular")
	require.NoError(t, err)
	items := testItems()

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, testSummary(items), items))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 7)
	assert.Equal(t, "# TAPPM ver. "+Version, lines[0])
	assert.Equal(t, "# date: 20 Jan 2016 20:25:15", lines[1])
	assert.True(t, strings.HasPrefix(lines[5], "alpha\t4\t-1.250000\t"))
	assert.Equal(t, "zeta\t100\t0.020000\t-50.0000\t-52.0000\ttrue\t1\t(70, 90)\t(70, 90)\ttrue", lines[6])
}

func TestRenderText(t *testing.T) {

	r, err := NewRenderer("text")
	require.NoError(t, err)
	items := testItems()

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, testSummary(items), items))
	out := buf.String()

	assert.Contains(t, out, ">zeta protein desc\n")
	assert.Contains(t, out, "Tail-anchored: yes")
	assert.Contains(t, out, "TMD:          (70, 90)")
	assert.Contains(t, out, strings.Repeat("A", 60)+"\n"+strings.Repeat("T", 60)+"\n")
}

func TestRenderJSON(t *testing.T) {

	r, err := NewRenderer("json")
	require.NoError(t, err)
	items := testItems()

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, testSummary(items), items))

	var got struct {
		Summary Summary
		Items   []Item
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.Summary.Total)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "alpha", got.Items[0].Identifier)
	assert.Equal(t, []classify.Segment{{Start: 70, End: 90}}, got.Items[1].Helices)
}

func TestUnknownFormat(t *testing.T) {
	_, err := NewRenderer("xml")
	assert.Error(t, err)
}

func TestRollover(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "tappm_report.tabular")
	r, err := NewRenderer("tabular")
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.NoError(t, r.WriteFile(path, 3, testSummary(nil), nil))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"tappm_report.tabular",
		"tappm_report.tabular.1",
		"tappm_report.tabular.2",
		"tappm_report.tabular.3",
	}, names)

	// No backups, file is overwritten
	path = filepath.Join(dir, "other")
	require.NoError(t, r.WriteFile(path, 0, testSummary(nil), nil))
	require.NoError(t, r.WriteFile(path, 0, testSummary(nil), nil))
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err))
}

func TestWrapPair(t *testing.T) {
	assert.Equal(t, []string{"ABC", "xyz", "DE", "uv"}, wrapPair("ABCDE", "xyzuv", 3))
}
