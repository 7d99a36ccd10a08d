package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/davecao/tappm-cli/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModel writes a two-state model with helix and coil states.  The
// helix state prefers hydrophobic residues.
func writeModel(t *testing.T, dir, name string, stay float64) string {

	alpha := predictor.DefaultAlphabet
	emit := make([][]float64, len(alpha))
	var hsum, csum float64
	for i, c := range alpha {
		h, o := 1.0, 1.0
		if strings.ContainsRune("AILMFVW", c) {
			h = 6
		}
		emit[i] = []float64{h, o}
		hsum += h
		csum += o
	}
	for i := range emit {
		emit[i][0] /= hsum
		emit[i][1] /= csum
	}

	m, err := hmmlib.NewModel(
		[][]float64{{stay, 1 - stay}, {1 - stay, stay}},
		emit,
		[]float64{0.5, 0.5},
	)
	require.NoError(t, err)

	fname := filepath.Join(dir, name)
	require.NoError(t, hmmlib.SaveParams(fname, hmmlib.ParamsFromModel(m, "HC", alpha)))
	return fname
}

func setup(t *testing.T, fastaText string) (string, []string) {
	dir := t.TempDir()
	ta := writeModel(t, dir, "ta.yaml", 0.95)
	mp := writeModel(t, dir, "mp.json", 0.7)
	input := filepath.Join(dir, "in.fasta")
	require.NoError(t, os.WriteFile(input, []byte(fastaText), 0o644))
	args := []string{"-i", input, "-ta-model", ta, "-mp-model", mp, "-outdir", dir, "-mcpu", "2", "-log-level", "off"}
	return dir, args
}

const twoProteins = `>sp|P00001|TEST1_HUMAN first protein OS=Homo sapiens OX=9606
MSKPTQRNGSDEKPSTQRSDEKNGTPQSDKEPRSTQNGDKPESRTQLLIVAFLVAILMAVLFAIVWK
>sp|P00002|TEST2_HUMAN second protein OS=Homo sapiens OX=9606
MSTNPQRSDEKGTNPQRSDEKG
`

func TestRun(t *testing.T) {

	dir, args := setup(t, twoProteins)
	args = append(args, "-fmt", "swissprot", "-outfmt", "json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := filepath.Join(dir, "tappm_report.json")
	assert.Equal(t, out, strings.TrimSpace(stdout.String()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identifier": "TEST1_HUMAN"`)
	assert.Contains(t, string(data), `"identifier": "TEST2_HUMAN"`)
	assert.Contains(t, string(data), `"total": 2`)
}

func TestRunRollover(t *testing.T) {

	dir, args := setup(t, twoProteins)

	for i := 0; i < 3; i++ {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 0, run(context.Background(), args, &stdout, &stderr), stderr.String())
	}

	for _, name := range []string{"tappm_report.tabular", "tappm_report.tabular.1", "tappm_report.tabular.2"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunPartialFailure(t *testing.T) {

	// The second sequence has no residue of the alphabet left.
	dir, args := setup(t, twoProteins+">bad\nXXXXBBZZ\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	assert.Equal(t, 1, code)

	data, err := os.ReadFile(filepath.Join(dir, "tappm_report.tabular"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sequences: 2")
	assert.NotContains(t, string(data), "bad\t")
}

func TestRunUsage(t *testing.T) {

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"-i", "x.fasta"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-ta-model")

	_, args := setup(t, twoProteins)
	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), append(args, "-outfmt", "xml"), &stdout, &stderr))
}
