package hmmlib

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Params is the human-editable parameter file format.  Emit has one row
// per symbol and one column per state.
type Params struct {
	Trans [][]float64 `json:"trans" yaml:"trans"`
	Emit  [][]float64 `json:"emit" yaml:"emit"`
	Init  []float64   `json:"init" yaml:"init"`

	// Decoder[k] is the label character of state k.
	Decoder string `json:"decoder,omitempty" yaml:"decoder,omitempty"`

	// Alphabet[m] is the residue encoded by symbol m.
	Alphabet string `json:"alphabet,omitempty" yaml:"alphabet,omitempty"`
}

// Model builds a model from the parameters.
func (p *Params) Model() (*Model, error) {
	m, err := NewModel(p.Trans, p.Emit, p.Init)
	if err != nil {
		return nil, err
	}
	if p.Decoder != "" && len(p.Decoder) < m.NState {
		return nil, malformed("decoder has %d labels for %d states", len(p.Decoder), m.NState)
	}
	if p.Alphabet != "" && len(p.Alphabet) != m.NSymbol {
		return nil, malformed("alphabet has %d symbols, emission matrix has %d", len(p.Alphabet), m.NSymbol)
	}
	return m, nil
}

// ParamsFromModel converts m to the parameter file format.  Labels of
// pruned states are dropped from decoder.
func ParamsFromModel(m *Model, decoder, alphabet string) *Params {

	p := &Params{
		Trans:    make([][]float64, m.NState),
		Emit:     make([][]float64, m.NSymbol),
		Init:     append([]float64(nil), m.Init...),
		Alphabet: alphabet,
	}
	for i := range p.Trans {
		p.Trans[i] = append([]float64(nil), m.TransRow(i)...)
	}
	for x := range p.Emit {
		p.Emit[x] = append([]float64(nil), m.emitRow(x)...)
	}

	if decoder != "" {
		var b strings.Builder
		for _, o := range m.Origin {
			if o < len(decoder) {
				b.WriteByte(decoder[o])
			}
		}
		p.Decoder = b.String()
	}

	return p
}

func isYAML(fname string) bool {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadParams reads a JSON or YAML (by extension) parameter file.
func LoadParams(fname string) (*Params, error) {

	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}

	var p Params
	if isYAML(fname) {
		err = yaml.Unmarshal(data, &p)
	} else {
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, fname, err)
	}

	return &p, nil
}

// SaveParams writes p to a JSON or YAML (by extension) file.
func SaveParams(fname string, p *Params) error {

	var data []byte
	var err error
	if isYAML(fname) {
		data, err = yaml.Marshal(p)
	} else {
		data, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(fname, data, 0o644)
}
