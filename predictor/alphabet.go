package predictor

import (
	"fmt"
	"strings"
)

// DefaultAlphabet is the set of the twenty standard amino acids, in the
// order of the emission symbols of the bundled models.
const DefaultAlphabet = "ACDEFGHIKLMNPQRSTVWY"

// MissingPolicy says what to do with residues outside the alphabet.
type MissingPolicy int

const (
	// Ignore drops unknown residues with a warning.
	Ignore MissingPolicy = iota

	// Error rejects sequences with unknown residues.
	Error
)

func (p MissingPolicy) String() string {
	if p == Error {
		return "error"
	}
	return "ignore"
}

// ParseMissingPolicy converts "ignore" or "error" to a MissingPolicy.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(s) {
	case "ignore", "":
		return Ignore, nil
	case "error":
		return Error, nil
	}
	return Ignore, fmt.Errorf("unknown missing residue policy %q", s)
}

// Alphabet maps residues to emission symbols.
type Alphabet struct {
	chars string
	code  [256]int
}

// NewAlphabet returns the alphabet in which chars[m] is symbol m.
func NewAlphabet(chars string) (*Alphabet, error) {
	if chars == "" {
		return nil, fmt.Errorf("empty alphabet")
	}
	a := &Alphabet{chars: chars}
	for i := range a.code {
		a.code[i] = -1
	}
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		if a.code[c] >= 0 {
			return nil, fmt.Errorf("residue %q appears twice in alphabet", c)
		}
		a.code[c] = i
	}
	return a, nil
}

// Len returns the number of symbols.
func (a *Alphabet) Len() int {
	return len(a.chars)
}

func (a *Alphabet) String() string {
	return a.chars
}

// Encode converts residues to symbols.  Under Ignore, unknown residues are
// dropped and returned in skipped.
func (a *Alphabet) Encode(seq []byte, policy MissingPolicy) (x []int, skipped []byte, err error) {
	x = make([]int, 0, len(seq))
	for i, c := range seq {
		v := a.code[c]
		if v < 0 {
			if policy == Error {
				return nil, nil, fmt.Errorf("invalid residue %q at position %d", c, i)
			}
			skipped = append(skipped, c)
			continue
		}
		x = append(x, v)
	}
	return x, skipped, nil
}
