package parhmm

import (
	"errors"
	"testing"

	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	assert.Nil(t, Merge(nil, nil))

	a := newBatchError([]*SequenceError{{ID: "b", Err: hmmlib.ErrMalformedInput}})
	b := newBatchError([]*SequenceError{{ID: "a", Err: errors.New("boom")}})

	m := Merge(a, nil, b)
	require.NotNil(t, m)
	assert.Equal(t, []string{"a", "b"}, m.IDs())
	assert.ErrorIs(t, m, hmmlib.ErrMalformedInput)
	assert.Contains(t, m.Error(), "2 sequence(s) failed")
}
