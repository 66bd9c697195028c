package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molcore/pkg/errors"
)

func TestGraph_AddAtomAssignsIndices(t *testing.T) {
	g := NewGraph()
	assert.Equal(t, StateRaw, g.State())

	c := g.AddAtom(Atom{AtomicNum: 6, Index: 42})
	o := g.AddAtom(Atom{AtomicNum: 8})
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, 1, o.Index)
	assert.Equal(t, 2, g.NumAtoms())

	got, ok := g.Atom(1)
	require.True(t, ok)
	assert.Equal(t, "O", got.Symbol())
	_, ok = g.Atom(7)
	assert.False(t, ok)
}

func TestGraph_AddBondErrors(t *testing.T) {
	g := buildGraph(t, []int{6, 6}, []bondSpec{{0, 1, BondSingle}})

	tests := []struct {
		name       string
		begin, end int
	}{
		{"self loop", 0, 0},
		{"unknown begin", 5, 1},
		{"unknown end", 0, 5},
		{"duplicate", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.AddBond(tt.begin, tt.end, BondSingle)
			require.Error(t, err)
			assert.True(t, errors.IsParseError(err))
		})
	}
	assert.Equal(t, 1, g.NumBonds())
}

func TestGraph_RemoveAtomKeepsIndices(t *testing.T) {
	g := buildGraph(t, []int{6, 6, 8}, []bondSpec{{0, 1, BondSingle}, {1, 2, BondSingle}})

	assert.True(t, g.RemoveAtom(1))
	assert.False(t, g.RemoveAtom(1))
	assert.Equal(t, 2, g.NumAtoms())
	assert.Equal(t, 0, g.NumBonds())

	o, ok := g.Atom(2)
	require.True(t, ok)
	assert.Equal(t, 8, o.AtomicNum)
	assert.Equal(t, 0, g.Degree(0))

	n := g.AddAtom(Atom{AtomicNum: 7})
	assert.Equal(t, 3, n.Index, "removed indices are never reused")
	_, err := g.AddBond(2, 3, BondSingle)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, g.Neighbors(2))
}

func TestGraph_Neighborhood(t *testing.T) {
	g := buildGraph(t, []int{6, 6, 8, 7}, []bondSpec{{0, 1, BondSingle}, {1, 2, BondDouble}, {1, 3, BondSingle}})

	assert.Equal(t, []int{0, 2, 3}, g.Neighbors(1))
	assert.Equal(t, 3, g.Degree(1))
	assert.Nil(t, g.Neighbors(9))

	b := g.BondBetween(2, 1)
	require.NotNil(t, b)
	assert.Equal(t, BondDouble, b.Type)
	assert.Equal(t, 1, b.Other(2))
	assert.True(t, b.Contains(1))
	assert.Nil(t, g.BondBetween(0, 2))
}

func TestGraph_FrozenStatesPanicOnMutation(t *testing.T) {
	g := ethanol(t)
	assert.Panics(t, func() { g.AddAtom(Atom{AtomicNum: 6}) })
	assert.Panics(t, func() { _, _ = g.AddBond(0, 2, BondSingle) })
	assert.Panics(t, func() { g.RemoveAtom(0) })

	q := buildGraph(t, []int{6}, nil)
	q.MarkQuery()
	assert.Equal(t, StateQuery, q.State())
	assert.Panics(t, func() { q.MarkQuery() })
}

func TestGraph_CloneIsIndependent(t *testing.T) {
	g := buildGraph(t, []int{6, 8}, []bondSpec{{0, 1, BondSingle}})
	c := g.Clone()

	c.AddAtom(Atom{AtomicNum: 7})
	a, _ := c.Atom(0)
	a.Charge = 1

	assert.Equal(t, 2, g.NumAtoms())
	orig, _ := g.Atom(0)
	assert.Zero(t, orig.Charge)
	assert.Equal(t, StateRaw, c.State())
}

func TestGraph_Formula(t *testing.T) {
	ammonium := NewGraph()
	ammonium.AddAtom(Atom{AtomicNum: 7, Charge: 1})
	require.NoError(t, Sanitize(ammonium))

	water := NewGraph()
	water.AddAtom(Atom{AtomicNum: 8})
	require.NoError(t, Sanitize(water))

	tests := []struct {
		name string
		g    *Graph
		want string
	}{
		{"ethanol", ethanol(t), "C2H6O"},
		{"phenol", phenol(t), "C6H6O"},
		{"water", water, "H2O"},
		{"ammonium", ammonium, "H4N+"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.g.Formula())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "raw", StateRaw.String())
	assert.Equal(t, "sanitized", StateSanitized.String())
	assert.Equal(t, "query", StateQuery.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.Equal(t, "aromatic", BondAromatic.String())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Format
	}{
		{"smiles", "CCO", FormatLineNotation},
		{"empty", "", FormatLineNotation},
		{"molfile", "\n  test\n\n  0  0  0  0  0  0  0  0  0  0999 V2000\nM  END\n", FormatConnectionTable},
		{"terminator inside text", "CCM  END", FormatConnectionTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.text))
		})
	}
	assert.Equal(t, "molfile", FormatConnectionTable.String())
	assert.Equal(t, "smiles", FormatLineNotation.String())
}
