package smarts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/internal/testutil"
	"github.com/turtacn/molcore/pkg/errors"
)

func atomExpr(t *testing.T, g *molecule.Graph, idx int) string {
	t.Helper()
	a, ok := g.Atom(idx)
	require.True(t, ok)
	require.NotNil(t, a.Query)
	return a.Query.String()
}

func TestParse_Structure(t *testing.T) {
	tests := []struct {
		in           string
		atoms, bonds int
	}{
		{testutil.PhenolQuery, 4, 3},
		{"C1CCC1", 4, 4},
		{"c1ccccc1", 6, 6},
		{"C%12CC%12", 3, 3},
		{"C.C", 2, 0},
		{"[OH]c", 2, 1},
		{"C(=O)(O)N", 4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, molecule.StateQuery, g.State())
			assert.Equal(t, tt.atoms, g.NumAtoms())
			assert.Equal(t, tt.bonds, g.NumBonds())
		})
	}
}

func TestParse_AtomExpressions(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"C", "(#6&A)"},
		{"c", "(#6&a)"},
		{"Cl", "(#17&A)"},
		{"*", "*"},
		{"a", "a"},
		{"[#7H2]", "(#7&H2)"},
		{"[C,N;!R]", "(((#6&A),(#7&A))&!R)"},
		{"[+2]", "+2"},
		{"[O--]", "((#8&A)&-2)"},
		{"[H]", "#1"},
		{"[13C]", "(13*&(#6&A))"},
		{"[D3X4]", "(D3&X4)"},
		{"[r6]", "r6"},
		{"[R0]", "!R"},
		{"[C@@H]", "((#6&A)&H1)"},
		{"[!C]", "!(#6&A)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, atomExpr(t, g, 0))
		})
	}
}

func TestParse_DisplayElementAndMap(t *testing.T) {
	g, err := Parse("[N:4]C")
	require.NoError(t, err)
	n, _ := g.Atom(0)
	assert.Equal(t, 7, n.AtomicNum)
	assert.Equal(t, 4, n.MapNum)

	g, err = Parse("[N,O]")
	require.NoError(t, err)
	a, _ := g.Atom(0)
	assert.Zero(t, a.AtomicNum)
}

func TestParse_BondExpressions(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CC", "(-,:)"},
		{"C-C", "-"},
		{"C=C", "="},
		{"C~C", "~"},
		{"C!@C", "!@"},
		{"C-,=C", "(-,=)"},
		{"C-;@C", "(-&@)"},
		{"C/C", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, err := Parse(tt.in)
			require.NoError(t, err)
			b, ok := g.Bond(0)
			require.True(t, ok)
			require.NotNil(t, b.Query)
			assert.Equal(t, tt.want, b.Query.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		"",
		"C$(CO)",
		"[$(CO)]",
		"[C",
		"[]",
		"C(",
		"C)",
		"(C)",
		"C=",
		"=C",
		"C1CC",
		"C=1CC#1",
		"[Xx]",
		"Q",
		".C",
		"C%1",
		"C=&C",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			g, err := Parse(in)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.True(t, errors.IsParseError(err), err.Error())
		})
	}
}

func TestParser_ImplementsInterface(t *testing.T) {
	var p molecule.Parser = Parser{}
	g, err := p.Parse("[OH]")
	require.NoError(t, err)
	assert.Equal(t, molecule.StateQuery, g.State())
}
