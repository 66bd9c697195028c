package molecule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type bondSpec struct {
	a, b int
	typ  BondType
}

// buildGraph creates a Raw graph from atomic numbers and bonds between atom
// indices.
func buildGraph(t *testing.T, atoms []int, bonds []bondSpec) *Graph {
	t.Helper()
	g := NewGraph()
	for _, z := range atoms {
		g.AddAtom(Atom{AtomicNum: z})
	}
	for _, b := range bonds {
		_, err := g.AddBond(b.a, b.b, b.typ)
		require.NoError(t, err)
	}
	return g
}

func sanitized(t *testing.T, atoms []int, bonds []bondSpec) *Graph {
	t.Helper()
	g := buildGraph(t, atoms, bonds)
	require.NoError(t, Sanitize(g))
	return g
}

// ring returns the bonds closing atoms first..first+n-1 into a ring. When
// alternate is set every other bond is double.
func ring(first, n int, alternate bool) []bondSpec {
	out := make([]bondSpec, n)
	for i := 0; i < n; i++ {
		typ := BondSingle
		if alternate && i%2 == 0 {
			typ = BondDouble
		}
		out[i] = bondSpec{first + i, first + (i+1)%n, typ}
	}
	return out
}

func repeat(z, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = z
	}
	return out
}

// ethanol is C-C-O.
func ethanol(t *testing.T) *Graph {
	return sanitized(t, []int{6, 6, 8}, []bondSpec{{0, 1, BondSingle}, {1, 2, BondSingle}})
}

// kekuleBenzene is C1=CC=CC=C1.
func kekuleBenzene(t *testing.T) *Graph {
	return sanitized(t, repeat(6, 6), ring(0, 6, true))
}

// phenol is kekulé benzene with a hydroxyl on atom 0.
func phenol(t *testing.T) *Graph {
	bonds := append(ring(0, 6, true), bondSpec{0, 6, BondSingle})
	return sanitized(t, append(repeat(6, 6), 8), bonds)
}
