package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRings_SSSR(t *testing.T) {
	decalin := append(ring(0, 6, false),
		bondSpec{5, 6, BondSingle}, bondSpec{6, 7, BondSingle}, bondSpec{7, 8, BondSingle},
		bondSpec{8, 9, BondSingle}, bondSpec{9, 4, BondSingle})
	cubane := []bondSpec{
		{0, 1, BondSingle}, {1, 2, BondSingle}, {2, 3, BondSingle}, {3, 0, BondSingle},
		{4, 5, BondSingle}, {5, 6, BondSingle}, {6, 7, BondSingle}, {7, 4, BondSingle},
		{0, 4, BondSingle}, {1, 5, BondSingle}, {2, 6, BondSingle}, {3, 7, BondSingle},
	}
	twoRings := append(ring(0, 3, false), ring(3, 5, false)...)

	tests := []struct {
		name  string
		atoms int
		bonds []bondSpec
		sizes []int
	}{
		{"chain", 4, []bondSpec{{0, 1, BondSingle}, {1, 2, BondSingle}, {2, 3, BondSingle}}, nil},
		{"cyclohexane", 6, ring(0, 6, false), []int{6}},
		{"decalin", 10, decalin, []int{6, 6}},
		{"cubane", 8, cubane, []int{4, 4, 4, 4, 4}},
		{"disconnected rings", 8, twoRings, []int{3, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, repeat(6, tt.atoms), tt.bonds)
			ri := g.Rings()
			assert.Equal(t, len(tt.sizes), ri.NumRings())
			var sizes []int
			for _, r := range ri.AtomRings() {
				sizes = append(sizes, len(r))
			}
			assert.ElementsMatch(t, tt.sizes, sizes)
		})
	}
}

func TestRings_Membership(t *testing.T) {
	bonds := append(ring(0, 6, false),
		bondSpec{5, 6, BondSingle}, bondSpec{6, 7, BondSingle}, bondSpec{7, 8, BondSingle},
		bondSpec{8, 9, BondSingle}, bondSpec{9, 4, BondSingle},
		bondSpec{0, 10, BondSingle})
	g := buildGraph(t, repeat(6, 11), bonds)
	ri := g.Rings()

	assert.Equal(t, 2, ri.AtomRingCount(4))
	assert.Equal(t, 2, ri.AtomRingCount(5))
	assert.Equal(t, 1, ri.AtomRingCount(0))
	assert.Equal(t, 0, ri.AtomRingCount(10))
	assert.Equal(t, 0, ri.AtomRingCount(99))

	fusion := g.BondBetween(4, 5)
	assert.Equal(t, 2, ri.BondRingCount(fusion.Index))
	substituent := g.BondBetween(0, 10)
	assert.Equal(t, 0, ri.BondRingCount(substituent.Index))

	assert.True(t, ri.IsAtomInRingOfSize(0, 6))
	assert.False(t, ri.IsAtomInRingOfSize(0, 5))
	assert.Equal(t, 6, ri.MinAtomRingSize(7))
	assert.Equal(t, 0, ri.MinAtomRingSize(10))
}

func TestRings_SanitizeMarksRingBonds(t *testing.T) {
	bonds := append(ring(0, 3, false), bondSpec{0, 3, BondSingle})
	g := sanitized(t, repeat(6, 4), bonds)
	for _, b := range g.Bonds() {
		assert.Equal(t, !b.Contains(3), b.InRing, "bond %d", b.Index)
	}
}

func TestRings_RelevantCycles(t *testing.T) {
	cubane := []bondSpec{
		{0, 1, BondSingle}, {1, 2, BondSingle}, {2, 3, BondSingle}, {3, 0, BondSingle},
		{4, 5, BondSingle}, {5, 6, BondSingle}, {6, 7, BondSingle}, {7, 4, BondSingle},
		{0, 4, BondSingle}, {1, 5, BondSingle}, {2, 6, BondSingle}, {3, 7, BondSingle},
	}
	reversed := make([]bondSpec, len(cubane))
	for i, b := range cubane {
		reversed[len(cubane)-1-i] = bondSpec{7 - b.b, 7 - b.a, b.typ}
	}
	decalin := append(ring(0, 6, false),
		bondSpec{5, 6, BondSingle}, bondSpec{6, 7, BondSingle}, bondSpec{7, 8, BondSingle},
		bondSpec{8, 9, BondSingle}, bondSpec{9, 4, BondSingle})

	tests := []struct {
		name  string
		atoms int
		bonds []bondSpec
		sizes []int
	}{
		{"cubane", 8, cubane, []int{4, 4, 4, 4, 4, 4}},
		{"cubane reordered", 8, reversed, []int{4, 4, 4, 4, 4, 4}},
		{"decalin", 10, decalin, []int{6, 6}},
		{"chain", 3, []bondSpec{{0, 1, BondSingle}, {1, 2, BondSingle}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ri := buildGraph(t, repeat(6, tt.atoms), tt.bonds).Rings()
			var sizes []int
			for i, r := range ri.relevant {
				sizes = append(sizes, len(r))
				assert.Len(t, ri.relevantBonds[i], len(r))
			}
			assert.ElementsMatch(t, tt.sizes, sizes)
		})
	}
}
