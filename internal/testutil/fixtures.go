package testutil

import (
	"fmt"
	"strings"
)

// FixtureAtom is one atom-block entry of a generated connection table.
type FixtureAtom struct {
	Symbol  string
	X, Y, Z float64
	// ChargeCode is the V2000 atom-block charge code (3 = +1, 5 = -1).
	ChargeCode int
}

// FixtureBond is one bond-block entry; From and To are 1-based.
type FixtureBond struct {
	From, To, Order, Stereo int
}

// Molfile renders a V2000 connection table with fixed-column lines and an
// "M  END" terminator. extra lines are inserted before "M  END".
func Molfile(name string, atoms []FixtureAtom, bonds []FixtureBond, extra ...string) string {
	var sb strings.Builder
	sb.WriteString(name + "\n")
	sb.WriteString("  molcore-fixture\n")
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(atoms), len(bonds))
	for _, a := range atoms {
		fmt.Fprintf(&sb, "%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0\n",
			a.X, a.Y, a.Z, a.Symbol, a.ChargeCode)
	}
	for _, b := range bonds {
		fmt.Fprintf(&sb, "%3d%3d%3d%3d\n", b.From, b.To, b.Order, b.Stereo)
	}
	for _, l := range extra {
		sb.WriteString(l + "\n")
	}
	sb.WriteString("M  END\n")
	return sb.String()
}

// EthanolMolfile is CCO with 2D coordinates.
var EthanolMolfile = Molfile("ethanol",
	[]FixtureAtom{
		{Symbol: "C", X: 0, Y: 0},
		{Symbol: "C", X: 1.299, Y: 0.75},
		{Symbol: "O", X: 2.598, Y: 0},
	},
	[]FixtureBond{{From: 1, To: 2, Order: 1}, {From: 2, To: 3, Order: 1}},
)

// PhenolMolfile is phenol drawn as a Kekulé structure.
var PhenolMolfile = Molfile("phenol",
	[]FixtureAtom{
		{Symbol: "C", X: 0, Y: 1.4},
		{Symbol: "C", X: 1.212, Y: 0.7},
		{Symbol: "C", X: 1.212, Y: -0.7},
		{Symbol: "C", X: 0, Y: -1.4},
		{Symbol: "C", X: -1.212, Y: -0.7},
		{Symbol: "C", X: -1.212, Y: 0.7},
		{Symbol: "O", X: 0, Y: 2.8},
	},
	[]FixtureBond{
		{From: 1, To: 2, Order: 2},
		{From: 2, To: 3, Order: 1},
		{From: 3, To: 4, Order: 2},
		{From: 4, To: 5, Order: 1},
		{From: 5, To: 6, Order: 2},
		{From: 6, To: 1, Order: 1},
		{From: 1, To: 7, Order: 1},
	},
)

// AcetateMolfile is the acetate anion with the charge given by M  CHG.
var AcetateMolfile = Molfile("acetate",
	[]FixtureAtom{
		{Symbol: "C", X: 0, Y: 0},
		{Symbol: "C", X: 1.299, Y: 0.75},
		{Symbol: "O", X: 2.598, Y: 0},
		{Symbol: "O", X: 1.299, Y: 2.25},
	},
	[]FixtureBond{{From: 1, To: 2, Order: 1}, {From: 2, To: 3, Order: 1}, {From: 2, To: 4, Order: 2}},
	"M  CHG  1   3  -1",
)

// Common line-notation inputs.
const (
	EthanolSMILES   = "CCO"
	PhenolSMILES    = "c1ccccc1O"
	PhenolCanonical = "Oc1ccccc1"
	AcetamideSMILES = "CC(N)=O"
	AlanineSMILES   = "C[C@@H](N)C(=O)O"
	UnclosedRing    = "c1ccccc"
	NotAMolecule    = "not a molecule at all !!"
	PhenolQuery     = "Oc(c)c"
)

// FullereneSMILES is buckminsterfullerene: 60 carbons, 12 pentagons and 20
// hexagons, every atom three-connected.
const FullereneSMILES = "c12c3c4c5c1c6c7c8c2c9c1c3c2c3c4c4c%10c5c5c6c6c7c7c%11c8c9c8c9c1c2c1c2c3c3c4c4c%10c5c5c6c6c7c7c%11c8c8c9c1c1c2c3c2c4c5c6c3c7c8c1c23"
