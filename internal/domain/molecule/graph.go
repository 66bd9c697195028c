// Package molecule holds the molecular graph model and the chemistry that
// runs on it: sanitization (ring perception, valence, aromaticity,
// stereochemistry), canonical ranking, substructure matching and
// fingerprints. Text formats live in internal/infrastructure/chem and produce
// Raw graphs that this package sanitizes.
package molecule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/molcore/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// State is the lifecycle state of a Graph. A graph is in exactly one state.
type State int

const (
	// StateRaw is a freshly parsed graph. Derived annotations are not valid.
	StateRaw State = iota
	// StateSanitized is a chemically validated target graph.
	StateSanitized
	// StateQuery is a pattern graph. It is never sanitized.
	StateQuery
)

func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateSanitized:
		return "sanitized"
	case StateQuery:
		return "query"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BondType is the order of a bond.
type BondType int

const (
	BondUnspecified BondType = iota
	BondSingle
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

func (b BondType) String() string {
	switch b {
	case BondSingle:
		return "single"
	case BondDouble:
		return "double"
	case BondTriple:
		return "triple"
	case BondQuadruple:
		return "quadruple"
	case BondAromatic:
		return "aromatic"
	default:
		return "unspecified"
	}
}

// valence returns the integral valence contribution of a kekulé bond order.
// Aromatic bonds must be kekulized before their contribution is known.
func (b BondType) valence() int {
	switch b {
	case BondSingle:
		return 1
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondQuadruple:
		return 4
	default:
		return 0
	}
}

// BondDir marks a directional single bond ('/' or '\' in line notation),
// read from Begin towards End.
type BondDir int

const (
	DirNone BondDir = iota
	DirUp           // '/'
	DirDown         // '\'
)

// BondStereo is the configuration of a double bond relative to the pair of
// reference atoms in Bond.StereoAtoms.
type BondStereo int

const (
	StereoNone BondStereo = iota
	StereoCis
	StereoTrans
	// StereoAny means the configuration was explicitly declared unknown.
	StereoAny
)

// Chirality is a tetrahedral tag relative to Atom.ChiralRefs: looking from
// the first reference towards the center, the remaining three are arranged
// counterclockwise (ChiralCCW, '@') or clockwise (ChiralCW, '@@').
type Chirality int

const (
	ChiralNone Chirality = iota
	ChiralCCW
	ChiralCW
)

func (c Chirality) invert() Chirality {
	switch c {
	case ChiralCCW:
		return ChiralCW
	case ChiralCW:
		return ChiralCCW
	default:
		return c
	}
}

// ImplicitRef stands for an implicit hydrogen or lone pair in ChiralRefs.
const ImplicitRef = -1

// Point is an atom coordinate from a connection table.
type Point struct {
	X, Y, Z float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Atom and Bond
// ─────────────────────────────────────────────────────────────────────────────

// Atom is a vertex of the molecular graph.
type Atom struct {
	// Index is assigned by the graph at creation and never reused.
	Index     int
	AtomicNum int
	Isotope   int
	Charge    int
	// Radicals is the number of unpaired electrons declared by the input.
	Radicals int
	// ExplicitHs counts hydrogens stated by the input (bracket H counts or
	// hydrogens folded in from a connection table).
	ExplicitHs int
	// NoImplicit forbids implicit hydrogens (bracket atoms).
	NoImplicit bool
	// ImplicitHs is derived by sanitization.
	ImplicitHs int
	Aromatic   bool
	Chirality  Chirality
	// ChiralRefs lists neighbor indices in reference order, ImplicitRef for
	// an implicit hydrogen or lone pair.
	ChiralRefs []int
	// CIP is "R", "S", "?" for an unspecified stereocenter, or empty.
	CIP    string
	MapNum int
	Coords *Point
	Query  *AtomExpr

	// ringStereo groups centers whose tags are only meaningful relative to
	// each other across a ring; 0 for none.
	ringStereo int
}

// Symbol returns the element symbol, "*" for a dummy atom.
func (a *Atom) Symbol() string {
	if el, ok := ElementByNumber(a.AtomicNum); ok {
		return el.Symbol
	}
	return "*"
}

// TotalHs is the hydrogen count of a sanitized atom.
func (a *Atom) TotalHs() int {
	return a.ExplicitHs + a.ImplicitHs
}

// Bond is an edge of the molecular graph.
type Bond struct {
	Index       int
	Begin, End  int
	Type        BondType
	Dir         BondDir
	Stereo      BondStereo
	StereoAtoms [2]int
	// CIP is "E", "Z", "?" for an unspecified stereo bond, or empty.
	CIP    string
	InRing bool
	Query  *BondExpr

	// kekule keeps the alternating single/double assignment of an aromatic
	// bond after sanitization.
	kekule BondType
}

// Other returns the atom at the opposite end of b from idx.
func (b *Bond) Other(idx int) int {
	if b.Begin == idx {
		return b.End
	}
	return b.Begin
}

// Contains reports whether idx is one of b's ends.
func (b *Bond) Contains(idx int) bool {
	return b.Begin == idx || b.End == idx
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph
// ─────────────────────────────────────────────────────────────────────────────

// Graph is a molecular graph. Only Raw graphs may be mutated; Sanitized and
// Query graphs are immutable and safe for concurrent readers.
type Graph struct {
	state    State
	atoms    []*Atom
	bonds    []*Bond
	atomPos  map[int]int
	bondPos  map[int]int
	nextAtom int
	nextBond int

	topo  *topology
	rings *RingInfo
}

// NewGraph returns an empty Raw graph.
func NewGraph() *Graph {
	return &Graph{
		state:   StateRaw,
		atomPos: make(map[int]int),
		bondPos: make(map[int]int),
	}
}

// State returns the lifecycle state of g.
func (g *Graph) State() State { return g.state }

// NumAtoms returns the number of atoms (hydrogens folded into parents are
// not counted).
func (g *Graph) NumAtoms() int { return len(g.atoms) }

// NumBonds returns the number of bonds.
func (g *Graph) NumBonds() int { return len(g.bonds) }

// Atoms returns the atoms in creation order. The slice must not be modified.
func (g *Graph) Atoms() []*Atom { return g.atoms }

// Bonds returns the bonds in creation order. The slice must not be modified.
func (g *Graph) Bonds() []*Bond { return g.bonds }

// Atom returns the atom with the given stable index.
func (g *Graph) Atom(idx int) (*Atom, bool) {
	p, ok := g.atomPos[idx]
	if !ok {
		return nil, false
	}
	return g.atoms[p], true
}

// Bond returns the bond with the given stable index.
func (g *Graph) Bond(idx int) (*Bond, bool) {
	p, ok := g.bondPos[idx]
	if !ok {
		return nil, false
	}
	return g.bonds[p], true
}

func (g *Graph) mustBeRaw(op string) {
	if g.state != StateRaw {
		panic(fmt.Sprintf("molecule: %s on %s graph", op, g.state))
	}
}

// AddAtom appends a copy of a, assigns it the next stable index and returns
// the stored atom. It panics if g is not Raw.
func (g *Graph) AddAtom(a Atom) *Atom {
	g.mustBeRaw("AddAtom")
	stored := a
	stored.Index = g.nextAtom
	g.nextAtom++
	g.atomPos[stored.Index] = len(g.atoms)
	g.atoms = append(g.atoms, &stored)
	g.topo = nil
	return &stored
}

// AddBond connects two existing atoms. Self-loops and parallel bonds are
// rejected with a ParseError. It panics if g is not Raw.
func (g *Graph) AddBond(begin, end int, typ BondType) (*Bond, error) {
	g.mustBeRaw("AddBond")
	if begin == end {
		return nil, errors.ParseError("bond to self").WithDetail(fmt.Sprintf("atom=%d", begin))
	}
	if _, ok := g.atomPos[begin]; !ok {
		return nil, errors.ParseError("bond references unknown atom").WithDetail(fmt.Sprintf("atom=%d", begin))
	}
	if _, ok := g.atomPos[end]; !ok {
		return nil, errors.ParseError("bond references unknown atom").WithDetail(fmt.Sprintf("atom=%d", end))
	}
	if g.BondBetween(begin, end) != nil {
		return nil, errors.ParseError("duplicate bond").WithDetail(fmt.Sprintf("atoms=%d,%d", begin, end))
	}
	b := &Bond{Index: g.nextBond, Begin: begin, End: end, Type: typ}
	g.nextBond++
	g.bondPos[b.Index] = len(g.bonds)
	g.bonds = append(g.bonds, b)
	g.topo = nil
	return b, nil
}

// RemoveAtom deletes an atom and its incident bonds. Indices of the
// remaining atoms and bonds are unchanged and the removed index is never
// handed out again. It panics if g is not Raw.
func (g *Graph) RemoveAtom(idx int) bool {
	g.mustBeRaw("RemoveAtom")
	p, ok := g.atomPos[idx]
	if !ok {
		return false
	}
	g.atoms = append(g.atoms[:p], g.atoms[p+1:]...)
	kept := g.bonds[:0]
	for _, b := range g.bonds {
		if !b.Contains(idx) {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(g.bonds); i++ {
		g.bonds[i] = nil
	}
	g.bonds = kept
	g.reindex()
	return true
}

func (g *Graph) reindex() {
	g.atomPos = make(map[int]int, len(g.atoms))
	for i, a := range g.atoms {
		g.atomPos[a.Index] = i
	}
	g.bondPos = make(map[int]int, len(g.bonds))
	for i, b := range g.bonds {
		g.bondPos[b.Index] = i
	}
	g.topo = nil
	g.rings = nil
}

// MarkQuery freezes a Raw graph as a query pattern.
func (g *Graph) MarkQuery() {
	g.mustBeRaw("MarkQuery")
	g.state = StateQuery
	g.prepare()
}

// BondBetween returns the bond joining two atoms, or nil.
func (g *Graph) BondBetween(a, b int) *Bond {
	pa, ok := g.atomPos[a]
	if !ok {
		return nil
	}
	pb, ok := g.atomPos[b]
	if !ok {
		return nil
	}
	for _, e := range g.topology().adj[pa] {
		if e.to == pb {
			return g.bonds[e.bond]
		}
	}
	return nil
}

// Neighbors returns the indices of the atoms bonded to idx, in bond
// creation order.
func (g *Graph) Neighbors(idx int) []int {
	p, ok := g.atomPos[idx]
	if !ok {
		return nil
	}
	adj := g.topology().adj[p]
	out := make([]int, len(adj))
	for i, e := range adj {
		out[i] = g.atoms[e.to].Index
	}
	return out
}

// Degree returns the number of explicit neighbors of idx.
func (g *Graph) Degree(idx int) int {
	p, ok := g.atomPos[idx]
	if !ok {
		return 0
	}
	return len(g.topology().adj[p])
}

// Clone returns a deep copy of g in the same state.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		state:    g.state,
		atoms:    make([]*Atom, len(g.atoms)),
		bonds:    make([]*Bond, len(g.bonds)),
		nextAtom: g.nextAtom,
		nextBond: g.nextBond,
	}
	for i, a := range g.atoms {
		cp := *a
		if a.ChiralRefs != nil {
			cp.ChiralRefs = append([]int(nil), a.ChiralRefs...)
		}
		if a.Coords != nil {
			pt := *a.Coords
			cp.Coords = &pt
		}
		c.atoms[i] = &cp
	}
	for i, b := range g.bonds {
		cp := *b
		c.bonds[i] = &cp
	}
	c.reindex()
	return c
}

// Formula returns the molecular formula in Hill order (C, H, then
// alphabetical; alphabetical throughout when there is no carbon), followed
// by the net charge.
func (g *Graph) Formula() string {
	counts := map[string]int{}
	charge := 0
	for _, a := range g.atoms {
		counts[a.Symbol()]++
		if h := a.TotalHs(); h > 0 {
			counts["H"] += h
		}
		charge += a.Charge
	}
	var symbols []string
	for s := range counts {
		if s == "C" || s == "H" {
			continue
		}
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	if counts["C"] > 0 {
		symbols = append([]string{"C", "H"}, symbols...)
	} else {
		symbols = append(symbols, "H")
		sort.Strings(symbols)
	}
	var sb strings.Builder
	for _, s := range symbols {
		n := counts[s]
		if n == 0 {
			continue
		}
		sb.WriteString(s)
		if n > 1 {
			fmt.Fprintf(&sb, "%d", n)
		}
	}
	switch {
	case charge == 1:
		sb.WriteString("+")
	case charge == -1:
		sb.WriteString("-")
	case charge > 1:
		fmt.Fprintf(&sb, "+%d", charge)
	case charge < -1:
		fmt.Fprintf(&sb, "%d", charge)
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// topology: position-based adjacency shared by the algorithms
// ─────────────────────────────────────────────────────────────────────────────

type edge struct {
	to   int // atom position
	bond int // bond position
}

type topology struct {
	adj [][]edge
	// ends[bondPos] = {beginPos, endPos}
	ends [][2]int
}

func (g *Graph) topology() *topology {
	if g.topo != nil {
		return g.topo
	}
	t := &topology{
		adj:  make([][]edge, len(g.atoms)),
		ends: make([][2]int, len(g.bonds)),
	}
	for bp, b := range g.bonds {
		pa, pb := g.atomPos[b.Begin], g.atomPos[b.End]
		t.ends[bp] = [2]int{pa, pb}
		t.adj[pa] = append(t.adj[pa], edge{to: pb, bond: bp})
		t.adj[pb] = append(t.adj[pb], edge{to: pa, bond: bp})
	}
	g.topo = t
	return t
}

// prepare builds the cached topology and ring information up front so that
// concurrent readers of a frozen graph never race on lazy initialization.
func (g *Graph) prepare() {
	g.topology()
	g.Rings()
}
