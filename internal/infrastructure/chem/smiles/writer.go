package smiles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/pkg/errors"
)

// Write renders a sanitized graph as canonical SMILES: the same molecule
// always produces the same string regardless of input atom order.
func Write(g *molecule.Graph) (string, error) {
	if g == nil {
		return "", errors.NullOperand("write SMILES")
	}
	if g.State() != molecule.StateSanitized {
		return "", errors.ChemistryError("canonical SMILES needs a sanitized molecule").
			WithDetail(fmt.Sprintf("state=%s", g.State()))
	}
	if g.NumAtoms() == 0 {
		return "", nil
	}
	w := newWriter(g)
	w.plan()
	w.assignDirections()
	out := w.render()
	// A ring-stereo group reads the same with every tag inverted; keep the
	// smaller spelling so symmetric traversals agree.
	for _, group := range w.ringStereoGroups() {
		for _, idx := range group {
			w.inverted[idx] = true
		}
		if alt := w.render(); alt < out {
			out = alt
			continue
		}
		for _, idx := range group {
			delete(w.inverted, idx)
		}
	}
	return out, nil
}

// Writer implements molecule.Writer.
type Writer struct{}

// Write calls the package-level Write.
func (Writer) Write(g *molecule.Graph) (string, error) { return Write(g) }

type closure struct {
	bond    *molecule.Bond
	partner int
	opening bool
}

type writer struct {
	g    *molecule.Graph
	rank map[int]int

	visited  map[int]bool
	parent   map[int]int
	children map[int][]int
	closures map[int][]*closure
	roots    []int

	// dirs holds '/' or '\' for single bonds, read in written order.
	dirs map[int]byte
	// order maps an atom to its position in the output.
	order map[int]int

	digits []bool
	open   map[int]int // bond index -> ring digit

	// inverted holds atoms whose written tetrahedral tag is flipped.
	inverted map[int]bool
}

func newWriter(g *molecule.Graph) *writer {
	ranks := g.CanonicalRanks()
	w := &writer{
		g:        g,
		rank:     make(map[int]int, len(ranks)),
		visited:  make(map[int]bool),
		parent:   make(map[int]int),
		children: make(map[int][]int),
		closures: make(map[int][]*closure),
		dirs:     make(map[int]byte),
		order:    make(map[int]int),
		open:     make(map[int]int),
		inverted: make(map[int]bool),
	}
	for i, a := range g.Atoms() {
		w.rank[a.Index] = ranks[i]
	}
	return w
}

func (w *writer) sortedNeighbors(idx int) []int {
	nbrs := w.g.Neighbors(idx)
	sort.Slice(nbrs, func(i, j int) bool { return w.rank[nbrs[i]] < w.rank[nbrs[j]] })
	return nbrs
}

// plan walks every fragment depth-first from its lowest-ranked atom,
// visiting neighbors in rank order, and records tree edges and ring
// closures.
func (w *writer) plan() {
	atoms := append([]*molecule.Atom(nil), w.g.Atoms()...)
	sort.Slice(atoms, func(i, j int) bool { return w.rank[atoms[i].Index] < w.rank[atoms[j].Index] })
	seenBond := make(map[int]bool)
	var visit func(v int)
	visit = func(v int) {
		w.visited[v] = true
		w.order[v] = len(w.order)
		for _, u := range w.sortedNeighbors(v) {
			b := w.g.BondBetween(v, u)
			if seenBond[b.Index] {
				continue
			}
			seenBond[b.Index] = true
			if w.visited[u] {
				// u is an ancestor still on the stack: u opens, v closes
				w.closures[u] = append(w.closures[u], &closure{bond: b, partner: v, opening: true})
				w.closures[v] = append(w.closures[v], &closure{bond: b, partner: u})
				continue
			}
			w.parent[u] = v
			w.children[v] = append(w.children[v], u)
			visit(u)
		}
	}
	for _, a := range atoms {
		if w.visited[a.Index] {
			continue
		}
		w.roots = append(w.roots, a.Index)
		w.parent[a.Index] = -1
		visit(a.Index)
	}
	// closings before openings; openings by partner rank
	for v, cs := range w.closures {
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].opening != cs[j].opening {
				return !cs[i].opening
			}
			if !cs[i].opening {
				return w.order[cs[i].partner] < w.order[cs[j].partner]
			}
			return w.rank[cs[i].partner] < w.rank[cs[j].partner]
		})
		w.closures[v] = cs
	}
}

// ringStereoGroups orders the relative-configuration groups by the output
// position of their first atom.
func (w *writer) ringStereoGroups() [][]int {
	groups := w.g.RingStereoGroups()
	first := func(group []int) int {
		min := -1
		for _, idx := range group {
			if pos := w.order[idx]; min < 0 || pos < min {
				min = pos
			}
		}
		return min
	}
	sort.Slice(groups, func(i, j int) bool { return first(groups[i]) < first(groups[j]) })
	return groups
}

func flip(d byte) byte {
	if d == '/' {
		return '\\'
	}
	return '/'
}

// assignDirections places '/' and '\' on tree single bonds next to every
// double bond with a known configuration.
func (w *writer) assignDirections() {
	for _, b := range w.g.Bonds() {
		if b.Type != molecule.BondDouble || (b.Stereo != molecule.StereoCis && b.Stereo != molecule.StereoTrans) {
			continue
		}
		x, y := b.Begin, b.End
		switch {
		case w.parent[y] == x:
		case w.parent[x] == y:
			x, y = y, x
		default:
			continue // ring closure double bond
		}

		// reference on x: its parent bond when single, else its first
		// single child bond other than y
		a, aIsParent := -1, false
		if px := w.parent[x]; px >= 0 && w.g.BondBetween(px, x).Type == molecule.BondSingle {
			a, aIsParent = px, true
		} else {
			a = w.singleChild(x, y)
		}
		d := w.singleChild(y, -1)
		if a < 0 || d < 0 {
			continue
		}

		cis := b.Stereo == molecule.StereoCis
		refX, refY := b.StereoAtoms[0], b.StereoAtoms[1]
		if b.Begin != x {
			refX, refY = refY, refX
		}
		if a != refX {
			cis = !cis
		}
		if d != refY {
			cis = !cis
		}

		ab := w.g.BondBetween(a, x)
		db := w.g.BondBetween(y, d)
		// u is the direction read from the substituent towards the
		// double-bond atom; the parser reads cis when both agree.
		var ux byte
		if s, ok := w.dirs[ab.Index]; ok {
			ux = s
			if !aIsParent {
				ux = flip(s)
			}
		} else {
			ux = '/'
			if aIsParent {
				w.dirs[ab.Index] = ux
			} else {
				w.dirs[ab.Index] = flip(ux)
			}
		}
		uy := ux
		if !cis {
			uy = flip(ux)
		}
		if _, ok := w.dirs[db.Index]; !ok {
			w.dirs[db.Index] = flip(uy)
		}
	}
}

func (w *writer) singleChild(v, skip int) int {
	for _, c := range w.children[v] {
		if c == skip {
			continue
		}
		if w.g.BondBetween(v, c).Type == molecule.BondSingle {
			return c
		}
	}
	return -1
}

func (w *writer) render() string {
	var sb strings.Builder
	for i, root := range w.roots {
		if i > 0 {
			sb.WriteByte('.')
		}
		w.writeAtom(&sb, root)
	}
	return sb.String()
}

func (w *writer) writeAtom(sb *strings.Builder, v int) {
	var ringPartners []int
	var digitsOut strings.Builder
	for _, c := range w.closures[v] {
		ringPartners = append(ringPartners, c.partner)
		if c.opening {
			d := w.allocDigit()
			w.open[c.bond.Index] = d
			digitsOut.WriteString(w.bondSymbol(c.bond, v, c.partner))
			digitsOut.WriteString(digitString(d))
			continue
		}
		d := w.open[c.bond.Index]
		delete(w.open, c.bond.Index)
		w.digits[d] = false
		digitsOut.WriteString(digitString(d))
	}

	sb.WriteString(w.atomToken(v, ringPartners))
	sb.WriteString(digitsOut.String())

	kids := w.children[v]
	for i, c := range kids {
		b := w.g.BondBetween(v, c)
		if i < len(kids)-1 {
			sb.WriteByte('(')
			sb.WriteString(w.bondSymbol(b, v, c))
			w.writeAtom(sb, c)
			sb.WriteByte(')')
			continue
		}
		sb.WriteString(w.bondSymbol(b, v, c))
		w.writeAtom(sb, c)
	}
}

func (w *writer) allocDigit() int {
	for d := 1; d < len(w.digits); d++ {
		if !w.digits[d] {
			w.digits[d] = true
			return d
		}
	}
	if len(w.digits) == 0 {
		w.digits = append(w.digits, true) // digit 0 is never used
	}
	w.digits = append(w.digits, true)
	return len(w.digits) - 1
}

func digitString(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}

func (w *writer) bondSymbol(b *molecule.Bond, from, to int) string {
	fa, _ := w.g.Atom(from)
	ta, _ := w.g.Atom(to)
	switch b.Type {
	case molecule.BondDouble:
		return "="
	case molecule.BondTriple:
		return "#"
	case molecule.BondQuadruple:
		return "$"
	case molecule.BondAromatic:
		if fa.Aromatic && ta.Aromatic {
			return ""
		}
		return ":"
	}
	if d, ok := w.dirs[b.Index]; ok {
		return string(d)
	}
	if fa.Aromatic && ta.Aromatic {
		return "-"
	}
	return ""
}

func (w *writer) atomToken(v int, ringPartners []int) string {
	a, _ := w.g.Atom(v)
	sym := a.Symbol()
	if a.Aromatic {
		if _, ok := molecule.AromaticSymbol(strings.ToLower(sym)); ok {
			sym = strings.ToLower(sym)
		}
	}

	tag := molecule.ChiralNone
	if a.Chirality != molecule.ChiralNone {
		tag = w.outputChirality(a, v, ringPartners)
		if w.inverted[v] {
			switch tag {
			case molecule.ChiralCCW:
				tag = molecule.ChiralCW
			case molecule.ChiralCW:
				tag = molecule.ChiralCCW
			}
		}
	}

	if tag == molecule.ChiralNone {
		if a.AtomicNum == 0 && a.TotalHs() == 0 && a.Charge == 0 && a.Isotope == 0 && a.MapNum == 0 {
			return "*"
		}
		if h, ok := w.g.DefaultHs(v); ok && h == a.TotalHs() {
			return sym
		}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope > 0 {
		sb.WriteString(strconv.Itoa(a.Isotope))
	}
	sb.WriteString(sym)
	switch tag {
	case molecule.ChiralCCW:
		sb.WriteString("@")
	case molecule.ChiralCW:
		sb.WriteString("@@")
	}
	if h := a.TotalHs(); h > 0 {
		sb.WriteByte('H')
		if h > 1 {
			sb.WriteString(strconv.Itoa(h))
		}
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteString(strconv.Itoa(a.Charge))
	}
	if a.MapNum > 0 {
		sb.WriteString(":" + strconv.Itoa(a.MapNum))
	}
	sb.WriteByte(']')
	return sb.String()
}

// outputChirality re-expresses the stored tag for the neighbor order the
// writer produces: parent, hydrogen or lone pair, ring closures as
// written, then children.
func (w *writer) outputChirality(a *molecule.Atom, v int, ringPartners []int) molecule.Chirality {
	out := make([]int, 0, 4)
	if p := w.parent[v]; p >= 0 {
		out = append(out, p)
	}
	for _, r := range a.ChiralRefs {
		if r == molecule.ImplicitRef {
			out = append(out, molecule.ImplicitRef)
			break
		}
	}
	out = append(out, ringPartners...)
	out = append(out, w.children[v]...)
	if len(out) != len(a.ChiralRefs) {
		return molecule.ChiralNone
	}
	return molecule.ChiralityFor(a.Chirality, a.ChiralRefs, out)
}
