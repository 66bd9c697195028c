package molecule

import (
	"fmt"
	"strings"
)

// ExprOp is the node kind of a query expression tree.
type ExprOp int

const (
	OpPrimitive ExprOp = iota
	OpNot
	// OpAnd binds tighter than OpOr. Line-notation patterns distinguish a
	// high- and a low-precedence conjunction; both evaluate as OpAnd once
	// parsed into a tree.
	OpAnd
	OpOr
)

// AtomPrimitiveKind names a single atom test.
type AtomPrimitiveKind int

const (
	AtomAny          AtomPrimitiveKind = iota // '*'
	AtomAtomicNum                             // element or #n
	AtomAromatic                              // 'a'
	AtomAliphatic                             // 'A'
	AtomTotalHs                               // Hn
	AtomDegree                                // Dn, explicit connections
	AtomConnectivity                          // Xn, connections including hydrogens
	AtomRingCount                             // Rn, number of SSSR rings
	AtomRingSize                              // rn, in an SSSR ring of size n
	AtomValence                               // vn, total valence
	AtomCharge                                // +n / -n
	AtomIsotope                               // leading mass number
	AtomInRing                                // R / r with no number
	AtomHeavy                                 // any atom but hydrogen ("A" in connection tables)
)

// AtomExpr is a boolean expression over atom primitives.
type AtomExpr struct {
	Op       ExprOp
	Kind     AtomPrimitiveKind
	Value    int
	Children []*AtomExpr
}

// AtomPrim builds a primitive test.
func AtomPrim(kind AtomPrimitiveKind, value int) *AtomExpr {
	return &AtomExpr{Op: OpPrimitive, Kind: kind, Value: value}
}

// AtomNot negates e.
func AtomNot(e *AtomExpr) *AtomExpr {
	return &AtomExpr{Op: OpNot, Children: []*AtomExpr{e}}
}

// AtomAnd joins expressions; a single operand is returned unchanged.
func AtomAnd(es ...*AtomExpr) *AtomExpr {
	if len(es) == 1 {
		return es[0]
	}
	return &AtomExpr{Op: OpAnd, Children: es}
}

// AtomOr joins alternatives; a single operand is returned unchanged.
func AtomOr(es ...*AtomExpr) *AtomExpr {
	if len(es) == 1 {
		return es[0]
	}
	return &AtomExpr{Op: OpOr, Children: es}
}

func (e *AtomExpr) String() string {
	switch e.Op {
	case OpNot:
		return "!" + e.Children[0].String()
	case OpAnd, OpOr:
		sep := "&"
		if e.Op == OpOr {
			sep = ","
		}
		parts := make([]string, len(e.Children))
		for i, c := range e.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	switch e.Kind {
	case AtomAny:
		return "*"
	case AtomAtomicNum:
		return fmt.Sprintf("#%d", e.Value)
	case AtomAromatic:
		return "a"
	case AtomAliphatic:
		return "A"
	case AtomTotalHs:
		return fmt.Sprintf("H%d", e.Value)
	case AtomDegree:
		return fmt.Sprintf("D%d", e.Value)
	case AtomConnectivity:
		return fmt.Sprintf("X%d", e.Value)
	case AtomRingCount:
		return fmt.Sprintf("R%d", e.Value)
	case AtomRingSize:
		return fmt.Sprintf("r%d", e.Value)
	case AtomValence:
		return fmt.Sprintf("v%d", e.Value)
	case AtomCharge:
		return fmt.Sprintf("%+d", e.Value)
	case AtomIsotope:
		return fmt.Sprintf("%d*", e.Value)
	case AtomInRing:
		return "R"
	case AtomHeavy:
		return "!#1"
	}
	return "?"
}

// atomView exposes the derived properties a query may test on a sanitized
// target atom.
type atomView struct {
	g   *Graph
	pos int
}

func (v atomView) atom() *Atom { return v.g.atoms[v.pos] }

func (v atomView) valence() int {
	total := v.atom().TotalHs()
	for _, e := range v.g.topology().adj[v.pos] {
		total += v.g.bonds[e.bond].effectiveValence()
	}
	return total
}

// matches evaluates e against an atom of a sanitized graph.
func (e *AtomExpr) matches(v atomView) bool {
	switch e.Op {
	case OpNot:
		return !e.Children[0].matches(v)
	case OpAnd:
		for _, c := range e.Children {
			if !c.matches(v) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range e.Children {
			if c.matches(v) {
				return true
			}
		}
		return false
	}
	a := v.atom()
	ri := v.g.Rings()
	switch e.Kind {
	case AtomAny:
		return true
	case AtomAtomicNum:
		return a.AtomicNum == e.Value
	case AtomAromatic:
		return a.Aromatic
	case AtomAliphatic:
		return !a.Aromatic
	case AtomTotalHs:
		return a.TotalHs() == e.Value
	case AtomDegree:
		return len(v.g.topology().adj[v.pos]) == e.Value
	case AtomConnectivity:
		return len(v.g.topology().adj[v.pos])+a.TotalHs() == e.Value
	case AtomRingCount:
		return len(ri.atomRings[v.pos]) == e.Value
	case AtomRingSize:
		for _, r := range ri.atomRings[v.pos] {
			if len(ri.rings[r]) == e.Value {
				return true
			}
		}
		return false
	case AtomValence:
		return v.valence() == e.Value
	case AtomCharge:
		return a.Charge == e.Value
	case AtomIsotope:
		return a.Isotope == e.Value
	case AtomInRing:
		for _, ed := range v.g.topology().adj[v.pos] {
			if ri.bondCycle[ed.bond] {
				return true
			}
		}
		return false
	case AtomHeavy:
		return a.AtomicNum != 1
	}
	return false
}

// BondPrimitiveKind names a single bond test.
type BondPrimitiveKind int

const (
	BondIsAny BondPrimitiveKind = iota // '~'
	BondIsSingle
	BondIsDouble
	BondIsTriple
	BondIsAromatic
	BondIsRing // '@'
)

// BondExpr is a boolean expression over bond primitives.
type BondExpr struct {
	Op       ExprOp
	Kind     BondPrimitiveKind
	Children []*BondExpr
}

// BondPrim builds a primitive bond test.
func BondPrim(kind BondPrimitiveKind) *BondExpr {
	return &BondExpr{Op: OpPrimitive, Kind: kind}
}

// BondNot negates e.
func BondNot(e *BondExpr) *BondExpr {
	return &BondExpr{Op: OpNot, Children: []*BondExpr{e}}
}

// BondAnd joins expressions; a single operand is returned unchanged.
func BondAnd(es ...*BondExpr) *BondExpr {
	if len(es) == 1 {
		return es[0]
	}
	return &BondExpr{Op: OpAnd, Children: es}
}

// BondOr joins alternatives; a single operand is returned unchanged.
func BondOr(es ...*BondExpr) *BondExpr {
	if len(es) == 1 {
		return es[0]
	}
	return &BondExpr{Op: OpOr, Children: es}
}

func (e *BondExpr) String() string {
	switch e.Op {
	case OpNot:
		return "!" + e.Children[0].String()
	case OpAnd, OpOr:
		sep := "&"
		if e.Op == OpOr {
			sep = ","
		}
		parts := make([]string, len(e.Children))
		for i, c := range e.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	switch e.Kind {
	case BondIsAny:
		return "~"
	case BondIsSingle:
		return "-"
	case BondIsDouble:
		return "="
	case BondIsTriple:
		return "#"
	case BondIsAromatic:
		return ":"
	case BondIsRing:
		return "@"
	}
	return "?"
}

// DefaultPatternBond is the implicit bond between two pattern atoms:
// single or aromatic.
func DefaultPatternBond() *BondExpr {
	return BondOr(BondPrim(BondIsSingle), BondPrim(BondIsAromatic))
}

func (e *BondExpr) matches(g *Graph, bp int) bool {
	switch e.Op {
	case OpNot:
		return !e.Children[0].matches(g, bp)
	case OpAnd:
		for _, c := range e.Children {
			if !c.matches(g, bp) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range e.Children {
			if c.matches(g, bp) {
				return true
			}
		}
		return false
	}
	b := g.bonds[bp]
	switch e.Kind {
	case BondIsAny:
		return true
	case BondIsSingle:
		return b.Type == BondSingle
	case BondIsDouble:
		return b.Type == BondDouble
	case BondIsTriple:
		return b.Type == BondTriple
	case BondIsAromatic:
		return b.Type == BondAromatic
	case BondIsRing:
		return g.Rings().bondCycle[bp]
	}
	return false
}
