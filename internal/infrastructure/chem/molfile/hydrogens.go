package molfile

import "github.com/turtacn/molcore/internal/domain/molecule"

// removeHs deletes plain hydrogen atoms and adds them to the explicit
// hydrogen count of their neighbor. Isotopic, charged, query, unbonded and
// multiply bonded hydrogens, and hydrogens bound to another hydrogen, stay
// in the graph. A removed hydrogen in a chirality reference list becomes
// ImplicitRef.
func removeHs(g *molecule.Graph) {
	var doomed []int
	for _, a := range g.Atoms() {
		if a.AtomicNum != 1 || a.Isotope != 0 || a.Charge != 0 || a.Radicals != 0 || a.Query != nil || a.MapNum != 0 {
			continue
		}
		nbrs := g.Neighbors(a.Index)
		if len(nbrs) != 1 {
			continue
		}
		heavy, _ := g.Atom(nbrs[0])
		if heavy.AtomicNum == 1 {
			continue
		}
		if b := g.BondBetween(a.Index, heavy.Index); b == nil || b.Type != molecule.BondSingle {
			continue
		}
		doomed = append(doomed, a.Index)
	}
	for _, h := range doomed {
		heavyIdx := g.Neighbors(h)[0]
		heavy, _ := g.Atom(heavyIdx)
		heavy.ExplicitHs++
		for i, r := range heavy.ChiralRefs {
			if r == h {
				heavy.ChiralRefs[i] = molecule.ImplicitRef
			}
		}
		g.RemoveAtom(h)
	}
}
