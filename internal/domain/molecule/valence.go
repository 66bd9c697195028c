package molecule

import (
	"fmt"
	"sort"

	"github.com/turtacn/molcore/pkg/errors"
)

// effectiveValence is the bond's contribution to atom valence once the
// graph has been kekulized.
func (b *Bond) effectiveValence() int {
	if b.Type == BondAromatic {
		if b.kekule != BondUnspecified {
			return b.kekule.valence()
		}
		return 1
	}
	return b.Type.valence()
}

// KekuleType returns the single/double assignment of an aromatic bond, or
// the bond type itself for non-aromatic bonds.
func (b *Bond) KekuleType() BondType {
	if b.Type == BondAromatic && b.kekule != BondUnspecified {
		return b.kekule
	}
	return b.Type
}

func smallestValenceAtLeast(vals []int, v int) (int, bool) {
	for _, allowed := range vals {
		if allowed >= v {
			return allowed, true
		}
	}
	return 0, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Kekulization
// ─────────────────────────────────────────────────────────────────────────────

type kekuleRole int

const (
	roleNone     kekuleRole = iota
	roleNeedy               // must receive exactly one double bond
	roleFlexible            // may receive one (dummy atoms)
)

// kekulize assigns alternating single/double orders to aromatic bonds by
// finding a matching that covers every aromatic atom short of one bond of
// valence. Aromatic bonds that are not on a cycle become single first.
func kekulize(g *Graph) error {
	t := g.topology()
	ri := g.Rings()

	hasAromatic := false
	for bp, b := range g.bonds {
		if b.Type != BondAromatic {
			continue
		}
		if !ri.bondCycle[bp] {
			b.Type = BondSingle
			continue
		}
		hasAromatic = true
	}
	if !hasAromatic {
		return nil
	}

	roles := make([]kekuleRole, len(g.atoms))
	for p, a := range g.atoms {
		aromaticBonds := 0
		base := a.ExplicitHs + a.Radicals
		for _, e := range t.adj[p] {
			b := g.bonds[e.bond]
			if b.Type == BondAromatic {
				aromaticBonds++
				base++
			} else {
				base += b.Type.valence()
			}
		}
		if aromaticBonds == 0 {
			continue
		}
		vals := allowedValences(a.AtomicNum, a.Charge)
		if vals == nil {
			roles[p] = roleFlexible
			continue
		}
		v, ok := smallestValenceAtLeast(vals, base)
		if !ok {
			return errors.ChemistryError("explicit valence exceeds the permitted maximum").
				WithDetail(fmt.Sprintf("atom=%d element=%s valence=%d", a.Index, a.Symbol(), base))
		}
		if v-base >= 1 {
			roles[p] = roleNeedy
		}
	}

	// Candidate double bonds per atom, restricted to aromatic bonds between
	// atoms that can take one.
	cand := make([][]edge, len(g.atoms))
	var needy []int
	for p := range g.atoms {
		if roles[p] == roleNone {
			continue
		}
		for _, e := range t.adj[p] {
			if g.bonds[e.bond].Type == BondAromatic && roles[e.to] != roleNone {
				cand[p] = append(cand[p], e)
			}
		}
		if roles[p] == roleNeedy {
			needy = append(needy, p)
		}
	}
	// Most constrained atoms first keeps the search shallow.
	sort.SliceStable(needy, func(i, j int) bool {
		return len(cand[needy[i]]) < len(cand[needy[j]])
	})

	mate := make([]int, len(g.atoms))
	for i := range mate {
		mate[i] = -1
	}
	double := make(map[int]bool)
	budget := 200000

	var solve func(k int) bool
	solve = func(k int) bool {
		for k < len(needy) && mate[needy[k]] != -1 {
			k++
		}
		if k == len(needy) {
			return true
		}
		if budget--; budget < 0 {
			return false
		}
		p := needy[k]
		for _, e := range cand[p] {
			if mate[e.to] != -1 {
				continue
			}
			mate[p], mate[e.to] = e.to, p
			double[e.bond] = true
			if solve(k + 1) {
				return true
			}
			mate[p], mate[e.to] = -1, -1
			delete(double, e.bond)
		}
		return false
	}
	if !solve(0) {
		return errors.ChemistryError("cannot kekulize aromatic system")
	}
	for bp, b := range g.bonds {
		if b.Type != BondAromatic {
			continue
		}
		if double[bp] {
			b.kekule = BondDouble
		} else {
			b.kekule = BondSingle
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Valence validation and implicit hydrogens
// ─────────────────────────────────────────────────────────────────────────────

func assignValences(g *Graph) error {
	t := g.topology()
	for p, a := range g.atoms {
		if a.ExplicitHs < 0 || a.Radicals < 0 {
			return errors.ChemistryError("negative hydrogen or radical count").
				WithDetail(fmt.Sprintf("atom=%d", a.Index))
		}
		explicit := a.ExplicitHs + a.Radicals
		for _, e := range t.adj[p] {
			explicit += g.bonds[e.bond].effectiveValence()
		}
		vals := allowedValences(a.AtomicNum, a.Charge)
		a.ImplicitHs = 0
		if vals == nil {
			continue
		}
		if a.NoImplicit {
			if explicit > vals[len(vals)-1] {
				return valenceError(a, explicit, vals)
			}
			continue
		}
		v, ok := smallestValenceAtLeast(vals, explicit)
		if !ok {
			return valenceError(a, explicit, vals)
		}
		a.ImplicitHs = v - explicit
	}
	return nil
}

func valenceError(a *Atom, explicit int, vals []int) error {
	return errors.ChemistryError("explicit valence exceeds the permitted maximum").
		WithDetail(fmt.Sprintf("atom=%d element=%s charge=%d valence=%d max=%d",
			a.Index, a.Symbol(), a.Charge, explicit, vals[len(vals)-1]))
}

// DefaultHs returns the hydrogen count an atom of a sanitized graph would
// receive if written without brackets in line notation, and whether such a
// spelling exists at all. Aromatic atoms are evaluated the way the parser
// re-reads them: an atom short of valence takes one double bond first.
func (g *Graph) DefaultHs(idx int) (int, bool) {
	p, ok := g.atomPos[idx]
	if !ok {
		return 0, false
	}
	a := g.atoms[p]
	if !IsOrganicSubset(a.AtomicNum) || a.Charge != 0 || a.Isotope != 0 || a.Radicals != 0 || a.MapNum != 0 {
		return 0, false
	}
	if a.Aromatic {
		switch a.AtomicNum {
		case 5, 6, 7, 8, 15, 16:
		default:
			return 0, false
		}
	}
	vals := allowedValences(a.AtomicNum, 0)
	base := 0
	aromaticBonds := 0
	for _, e := range g.topology().adj[p] {
		b := g.bonds[e.bond]
		if b.Type == BondAromatic {
			aromaticBonds++
			base++
		} else {
			base += b.Type.valence()
		}
	}
	v, ok := smallestValenceAtLeast(vals, base)
	if !ok {
		return 0, false
	}
	if aromaticBonds > 0 && v-base >= 1 {
		return v - base - 1, true
	}
	return v - base, true
}
