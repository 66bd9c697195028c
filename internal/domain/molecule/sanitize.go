package molecule

import (
	"fmt"

	"github.com/turtacn/molcore/pkg/errors"
)

// Sanitize validates a Raw graph and moves it to StateSanitized. The steps
// run in a fixed order: ring perception, kekulization and valence checks
// with implicit hydrogen assignment, aromaticity perception, then
// stereochemistry. Work happens on a copy; on error g is left exactly as it
// was.
func Sanitize(g *Graph) error {
	if g == nil {
		return errors.NullOperand("sanitize")
	}
	if g.state != StateRaw {
		return errors.ChemistryError("only raw graphs can be sanitized").
			WithDetail(fmt.Sprintf("state=%s", g.state))
	}

	work := g.Clone()
	if err := sanitizeInPlace(work); err != nil {
		return err
	}

	work.state = StateSanitized
	*g = *work
	g.topo = nil
	g.rings = nil
	g.prepare()
	return nil
}

func sanitizeInPlace(g *Graph) error {
	for _, a := range g.atoms {
		if a.Query != nil {
			return errors.ChemistryError("query atom in a molecule").
				WithDetail(fmt.Sprintf("atom=%d query=%s", a.Index, a.Query))
		}
		if _, ok := ElementByNumber(a.AtomicNum); !ok {
			return errors.ChemistryError("unknown element").
				WithDetail(fmt.Sprintf("atom=%d atomic_num=%d", a.Index, a.AtomicNum))
		}
	}
	for _, b := range g.bonds {
		if b.Query != nil || b.Type == BondUnspecified {
			return errors.ChemistryError("query bond in a molecule").
				WithDetail(fmt.Sprintf("bond=%d", b.Index))
		}
	}

	ri := g.Rings()
	for bp, b := range g.bonds {
		b.InRing = ri.bondCycle[bp]
	}
	t := g.topology()
	for p, a := range g.atoms {
		if !a.Aromatic {
			continue
		}
		inRing := false
		for _, e := range t.adj[p] {
			if ri.bondCycle[e.bond] {
				inRing = true
				break
			}
		}
		if !inRing {
			return errors.ChemistryError("non-ring atom marked aromatic").
				WithDetail(fmt.Sprintf("atom=%d element=%s", a.Index, a.Symbol()))
		}
	}

	if err := kekulize(g); err != nil {
		return err
	}
	if err := assignValences(g); err != nil {
		return err
	}
	perceiveAromaticity(g)
	stereoFromBondDirs(g)
	assignStereo(g)
	return nil
}
