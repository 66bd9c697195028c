package molecule

// piDonor is the number of π electrons an atom contributes to a ring, or
// notCandidate when the atom breaks aromaticity.
const notCandidate = -1

// perceiveAromaticity clears input aromatic flags and re-derives them from
// the kekulé structure with the Hückel 4n+2 rule, first over single
// relevant cycles and then over pairs of fused ones. Relevant cycles rather
// than the SSSR keep the result independent of atom order.
func perceiveAromaticity(g *Graph) {
	for _, b := range g.bonds {
		if b.Type == BondAromatic {
			b.Type = b.kekule
		}
		b.kekule = BondUnspecified
	}
	for _, a := range g.atoms {
		a.Aromatic = false
	}

	ri := g.Rings()
	if len(ri.rings) == 0 {
		return
	}
	donors := make([]int, len(g.atoms))
	for p := range g.atoms {
		donors[p] = piElectrons(g, p, ri)
	}

	aromaticRing := make([]bool, len(ri.relevant))
	ringElectrons := func(atoms map[int]bool) (int, bool) {
		sum := 0
		for p := range atoms {
			if donors[p] == notCandidate {
				return 0, false
			}
			sum += donors[p]
		}
		return sum, true
	}
	huckel := func(n int) bool { return n >= 2 && (n-2)%4 == 0 }

	for id, r := range ri.relevant {
		set := make(map[int]bool, len(r))
		for _, p := range r {
			set[p] = true
		}
		if n, ok := ringElectrons(set); ok && huckel(n) {
			aromaticRing[id] = true
		}
	}

	// Fused pairs: rings sharing a bond are tested as one envelope.
	fused := make([][2]int, 0)
	for i := range ri.relevant {
		for j := i + 1; j < len(ri.relevant); j++ {
			if aromaticRing[i] && aromaticRing[j] {
				continue
			}
			if sharesBond(ri.relevantBonds[i], ri.relevantBonds[j]) {
				fused = append(fused, [2]int{i, j})
			}
		}
	}
	for _, pair := range fused {
		set := make(map[int]bool)
		for _, id := range pair {
			for _, p := range ri.relevant[id] {
				set[p] = true
			}
		}
		if n, ok := ringElectrons(set); ok && huckel(n) {
			aromaticRing[pair[0]] = true
			aromaticRing[pair[1]] = true
		}
	}

	for id, arom := range aromaticRing {
		if !arom {
			continue
		}
		for _, p := range ri.relevant[id] {
			g.atoms[p].Aromatic = true
		}
		for _, bp := range ri.relevantBonds[id] {
			b := g.bonds[bp]
			if b.Type != BondAromatic {
				b.kekule = b.Type
				b.Type = BondAromatic
			}
		}
	}
}

func sharesBond(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// piElectrons classifies an atom of a kekulé structure: one electron when it
// carries a double bond on a cycle, none (an empty p orbital) for an
// exocyclic double bond to an electronegative partner or a three-connected
// cation, two for a lone pair.
func piElectrons(g *Graph, p int, ri *RingInfo) int {
	if len(ri.atomRings[p]) == 0 {
		return notCandidate
	}
	a := g.atoms[p]
	el, ok := ElementByNumber(a.AtomicNum)
	if !ok {
		return notCandidate
	}
	if a.AtomicNum == 0 {
		// dummy atoms adapt to the ring they sit in
		return 1
	}
	if el.Outer == 0 {
		return notCandidate
	}

	t := g.topology()
	valence := a.TotalHs()
	doubles, exoDoubleNeg, exoDoubleOther := 0, 0, 0
	for _, e := range t.adj[p] {
		b := g.bonds[e.bond]
		switch b.Type {
		case BondTriple, BondQuadruple:
			return notCandidate
		case BondDouble:
			if ri.bondCycle[e.bond] {
				doubles++
			} else {
				switch g.atoms[e.to].AtomicNum {
				case 7, 8, 16, 34:
					exoDoubleNeg++
				default:
					exoDoubleOther++
				}
			}
		}
		valence += b.Type.valence()
	}
	connections := len(t.adj[p]) + a.TotalHs()

	switch {
	case doubles == 1 && exoDoubleNeg+exoDoubleOther == 0:
		return 1
	case doubles > 1:
		return notCandidate
	case exoDoubleOther > 0:
		return notCandidate
	case exoDoubleNeg == 1 && doubles == 0:
		return 0
	case exoDoubleNeg > 0:
		return notCandidate
	}

	nonBonding := el.Outer - a.Charge - valence - a.Radicals
	switch {
	case nonBonding >= 2 && connections <= 3:
		return 2
	case nonBonding == 0 && connections <= 3:
		return 0
	}
	return notCandidate
}
