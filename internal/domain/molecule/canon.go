package molecule

import "sort"

// CanonicalRanks returns a total order over the atoms of a sanitized graph
// that does not depend on input atom order: ranks[i] belongs to Atoms()[i]
// and all ranks are distinct. Atoms are first partitioned by local
// invariants, the partition is refined by neighbor ranks and bond orders,
// and remaining ties are broken one at a time by individualizing the member
// that yields the smallest rank certificate.
func (g *Graph) CanonicalRanks() []int {
	n := len(g.atoms)
	if n == 0 {
		return nil
	}
	t := g.topology()
	ri := g.Rings()

	ranks := rankByKeys(n, func(p int) []int {
		a := g.atoms[p]
		inRing := 0
		if len(ri.atomRings[p]) > 0 {
			inRing = 1
		}
		arom := 0
		if a.Aromatic {
			arom = 1
		}
		return []int{
			len(t.adj[p]),
			a.AtomicNum,
			a.Isotope,
			a.Charge,
			a.TotalHs(),
			arom,
			inRing,
			cipCode(a.CIP),
		}
	})
	ranks = refineRanks(g, ranks)

	for countClasses(ranks) < n {
		counts := make(map[int]int, n)
		for _, r := range ranks {
			counts[r]++
		}
		tied := -1
		for _, r := range ranks {
			if counts[r] > 1 && (tied == -1 || r < tied) {
				tied = r
			}
		}
		// Members of a tied class need not be symmetry equivalent (regular
		// graphs such as fullerenes never split by refinement alone), so
		// promote the member whose refined partition has the smallest
		// certificate.
		prev := ranks
		var best, bestCert []int
		for chosen, r := range prev {
			if r != tied {
				continue
			}
			cand := refineRanks(g, rankByKeys(n, func(p int) []int {
				k := 1
				if p == chosen {
					k = 0
				}
				return []int{prev[p], k}
			}))
			cert := rankCertificate(g, cand)
			if best == nil || compareInts(cert, bestCert) < 0 {
				best, bestCert = cand, cert
			}
		}
		ranks = best
	}
	return ranks
}

// refineRanks iterates neighbor-signature refinement until the number of
// classes stops growing.
func refineRanks(g *Graph, ranks []int) []int {
	n := len(g.atoms)
	t := g.topology()
	classes := countClasses(ranks)
	for classes < n {
		prev := ranks
		ranks = rankByKeys(n, func(p int) []int {
			type sig struct{ rank, bond int }
			sigs := make([]sig, 0, len(t.adj[p]))
			for _, e := range t.adj[p] {
				sigs = append(sigs, sig{prev[e.to], bondCode(g.bonds[e.bond])})
			}
			sort.Slice(sigs, func(i, j int) bool {
				if sigs[i].rank != sigs[j].rank {
					return sigs[i].rank < sigs[j].rank
				}
				return sigs[i].bond < sigs[j].bond
			})
			key := make([]int, 0, 1+2*len(sigs))
			key = append(key, prev[p])
			for _, s := range sigs {
				key = append(key, s.rank, s.bond)
			}
			return key
		})
		c := countClasses(ranks)
		if c == classes {
			break
		}
		classes = c
	}
	return ranks
}

// rankCertificate encodes the graph as seen through ranks: one row per atom
// in rank order listing its neighbors' ranks and bond codes. Equal
// certificates of discrete rankings mean identical labeled graphs.
func rankCertificate(g *Graph, ranks []int) []int {
	t := g.topology()
	rows := make([][]int, len(ranks))
	for p := range ranks {
		nbrs := make([][2]int, 0, len(t.adj[p]))
		for _, e := range t.adj[p] {
			nbrs = append(nbrs, [2]int{ranks[e.to], bondCode(g.bonds[e.bond])})
		}
		sort.Slice(nbrs, func(i, j int) bool {
			if nbrs[i][0] != nbrs[j][0] {
				return nbrs[i][0] < nbrs[j][0]
			}
			return nbrs[i][1] < nbrs[j][1]
		})
		row := make([]int, 0, 2+2*len(nbrs))
		row = append(row, ranks[p], len(nbrs))
		for _, nb := range nbrs {
			row = append(row, nb[0], nb[1])
		}
		rows[p] = row
	}
	sort.Slice(rows, func(i, j int) bool { return compareInts(rows[i], rows[j]) < 0 })
	var cert []int
	for _, row := range rows {
		cert = append(cert, row...)
	}
	return cert
}

func bondCode(b *Bond) int {
	code := int(b.Type) * 4
	switch b.CIP {
	case "E":
		code++
	case "Z":
		code += 2
	}
	return code
}

func cipCode(label string) int {
	switch label {
	case "R":
		return 1
	case "S":
		return 2
	}
	return 0
}
