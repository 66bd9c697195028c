package molecule

import (
	"sort"
)

// ─────────────────────────────────────────────────────────────────────────────
// Priority ranking
// ─────────────────────────────────────────────────────────────────────────────

// cipRanks ranks atoms by an iterative approximation of the CIP sequence
// rules: atomic number and mass first, then the sorted ranks of neighbors,
// with multiple bonds duplicating the partner and implicit hydrogens
// counting as the lowest-priority substituents. Higher rank means higher
// priority.
func cipRanks(g *Graph) []int {
	n := len(g.atoms)
	t := g.topology()
	ranks := rankByKeys(n, func(p int) []int {
		a := g.atoms[p]
		return []int{a.AtomicNum, a.Isotope}
	})
	classes := countClasses(ranks)
	for iter := 0; iter < n+1; iter++ {
		next := rankByKeys(n, func(p int) []int {
			subs := make([]int, 0, 8)
			for _, e := range t.adj[p] {
				order := g.bonds[e.bond].KekuleType().valence()
				if order < 1 {
					order = 1
				}
				for k := 0; k < order; k++ {
					subs = append(subs, ranks[e.to]+1)
				}
			}
			for h := 0; h < g.atoms[p].TotalHs(); h++ {
				subs = append(subs, 0)
			}
			sort.Sort(sort.Reverse(sort.IntSlice(subs)))
			return append([]int{ranks[p]}, subs...)
		})
		c := countClasses(next)
		ranks = next
		if c == classes {
			break
		}
		classes = c
	}
	return ranks
}

// rankByKeys assigns dense ranks (0 = smallest key) ordered
// lexicographically by the per-position key.
func rankByKeys(n int, key func(p int) []int) []int {
	keys := make([][]int, n)
	order := make([]int, n)
	for p := 0; p < n; p++ {
		keys[p] = key(p)
		order[p] = p
	}
	sort.SliceStable(order, func(i, j int) bool {
		return compareInts(keys[order[i]], keys[order[j]]) < 0
	})
	ranks := make([]int, n)
	r := 0
	for i, p := range order {
		if i > 0 && compareInts(keys[order[i-1]], keys[p]) != 0 {
			r++
		}
		ranks[p] = r
	}
	return ranks
}

func compareInts(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func countClasses(ranks []int) int {
	seen := make(map[int]struct{}, len(ranks))
	for _, r := range ranks {
		seen[r] = struct{}{}
	}
	return len(seen)
}

// permutationParity returns the parity (0 even, 1 odd) of the permutation
// taking from to to. Both slices must hold the same distinct values.
func permutationParity(from, to []int) int {
	pos := make(map[int]int, len(to))
	for i, v := range to {
		pos[v] = i
	}
	perm := make([]int, len(from))
	for i, v := range from {
		perm[i] = pos[v]
	}
	parity := 0
	for i := range perm {
		for perm[i] != i {
			j := perm[i]
			perm[i], perm[j] = perm[j], perm[i]
			parity ^= 1
		}
	}
	return parity
}

// ChiralityFor re-expresses an atom's tag relative to another ordering of the
// same references.
func ChiralityFor(tag Chirality, refs, order []int) Chirality {
	if permutationParity(refs, order) == 1 {
		return tag.invert()
	}
	return tag
}

// ─────────────────────────────────────────────────────────────────────────────
// Double-bond configuration from directional bonds
// ─────────────────────────────────────────────────────────────────────────────

// dirFrom returns the direction of single bond b read from atom from
// towards the other end.
func dirFrom(b *Bond, from int) BondDir {
	if b.Dir == DirNone || b.Begin == from {
		return b.Dir
	}
	if b.Dir == DirUp {
		return DirDown
	}
	return DirUp
}

// stereoFromBondDirs converts '/' and '\' marks around double bonds into
// cis/trans configurations, then drops the marks.
func stereoFromBondDirs(g *Graph) {
	t := g.topology()
	for bp, b := range g.bonds {
		if b.Type != BondDouble || b.Stereo != StereoNone {
			continue
		}
		ends := t.ends[bp]
		var refs [2]int
		var dirs [2]BondDir
		found := true
		for side := 0; side < 2; side++ {
			p := ends[side]
			refs[side] = -1
			for _, e := range t.adj[p] {
				if e.bond == bp {
					continue
				}
				nb := g.bonds[e.bond]
				if nb.Dir == DirNone {
					continue
				}
				// direction read from the neighbor towards the double-bond atom
				dirs[side] = dirFrom(nb, g.atoms[e.to].Index)
				refs[side] = g.atoms[e.to].Index
				break
			}
			if refs[side] == -1 {
				found = false
				break
			}
		}
		if !found {
			continue
		}
		// a/b=c/d reads as "a up-to b" and "c up-to d"; seen from the
		// substituents both marks agree for cis and differ for trans once the
		// second is reversed.
		if dirs[0] == dirs[1] {
			b.Stereo = StereoCis
		} else {
			b.Stereo = StereoTrans
		}
		b.StereoAtoms = refs
	}
	for _, b := range g.bonds {
		b.Dir = DirNone
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Stereo assignment
// ─────────────────────────────────────────────────────────────────────────────

// assignStereo labels specified tetrahedral centers R/S and double bonds
// E/Z, clears tags on atoms and bonds that cannot be stereogenic, and flags
// unspecified candidates with "?".
func assignStereo(g *Graph) {
	ranks := cipRanks(g)
	t := g.topology()
	ri := g.Rings()

	var ringCands []int
	for p, a := range g.atoms {
		a.CIP = ""
		a.ringStereo = 0
		refs, ok := tetrahedralRefs(g, p)
		if !ok {
			a.Chirality = ChiralNone
			a.ChiralRefs = nil
			continue
		}
		prio := func(idx int) int {
			if idx == ImplicitRef {
				return -1
			}
			return ranks[g.atomPos[idx]]
		}
		distinct := map[int]bool{}
		for _, r := range refs {
			distinct[prio(r)] = true
		}
		if len(distinct) != len(refs) {
			if len(distinct) == len(refs)-1 && tiedRingBranches(g, a, refs, prio) {
				ringCands = append(ringCands, p)
				continue
			}
			a.Chirality = ChiralNone
			a.ChiralRefs = nil
			continue
		}
		if a.Chirality == ChiralNone {
			if isStereoCandidate(g, p) {
				a.CIP = "?"
			}
			continue
		}
		byPriority := append([]int(nil), refs...)
		sort.SliceStable(byPriority, func(i, j int) bool {
			return prio(byPriority[i]) > prio(byPriority[j])
		})
		// lowest priority first, then descending: viewing from the lowest,
		// counterclockwise highest→lowest is R seen with the lowest away.
		target := append([]int{byPriority[len(byPriority)-1]}, byPriority[:len(byPriority)-1]...)
		if ChiralityFor(a.Chirality, a.ChiralRefs, target) == ChiralCCW {
			a.CIP = "R"
		} else {
			a.CIP = "S"
		}
	}

	resolveRingStereo(g, ringCands)

	for bp, b := range g.bonds {
		b.CIP = ""
		if b.Type != BondDouble {
			b.Stereo = StereoNone
			continue
		}
		if size := ri.minBondRingSize(bp); size > 0 && size < 8 {
			b.Stereo = StereoNone
			continue
		}
		ends := t.ends[bp]
		var high [2]int
		candidate := true
		for side := 0; side < 2; side++ {
			p := ends[side]
			var subs []int
			for _, e := range t.adj[p] {
				if e.bond != bp {
					subs = append(subs, e.to)
				}
			}
			if len(subs) == 0 || len(subs) > 2 || len(subs)+g.atoms[p].TotalHs() > 2 {
				candidate = false
				break
			}
			if len(subs) == 2 && ranks[subs[0]] == ranks[subs[1]] {
				candidate = false
				break
			}
			high[side] = subs[0]
			if len(subs) == 2 && ranks[subs[1]] > ranks[subs[0]] {
				high[side] = subs[1]
			}
		}
		if !candidate {
			b.Stereo = StereoNone
			continue
		}
		switch b.Stereo {
		case StereoCis, StereoTrans:
			cis := b.Stereo == StereoCis
			if g.atoms[high[0]].Index != b.StereoAtoms[0] {
				cis = !cis
			}
			if g.atoms[high[1]].Index != b.StereoAtoms[1] {
				cis = !cis
			}
			if cis {
				b.CIP = "Z"
			} else {
				b.CIP = "E"
			}
		default:
			b.CIP = "?"
		}
	}
}

// tetrahedralRefs returns the reference list for an atom that could carry a
// tetrahedral tag: its existing ChiralRefs when they name exactly the
// neighbors (plus at most one implicit reference), otherwise the neighbors
// in bond order followed by the hydrogen.
func tetrahedralRefs(g *Graph, p int) ([]int, bool) {
	a := g.atoms[p]
	t := g.topology()
	deg := len(t.adj[p])
	h := a.TotalHs()
	if h > 1 || deg+h < 3 || deg+h > 4 {
		return nil, false
	}
	for _, e := range t.adj[p] {
		if g.bonds[e.bond].Type == BondAromatic || g.bonds[e.bond].Type == BondTriple {
			return nil, false
		}
	}
	if a.Chirality != ChiralNone {
		want := map[int]bool{}
		for _, e := range t.adj[p] {
			want[g.atoms[e.to].Index] = true
		}
		implicit := 0
		for _, r := range a.ChiralRefs {
			if r == ImplicitRef {
				implicit++
				continue
			}
			if !want[r] {
				return nil, false
			}
			delete(want, r)
		}
		if len(want) != 0 || implicit > 1 || len(a.ChiralRefs) < 3 {
			return nil, false
		}
		if h == 1 && implicit != 1 {
			return nil, false
		}
		return a.ChiralRefs, true
	}
	refs := make([]int, 0, 4)
	for _, e := range t.adj[p] {
		refs = append(refs, g.atoms[e.to].Index)
	}
	if h == 1 || len(refs) == 3 {
		refs = append(refs, ImplicitRef)
	}
	return refs, true
}

// tiedRingBranches reports whether the single pair of equal-priority
// references of a are both ring neighbors joined to it by ring bonds.
func tiedRingBranches(g *Graph, a *Atom, refs []int, prio func(int) int) bool {
	for i := 0; i < len(refs); i++ {
		for j := i + 1; j < len(refs); j++ {
			if prio(refs[i]) != prio(refs[j]) {
				continue
			}
			for _, r := range []int{refs[i], refs[j]} {
				if r == ImplicitRef {
					return false
				}
				if b := g.BondBetween(a.Index, r); b == nil || !b.InRing {
					return false
				}
			}
			return true
		}
	}
	return false
}

// resolveRingStereo handles centers whose only tie is between two ring
// branches, as in 1,4-disubstituted cyclohexanes. Such a center is
// stereogenic only together with another one sharing a ring. When at least
// two centers of a group are tagged, the tags are kept and describe the
// relative configuration; otherwise they are cleared and the candidates are
// flagged unspecified.
func resolveRingStereo(g *Graph, cands []int) {
	if len(cands) == 0 {
		return
	}
	ri := g.Rings()
	parent := make(map[int]int, len(cands))
	for _, p := range cands {
		parent[p] = p
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	firstInRing := make(map[int]int)
	for _, p := range cands {
		for _, r := range ri.atomRings[p] {
			if q, ok := firstInRing[r]; ok {
				parent[find(p)] = find(q)
			} else {
				firstInRing[r] = p
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for _, p := range cands {
		root := find(p)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], p)
	}

	id := 0
	for _, root := range roots {
		members := groups[root]
		tagged := 0
		for _, p := range members {
			if g.atoms[p].Chirality != ChiralNone {
				tagged++
			}
		}
		keep := tagged >= 2
		if keep {
			id++
		}
		for _, p := range members {
			a := g.atoms[p]
			if keep && a.Chirality != ChiralNone {
				a.ringStereo = id
				continue
			}
			a.Chirality = ChiralNone
			a.ChiralRefs = nil
			if len(members) >= 2 && isStereoCandidate(g, p) {
				a.CIP = "?"
			}
		}
	}
}

// RingStereoGroups returns, per group, the indices of atoms whose
// tetrahedral tags encode a configuration relative to each other across a
// ring (cis/trans ring substitution) rather than an absolute one. Inverting
// every tag of one group describes the same molecule.
func (g *Graph) RingStereoGroups() [][]int {
	byID := make(map[int][]int)
	var ids []int
	for _, a := range g.atoms {
		if a.ringStereo == 0 {
			continue
		}
		if _, ok := byID[a.ringStereo]; !ok {
			ids = append(ids, a.ringStereo)
		}
		byID[a.ringStereo] = append(byID[a.ringStereo], a.Index)
	}
	out := make([][]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// isStereoCandidate restricts "?" flags to sp3 centers that commonly carry
// configuration: four-connected C, Si, Ge, Sn, quaternary N+ and P, and
// three-connected S or P with a lone pair.
func isStereoCandidate(g *Graph, p int) bool {
	a := g.atoms[p]
	t := g.topology()
	for _, e := range t.adj[p] {
		if g.bonds[e.bond].Type != BondSingle && !(a.AtomicNum == 16 && g.bonds[e.bond].Type == BondDouble) {
			return false
		}
	}
	conn := len(t.adj[p]) + a.TotalHs()
	switch a.AtomicNum {
	case 6, 14, 32, 50:
		return conn == 4
	case 7:
		return conn == 4 && a.Charge == 1
	case 15:
		return conn == 4 || conn == 3
	case 16:
		return conn == 3
	}
	return false
}
