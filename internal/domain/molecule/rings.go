package molecule

import (
	"math/bits"
	"sort"
)

// RingInfo is the ring perception result of a graph: ring membership of
// every bond and a smallest set of smallest rings (SSSR).
type RingInfo struct {
	// rings holds atom positions in cycle order; ringBonds the matching bond
	// positions (ringBonds[i][k] joins rings[i][k] and rings[i][k+1]).
	rings     [][]int
	ringBonds [][]int
	// relevant holds every cycle that is not a sum of strictly shorter
	// ones. Unlike the SSSR it does not depend on atom order.
	relevant      [][]int
	relevantBonds [][]int

	atomRings [][]int // ring ids per atom position
	bondRings [][]int // ring ids per bond position
	bondCycle []bool  // bond lies on some cycle (not a bridge)
	g         *Graph
}

// Rings returns the ring information of g, computing it on first use.
func (g *Graph) Rings() *RingInfo {
	if g.rings == nil {
		g.rings = perceiveRings(g)
	}
	return g.rings
}

// NumRings returns the size of the SSSR.
func (ri *RingInfo) NumRings() int { return len(ri.rings) }

// AtomRings returns the SSSR rings as lists of atom indices in cycle order.
func (ri *RingInfo) AtomRings() [][]int {
	out := make([][]int, len(ri.rings))
	for i, r := range ri.rings {
		out[i] = make([]int, len(r))
		for k, p := range r {
			out[i][k] = ri.g.atoms[p].Index
		}
	}
	return out
}

// AtomRingCount returns how many SSSR rings contain the atom.
func (ri *RingInfo) AtomRingCount(idx int) int {
	p, ok := ri.g.atomPos[idx]
	if !ok {
		return 0
	}
	return len(ri.atomRings[p])
}

// BondRingCount returns how many SSSR rings contain the bond.
func (ri *RingInfo) BondRingCount(idx int) int {
	p, ok := ri.g.bondPos[idx]
	if !ok {
		return 0
	}
	return len(ri.bondRings[p])
}

// IsAtomInRingOfSize reports whether an SSSR ring of exactly size atoms
// contains the atom.
func (ri *RingInfo) IsAtomInRingOfSize(idx, size int) bool {
	p, ok := ri.g.atomPos[idx]
	if !ok {
		return false
	}
	for _, r := range ri.atomRings[p] {
		if len(ri.rings[r]) == size {
			return true
		}
	}
	return false
}

// MinAtomRingSize returns the size of the smallest SSSR ring containing the
// atom, or 0.
func (ri *RingInfo) MinAtomRingSize(idx int) int {
	p, ok := ri.g.atomPos[idx]
	if !ok {
		return 0
	}
	return ri.minRingSizeAt(p)
}

func (ri *RingInfo) minRingSizeAt(p int) int {
	min := 0
	for _, r := range ri.atomRings[p] {
		if n := len(ri.rings[r]); min == 0 || n < min {
			min = n
		}
	}
	return min
}

func (ri *RingInfo) minBondRingSize(bp int) int {
	min := 0
	for _, r := range ri.bondRings[bp] {
		if n := len(ri.rings[r]); min == 0 || n < min {
			min = n
		}
	}
	return min
}

// ─────────────────────────────────────────────────────────────────────────────
// Perception
// ─────────────────────────────────────────────────────────────────────────────

func perceiveRings(g *Graph) *RingInfo {
	t := g.topology()
	n, m := len(g.atoms), len(g.bonds)
	ri := &RingInfo{
		atomRings: make([][]int, n),
		bondRings: make([][]int, m),
		g:         g,
	}
	ri.bondCycle = findCycleBonds(t, n, m)

	nRings := m - n + countComponents(t, n)
	if nRings <= 0 {
		return ri
	}

	candidates := hortonCandidates(t, n, m, ri.bondCycle)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].size < candidates[j].size
	})

	var basis []basisRow
	for _, c := range candidates {
		if len(ri.rings) == nRings {
			break
		}
		if !reduceInto(&basis, c.bonds.clone()) {
			continue
		}
		atoms, bondSeq := orderCycle(t, c.bonds)
		ri.rings = append(ri.rings, atoms)
		ri.ringBonds = append(ri.ringBonds, bondSeq)
	}

	// Relevant cycles, one size class at a time against the span of all
	// strictly shorter candidates.
	var shorter []basisRow
	for i := 0; i < len(candidates) && len(shorter) < nRings; {
		j := i
		for j < len(candidates) && candidates[j].size == candidates[i].size {
			j++
		}
		for _, c := range candidates[i:j] {
			if independentOf(shorter, c.bonds) {
				atoms, bondSeq := orderCycle(t, c.bonds)
				ri.relevant = append(ri.relevant, atoms)
				ri.relevantBonds = append(ri.relevantBonds, bondSeq)
			}
		}
		for _, c := range candidates[i:j] {
			reduceInto(&shorter, c.bonds.clone())
		}
		i = j
	}
	for id, r := range ri.rings {
		for _, p := range r {
			ri.atomRings[p] = append(ri.atomRings[p], id)
		}
		for _, bp := range ri.ringBonds[id] {
			ri.bondRings[bp] = append(ri.bondRings[bp], id)
		}
	}
	return ri
}

func countComponents(t *topology, n int) int {
	seen := make([]bool, n)
	comps := 0
	stack := make([]int, 0, n)
	for s := 0; s < n; s++ {
		if seen[s] {
			continue
		}
		comps++
		seen[s] = true
		stack = append(stack[:0], s)
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, e := range t.adj[v] {
				if !seen[e.to] {
					seen[e.to] = true
					stack = append(stack, e.to)
				}
			}
		}
	}
	return comps
}

// findCycleBonds marks every bond that is not a bridge (Tarjan low-link).
func findCycleBonds(t *topology, n, m int) []bool {
	onCycle := make([]bool, m)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	timer := 0
	var visit func(v, parentBond int)
	visit = func(v, parentBond int) {
		disc[v] = timer
		low[v] = timer
		timer++
		for _, e := range t.adj[v] {
			if e.bond == parentBond {
				continue
			}
			if disc[e.to] == -1 {
				visit(e.to, e.bond)
				if low[e.to] < low[v] {
					low[v] = low[e.to]
				}
				if low[e.to] <= disc[v] {
					onCycle[e.bond] = true
				}
			} else {
				if disc[e.to] < low[v] {
					low[v] = disc[e.to]
				}
				onCycle[e.bond] = true
			}
		}
	}
	for v := 0; v < n; v++ {
		if disc[v] == -1 {
			visit(v, -1)
		}
	}
	return onCycle
}

type cycleCandidate struct {
	bonds bitset
	size  int
}

// hortonCandidates builds, for every root r and cycle bond (x,y), the cycle
// P(r,x) + (x,y) + P(y,r) over BFS shortest paths when the two paths meet
// only at r. The set contains a minimum cycle basis.
func hortonCandidates(t *topology, n, m int, onCycle []bool) []cycleCandidate {
	seen := make(map[string]bool)
	var out []cycleCandidate
	add := func(bs bitset) {
		key := bs.key()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, cycleCandidate{bonds: bs, size: bs.count()})
	}
	parentBond := make([]int, n)
	parent := make([]int, n)
	dist := make([]int, n)
	queue := make([]int, 0, n)

	for r := 0; r < n; r++ {
		hasCycleBond := false
		for _, e := range t.adj[r] {
			if onCycle[e.bond] {
				hasCycleBond = true
				break
			}
		}
		if !hasCycleBond {
			continue
		}
		for i := range dist {
			dist[i] = -1
			parent[i] = -1
			parentBond[i] = -1
		}
		dist[r] = 0
		queue = append(queue[:0], r)
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, e := range t.adj[v] {
				if !onCycle[e.bond] || dist[e.to] != -1 {
					continue
				}
				dist[e.to] = dist[v] + 1
				parent[e.to] = v
				parentBond[e.to] = e.bond
				queue = append(queue, e.to)
			}
		}
		for bp := 0; bp < m; bp++ {
			if !onCycle[bp] {
				continue
			}
			x, y := t.ends[bp][0], t.ends[bp][1]
			if dist[x] < 0 || dist[y] < 0 || parentBond[x] == bp || parentBond[y] == bp {
				continue
			}
			pathX := pathToRoot(x, parent)
			pathY := pathToRoot(y, parent)
			if !meetOnlyAtRoot(pathX, pathY) {
				continue
			}
			bs := newBitset(m)
			bs.set(bp)
			for _, v := range pathX[:len(pathX)-1] {
				bs.set(parentBond[v])
			}
			for _, v := range pathY[:len(pathY)-1] {
				bs.set(parentBond[v])
			}
			add(bs)
		}
		// Even cycles closing at y through any two of its BFS predecessors,
		// not only through its tree parent.
		for y := 0; y < n; y++ {
			if dist[y] < 2 {
				continue
			}
			var preds []edge
			for _, e := range t.adj[y] {
				if onCycle[e.bond] && dist[e.to] == dist[y]-1 {
					preds = append(preds, e)
				}
			}
			for i := 0; i < len(preds); i++ {
				for j := i + 1; j < len(preds); j++ {
					pathP := pathToRoot(preds[i].to, parent)
					pathQ := pathToRoot(preds[j].to, parent)
					if !meetOnlyAtRoot(pathP, pathQ) {
						continue
					}
					bs := newBitset(m)
					bs.set(preds[i].bond)
					bs.set(preds[j].bond)
					for _, v := range pathP[:len(pathP)-1] {
						bs.set(parentBond[v])
					}
					for _, v := range pathQ[:len(pathQ)-1] {
						bs.set(parentBond[v])
					}
					add(bs)
				}
			}
		}
	}
	return out
}

func pathToRoot(v int, parent []int) []int {
	path := []int{v}
	for parent[v] != -1 {
		v = parent[v]
		path = append(path, v)
	}
	return path
}

func meetOnlyAtRoot(a, b []int) bool {
	in := make(map[int]bool, len(a))
	for _, v := range a[:len(a)-1] {
		in[v] = true
	}
	for _, v := range b[:len(b)-1] {
		if in[v] {
			return false
		}
	}
	return true
}

// orderCycle walks a cycle given as a bond set and returns its atoms and
// bonds in traversal order.
func orderCycle(t *topology, bs bitset) ([]int, []int) {
	var members []int
	for bp := range t.ends {
		if bs.has(bp) {
			members = append(members, bp)
		}
	}
	if len(members) == 0 {
		return nil, nil
	}
	start := t.ends[members[0]][0]
	atoms := []int{start}
	bondsSeq := []int{}
	used := make(map[int]bool, len(members))
	cur := start
	for len(bondsSeq) < len(members) {
		advanced := false
		for _, e := range t.adj[cur] {
			if bs.has(e.bond) && !used[e.bond] {
				used[e.bond] = true
				bondsSeq = append(bondsSeq, e.bond)
				cur = e.to
				if cur != start {
					atoms = append(atoms, cur)
				}
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	return atoms, bondsSeq
}

// ─────────────────────────────────────────────────────────────────────────────
// bitset over bond positions, used for GF(2) independence tests
// ─────────────────────────────────────────────────────────────────────────────

type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int)      { b[i/64] |= 1 << uint(i%64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<uint(i%64)) != 0 }

func (b bitset) clone() bitset { return append(bitset(nil), b...) }

func (b bitset) count() int {
	c := 0
	for _, w := range b {
		c += bits.OnesCount64(w)
	}
	return c
}

func (b bitset) key() string {
	buf := make([]byte, 0, len(b)*8)
	for _, w := range b {
		for k := 0; k < 8; k++ {
			buf = append(buf, byte(w>>(8*k)))
		}
	}
	return string(buf)
}

func (b bitset) empty() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

func (b bitset) lowest() int {
	for i, w := range b {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}

func (b bitset) xor(o bitset) {
	for i := range b {
		b[i] ^= o[i]
	}
}

// independentOf reports whether v lies outside the span of basis.
func independentOf(basis []basisRow, v bitset) bool {
	v = v.clone()
	for _, row := range basis {
		if v.has(row.pivot) {
			v.xor(row.vec)
		}
	}
	return !v.empty()
}

type basisRow struct {
	vec   bitset
	pivot int
}

// reduceInto eliminates v against the basis (kept in reduced echelon form:
// each pivot appears in its own row only) and appends the remainder when it
// is non-zero, reporting whether v was independent.
func reduceInto(basis *[]basisRow, v bitset) bool {
	for _, row := range *basis {
		if v.has(row.pivot) {
			v.xor(row.vec)
		}
	}
	if v.empty() {
		return false
	}
	p := v.lowest()
	for _, row := range *basis {
		if row.vec.has(p) {
			row.vec.xor(v)
		}
	}
	*basis = append(*basis, basisRow{vec: v, pivot: p})
	return true
}

func (b bitset) or(o bitset) {
	for i := range b {
		b[i] |= o[i]
	}
}

func (b bitset) equal(o bitset) bool {
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}
