package molecule

// Match reports whether query occurs as a subgraph of target. target must be
// sanitized; query may be a pattern graph or another sanitized molecule.
// Stereochemistry is not compared.
func Match(target, query *Graph) bool {
	return FindMatch(target, query) != nil
}

// FindMatch returns the first embedding of query in target as a map from
// query atom index to target atom index, or nil when there is none or the
// operands are unusable.
func FindMatch(target, query *Graph) map[int]int {
	if target == nil || query == nil {
		return nil
	}
	if target.state != StateSanitized {
		return nil
	}
	if query.state != StateQuery && query.state != StateSanitized {
		return nil
	}
	if len(query.atoms) == 0 || len(query.atoms) > len(target.atoms) {
		return nil
	}

	m := newMatcher(target, query)
	if !m.search(0) {
		return nil
	}
	out := make(map[int]int, len(query.atoms))
	for qp, tp := range m.core {
		out[query.atoms[qp].Index] = target.atoms[tp].Index
	}
	return out
}

// matcher is a VF2-style backtracking state: query atoms are visited in a
// BFS order so that, apart from the first atom of each fragment, every atom
// has an already mapped parent whose target neighbors bound the candidates.
type matcher struct {
	t, q   *Graph
	tt, qt *topology

	order  []int // query atom positions in visiting order
	parent []int // mapped query neighbor for each order slot, -1 for roots
	core   []int // query position -> target position
	used   []bool
}

func newMatcher(target, query *Graph) *matcher {
	m := &matcher{
		t:    target,
		q:    query,
		tt:   target.topology(),
		qt:   query.topology(),
		core: make([]int, len(query.atoms)),
		used: make([]bool, len(target.atoms)),
	}
	for i := range m.core {
		m.core[i] = -1
	}

	seen := make([]bool, len(query.atoms))
	for root := range query.atoms {
		if seen[root] {
			continue
		}
		seen[root] = true
		m.order = append(m.order, root)
		m.parent = append(m.parent, -1)
		for head := len(m.order) - 1; head < len(m.order); head++ {
			v := m.order[head]
			for _, e := range m.qt.adj[v] {
				if seen[e.to] {
					continue
				}
				seen[e.to] = true
				m.order = append(m.order, e.to)
				m.parent = append(m.parent, v)
			}
		}
	}
	return m
}

func (m *matcher) search(k int) bool {
	if k == len(m.order) {
		return true
	}
	qp := m.order[k]
	try := func(tp int) bool {
		if m.used[tp] || !m.feasible(qp, tp) {
			return false
		}
		m.core[qp] = tp
		m.used[tp] = true
		if m.search(k + 1) {
			return true
		}
		m.core[qp] = -1
		m.used[tp] = false
		return false
	}

	if par := m.parent[k]; par >= 0 {
		for _, e := range m.tt.adj[m.core[par]] {
			if try(e.to) {
				return true
			}
		}
		return false
	}
	for tp := range m.t.atoms {
		if try(tp) {
			return true
		}
	}
	return false
}

// feasible checks atom compatibility, degree and every bond between qp and
// an already mapped query atom.
func (m *matcher) feasible(qp, tp int) bool {
	if len(m.qt.adj[qp]) > len(m.tt.adj[tp]) {
		return false
	}
	if !m.atomsCompatible(qp, tp) {
		return false
	}
	for _, e := range m.qt.adj[qp] {
		mapped := m.core[e.to]
		if mapped < 0 {
			continue
		}
		tb := -1
		for _, te := range m.tt.adj[tp] {
			if te.to == mapped {
				tb = te.bond
				break
			}
		}
		if tb < 0 || !m.bondsCompatible(e.bond, tb) {
			return false
		}
	}
	return true
}

func (m *matcher) atomsCompatible(qp, tp int) bool {
	qa := m.q.atoms[qp]
	if qa.Query != nil {
		return qa.Query.matches(atomView{g: m.t, pos: tp})
	}
	ta := m.t.atoms[tp]
	if qa.AtomicNum != 0 && qa.AtomicNum != ta.AtomicNum {
		return false
	}
	if qa.Charge != 0 && qa.Charge != ta.Charge {
		return false
	}
	if qa.Isotope != 0 && qa.Isotope != ta.Isotope {
		return false
	}
	return true
}

func (m *matcher) bondsCompatible(qb, tb int) bool {
	q := m.q.bonds[qb]
	if q.Query != nil {
		return q.Query.matches(m.t, tb)
	}
	t := m.t.bonds[tb].Type
	switch q.Type {
	case BondUnspecified:
		return true
	case BondSingle:
		return t == BondSingle || t == BondAromatic
	case BondDouble:
		return t == BondDouble || t == BondAromatic
	default:
		return t == q.Type
	}
}
