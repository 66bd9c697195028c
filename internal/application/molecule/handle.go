package molecule

import (
	"time"

	domainMol "github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/pkg/errors"
)

// Handle is the result of parsing a molecule or a query. A handle is either
// valid and wraps an immutable graph (Sanitized or Query), or invalid and
// carries the reason. Every operation on an invalid handle returns the
// empty value of its result type.
//
// Handles are safe for concurrent use. Query handles share their graph with
// the query cache.
type Handle struct {
	id     string
	graph  *domainMol.Graph
	err    error
	format domainMol.Format
	svc    *serviceImpl
}

// IsValid reports whether the handle wraps a graph. A nil handle is invalid.
func (h *Handle) IsValid() bool { return h != nil && h.graph != nil }

// Err returns the reason an invalid handle was produced.
func (h *Handle) Err() error {
	if h == nil {
		return errors.NullOperand("nil handle")
	}
	return h.err
}

// ID is a random identifier assigned at parse time.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// State is the graph state; invalid handles report StateRaw.
func (h *Handle) State() domainMol.State {
	if !h.IsValid() {
		return domainMol.StateRaw
	}
	return h.graph.State()
}

// Format is the detected input format.
func (h *Handle) Format() domainMol.Format {
	if h == nil {
		return domainMol.FormatLineNotation
	}
	return h.format
}

// IsQuery reports whether the handle wraps a query graph.
func (h *Handle) IsQuery() bool { return h.State() == domainMol.StateQuery }

// Graph exposes the wrapped graph for read-only use, or nil.
func (h *Handle) Graph() *domainMol.Graph {
	if !h.IsValid() {
		return nil
	}
	return h.graph
}

// CanonicalSMILES renders the molecule as canonical SMILES. It returns ""
// for invalid handles and for query handles.
func (h *Handle) CanonicalSMILES() string {
	if !h.IsValid() || h.graph.State() != domainMol.StateSanitized {
		return ""
	}
	s, err := h.svc.parsers.Writer.Write(h.graph)
	if err != nil {
		return ""
	}
	return s
}

// Matches reports whether q occurs as a substructure of h. It is false when
// either handle is invalid or h is a query.
func (h *Handle) Matches(q *Handle) bool {
	if !h.IsValid() || !q.IsValid() {
		return false
	}
	ok := domainMol.Match(h.graph, q.graph)
	h.svc.metrics.RecordMatch(ok)
	return ok
}

// MatchAtoms returns the first embedding of q in h as query atom index to
// target atom index, or nil.
func (h *Handle) MatchAtoms(q *Handle) map[int]int {
	if !h.IsValid() || !q.IsValid() {
		return nil
	}
	m := domainMol.FindMatch(h.graph, q.graph)
	h.svc.metrics.RecordMatch(m != nil)
	return m
}

// FingerprintCircular returns the Morgan fingerprint as a '0'/'1' string,
// or "" for invalid handles, query handles or invalid parameters.
func (h *Handle) FingerprintCircular(opts domainMol.CircularOptions) string {
	if !h.IsValid() {
		return ""
	}
	start := time.Now()
	fp, err := domainMol.CircularFingerprint(h.graph, opts)
	if err != nil {
		return ""
	}
	h.svc.metrics.RecordFingerprint(domainMol.FingerprintCircular.String(), time.Since(start))
	return fp.BitString()
}

// FingerprintPath returns the linear path fingerprint as a '0'/'1' string,
// or "" for invalid handles, query handles or invalid parameters.
func (h *Handle) FingerprintPath(opts domainMol.PathOptions) string {
	if !h.IsValid() {
		return ""
	}
	start := time.Now()
	fp, err := domainMol.PathFingerprint(h.graph, opts)
	if err != nil {
		return ""
	}
	h.svc.metrics.RecordFingerprint(domainMol.FingerprintPath.String(), time.Since(start))
	return fp.BitString()
}

// Fingerprint computes a fingerprint of kind with the service parameters.
func (h *Handle) Fingerprint(kind domainMol.FingerprintType) (*domainMol.Fingerprint, error) {
	if !h.IsValid() {
		return nil, errors.NullOperand("fingerprint of an invalid molecule")
	}
	return h.svc.fingerprint(h, kind)
}

// Formula returns the Hill formula including implicit hydrogens, or "".
func (h *Handle) Formula() string {
	if !h.IsValid() || h.graph.State() != domainMol.StateSanitized {
		return ""
	}
	return h.graph.Formula()
}

// NumAtoms returns the number of graph atoms (heavy atoms plus any
// explicit hydrogens that were kept), or 0.
func (h *Handle) NumAtoms() int {
	if !h.IsValid() {
		return 0
	}
	return h.graph.NumAtoms()
}
