package handlers

import (
	"net/http"
	"strings"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
	domainMol "github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
)

// MoleculeHandler serves the /api/v1/molecules endpoints. Structures that
// fail to parse are reported in a 200 response with "valid": false; only
// malformed requests and invalid parameters are HTTP errors.
type MoleculeHandler struct {
	svc     molapp.Service
	logger  logging.Logger
	maxBody int64
}

// NewMoleculeHandler creates a MoleculeHandler. maxBody bounds request
// bodies in bytes.
func NewMoleculeHandler(svc molapp.Service, logger logging.Logger, maxBody int64) *MoleculeHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MoleculeHandler{svc: svc, logger: logger.Named("http.molecule"), maxBody: maxBody}
}

// MoleculeRequest carries one structure as SMILES or molfile text.
type MoleculeRequest struct {
	Molecule string `json:"molecule"`
}

// MoleculeResponse describes a parsed structure.
type MoleculeResponse struct {
	Valid     bool   `json:"valid"`
	ID        string `json:"id,omitempty"`
	Format    string `json:"format"`
	Canonical string `json:"canonical,omitempty"`
	Formula   string `json:"formula,omitempty"`
	NumAtoms  int    `json:"num_atoms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Canonical handles POST /api/v1/molecules/canonical.
func (h *MoleculeHandler) Canonical(w http.ResponseWriter, r *http.Request) {
	var req MoleculeRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, err)
		return
	}
	mol := h.svc.ParseMolecule(req.Molecule)
	resp := MoleculeResponse{Valid: mol.IsValid(), Format: mol.Format().String()}
	if !resp.Valid {
		resp.Error = molapp.ErrorText(mol.Err())
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.ID = mol.ID()
	resp.Canonical = mol.CanonicalSMILES()
	resp.Formula = mol.Formula()
	resp.NumAtoms = mol.NumAtoms()
	writeJSON(w, http.StatusOK, resp)
}

// MatchRequest pairs a target structure with a query. The query is SMARTS
// or a molfile.
type MatchRequest struct {
	Target string `json:"target"`
	Query  string `json:"query"`
}

// MatchResponse reports the substructure test. Atoms maps query atom
// indices to target atom indices of the first embedding.
type MatchResponse struct {
	Valid       bool        `json:"valid"`
	Matches     bool        `json:"matches"`
	Atoms       map[int]int `json:"atoms,omitempty"`
	TargetError string      `json:"target_error,omitempty"`
	QueryError  string      `json:"query_error,omitempty"`
}

// Match handles POST /api/v1/molecules/match.
func (h *MoleculeHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, err)
		return
	}
	target := h.svc.ParseMolecule(req.Target)
	query := h.svc.ParseQuery(req.Query)

	resp := MatchResponse{Valid: target.IsValid() && query.IsValid()}
	if !target.IsValid() {
		resp.TargetError = molapp.ErrorText(target.Err())
	}
	if !query.IsValid() {
		resp.QueryError = molapp.ErrorText(query.Err())
	}
	if resp.Valid {
		resp.Atoms = target.MatchAtoms(query)
		resp.Matches = resp.Atoms != nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// FingerprintRequest selects the algorithm and optionally overrides the
// server's fingerprint parameters.
type FingerprintRequest struct {
	Molecule    string `json:"molecule"`
	Type        string `json:"type"`
	Radius      *int   `json:"radius,omitempty"`
	Bits        *int   `json:"bits,omitempty"`
	MinPath     *int   `json:"min_path,omitempty"`
	MaxPath     *int   `json:"max_path,omitempty"`
	BitsPerHash *int   `json:"bits_per_hash,omitempty"`
}

// FingerprintResponse carries the fingerprint as a '0'/'1' string.
type FingerprintResponse struct {
	Valid       bool   `json:"valid"`
	Type        string `json:"type"`
	Length      int    `json:"length,omitempty"`
	NumOnBits   int    `json:"num_on_bits,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Fingerprint handles POST /api/v1/molecules/fingerprint.
func (h *MoleculeHandler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	var req FingerprintRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, err)
		return
	}
	kind, err := parseKind(req.Type)
	if err != nil {
		writeAppError(w, err)
		return
	}

	defaults := h.svc.Options()
	circular := defaults.Circular
	path := defaults.Path
	override(&circular.Radius, req.Radius)
	override(&circular.Bits, req.Bits)
	override(&path.Bits, req.Bits)
	override(&path.MinPath, req.MinPath)
	override(&path.MaxPath, req.MaxPath)
	override(&path.BitsPerHash, req.BitsPerHash)
	if kind == domainMol.FingerprintCircular {
		err = circular.Validate()
	} else {
		err = path.Validate()
	}
	if err != nil {
		writeAppError(w, err)
		return
	}

	mol := h.svc.ParseMolecule(req.Molecule)
	resp := FingerprintResponse{Valid: mol.IsValid(), Type: kind.String()}
	if !resp.Valid {
		resp.Error = molapp.ErrorText(mol.Err())
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if kind == domainMol.FingerprintCircular {
		resp.Fingerprint = mol.FingerprintCircular(circular)
	} else {
		resp.Fingerprint = mol.FingerprintPath(path)
	}
	resp.Length = len(resp.Fingerprint)
	resp.NumOnBits = strings.Count(resp.Fingerprint, "1")
	writeJSON(w, http.StatusOK, resp)
}

// SimilarityRequest compares two structures.
type SimilarityRequest struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Type   string `json:"type"`
	Metric string `json:"metric"`
}

// SimilarityResponse carries the score in [0, 1].
type SimilarityResponse struct {
	Valid  bool    `json:"valid"`
	Type   string  `json:"type"`
	Metric string  `json:"metric"`
	Score  float64 `json:"score"`
	Error  string  `json:"error,omitempty"`
}

// Similarity handles POST /api/v1/molecules/similarity.
func (h *MoleculeHandler) Similarity(w http.ResponseWriter, r *http.Request) {
	var req SimilarityRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, err)
		return
	}
	kind, err := parseKind(req.Type)
	if err != nil {
		writeAppError(w, err)
		return
	}
	metric, err := domainMol.ParseSimilarityMetric(req.Metric)
	if err != nil {
		writeAppError(w, err)
		return
	}

	a := h.svc.ParseMolecule(req.A)
	b := h.svc.ParseMolecule(req.B)
	resp := SimilarityResponse{Type: kind.String(), Metric: metric.String()}
	switch {
	case !a.IsValid():
		resp.Error = "a: " + molapp.ErrorText(a.Err())
	case !b.IsValid():
		resp.Error = "b: " + molapp.ErrorText(b.Err())
	default:
		score, err := h.svc.Similarity(a, b, kind, metric)
		if err != nil {
			writeAppError(w, err)
			return
		}
		resp.Valid = true
		resp.Score = score
	}
	writeJSON(w, http.StatusOK, resp)
}

// BatchRequest carries many structures. Type is used by the fingerprint
// batch only.
type BatchRequest struct {
	Molecules []string `json:"molecules"`
	Type      string   `json:"type"`
}

// BatchResponse lists one result per input in input order.
type BatchResponse struct {
	Results []molapp.BatchResult `json:"results"`
	Valid   int                  `json:"valid"`
	Invalid int                  `json:"invalid"`
}

// BatchCanonical handles POST /api/v1/molecules/batch/canonical.
func (h *MoleculeHandler) BatchCanonical(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, err)
		return
	}
	results, err := h.svc.BatchCanonical(r.Context(), req.Molecules)
	h.writeBatch(w, r, results, err)
}

// BatchFingerprint handles POST /api/v1/molecules/batch/fingerprint.
func (h *MoleculeHandler) BatchFingerprint(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, err)
		return
	}
	kind, err := parseKind(req.Type)
	if err != nil {
		writeAppError(w, err)
		return
	}
	results, err := h.svc.BatchFingerprint(r.Context(), req.Molecules, kind)
	h.writeBatch(w, r, results, err)
}

func (h *MoleculeHandler) writeBatch(w http.ResponseWriter, r *http.Request, results []molapp.BatchResult, err error) {
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("batch failed", logging.Err(err))
		writeAppError(w, err)
		return
	}
	resp := BatchResponse{Results: results}
	for _, res := range results {
		if res.Valid {
			resp.Valid++
		} else {
			resp.Invalid++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseKind defaults an empty type to the circular fingerprint.
func parseKind(s string) (domainMol.FingerprintType, error) {
	if strings.TrimSpace(s) == "" {
		return domainMol.FingerprintCircular, nil
	}
	return domainMol.ParseFingerprintType(s)
}

func override(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
