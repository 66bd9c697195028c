package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
	"github.com/turtacn/molcore/internal/testutil"
)

func newTestHandler(t *testing.T) *MoleculeHandler {
	t.Helper()
	svc, err := molapp.NewService(molapp.Options{})
	require.NoError(t, err)
	return NewMoleculeHandler(svc, testutil.NewMockLogger(), 1<<20)
}

func post(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", &buf))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCanonical(t *testing.T) {
	h := newTestHandler(t)
	tests := []struct {
		name      string
		molecule  string
		valid     bool
		canonical string
		format    string
	}{
		{"smiles", "OCC", true, "CCO", "smiles"},
		{"aromatic", testutil.PhenolSMILES, true, testutil.PhenolCanonical, "smiles"},
		{"molfile", testutil.EthanolMolfile, true, "CCO", "molfile"},
		{"garbage", testutil.NotAMolecule, false, "", "smiles"},
		{"empty", "", false, "", "smiles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h.Canonical, MoleculeRequest{Molecule: tt.molecule})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			resp := decode[MoleculeResponse](t, w)
			assert.Equal(t, tt.valid, resp.Valid)
			assert.Equal(t, tt.canonical, resp.Canonical)
			assert.Equal(t, tt.format, resp.Format)
			if tt.valid {
				assert.NotEmpty(t, resp.ID)
				assert.NotEmpty(t, resp.Formula)
				assert.Empty(t, resp.Error)
			} else {
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	h := newTestHandler(t)
	endpoints := map[string]http.HandlerFunc{
		"canonical":         h.Canonical,
		"match":             h.Match,
		"fingerprint":       h.Fingerprint,
		"similarity":        h.Similarity,
		"batch canonical":   h.BatchCanonical,
		"batch fingerprint": h.BatchFingerprint,
	}
	for name, fn := range endpoints {
		t.Run(name, func(t *testing.T) {
			for _, body := range []string{"{", "", `{"molecule":5,"target":5,"a":5,"molecules":5}`, `{} {}`} {
				w := post(t, fn, body)
				assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
				resp := decode[ErrorResponse](t, w)
				assert.Equal(t, "COMMON_002", resp.Code)
			}
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	svc, err := molapp.NewService(molapp.Options{})
	require.NoError(t, err)
	h := NewMoleculeHandler(svc, nil, 32)

	w := post(t, h.Canonical, MoleculeRequest{Molecule: strings.Repeat("C", 100)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Message, "too large")
}

func TestMatch(t *testing.T) {
	h := newTestHandler(t)

	t.Run("hit", func(t *testing.T) {
		resp := decode[MatchResponse](t, post(t, h.Match, MatchRequest{Target: testutil.PhenolSMILES, Query: testutil.PhenolQuery}))
		assert.True(t, resp.Valid)
		assert.True(t, resp.Matches)
		assert.Len(t, resp.Atoms, 4)
	})
	t.Run("miss", func(t *testing.T) {
		resp := decode[MatchResponse](t, post(t, h.Match, MatchRequest{Target: "CCO", Query: "N"}))
		assert.True(t, resp.Valid)
		assert.False(t, resp.Matches)
		assert.Empty(t, resp.Atoms)
	})
	t.Run("invalid query", func(t *testing.T) {
		w := post(t, h.Match, MatchRequest{Target: "CCO", Query: "C$(CO)"})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[MatchResponse](t, w)
		assert.False(t, resp.Valid)
		assert.False(t, resp.Matches)
		assert.Contains(t, resp.QueryError, "recursive")
		assert.Empty(t, resp.TargetError)
	})
	t.Run("invalid target", func(t *testing.T) {
		resp := decode[MatchResponse](t, post(t, h.Match, MatchRequest{Target: testutil.UnclosedRing, Query: "c"}))
		assert.False(t, resp.Valid)
		assert.NotEmpty(t, resp.TargetError)
	})
}

func intPtr(v int) *int { return &v }

func TestFingerprint(t *testing.T) {
	h := newTestHandler(t)

	t.Run("circular default", func(t *testing.T) {
		resp := decode[FingerprintResponse](t, post(t, h.Fingerprint, FingerprintRequest{Molecule: "c1ccccc1O"}))
		assert.True(t, resp.Valid)
		assert.Equal(t, "circular", resp.Type)
		assert.Equal(t, 2048, resp.Length)
		assert.Len(t, resp.Fingerprint, 2048)
		assert.Equal(t, strings.Count(resp.Fingerprint, "1"), resp.NumOnBits)
		assert.Positive(t, resp.NumOnBits)
	})
	t.Run("circular 512", func(t *testing.T) {
		resp := decode[FingerprintResponse](t, post(t, h.Fingerprint, FingerprintRequest{Molecule: "c1ccccc1O", Bits: intPtr(512)}))
		assert.Equal(t, 512, resp.Length)
	})
	t.Run("path alias", func(t *testing.T) {
		resp := decode[FingerprintResponse](t, post(t, h.Fingerprint, FingerprintRequest{Molecule: "CCO", Type: "topological"}))
		assert.Equal(t, "path", resp.Type)
		assert.Equal(t, 1024, resp.Length)
	})
	t.Run("invalid molecule", func(t *testing.T) {
		w := post(t, h.Fingerprint, FingerprintRequest{Molecule: ""})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[FingerprintResponse](t, w)
		assert.False(t, resp.Valid)
		assert.Empty(t, resp.Fingerprint)
	})
	t.Run("invalid parameters", func(t *testing.T) {
		w := post(t, h.Fingerprint, FingerprintRequest{Molecule: "CCO", Type: "path", MinPath: intPtr(4), MaxPath: intPtr(2)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "MOL_007", decode[ErrorResponse](t, w).Code)
	})
	t.Run("unknown type", func(t *testing.T) {
		w := post(t, h.Fingerprint, FingerprintRequest{Molecule: "CCO", Type: "maccs"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSimilarity(t *testing.T) {
	h := newTestHandler(t)

	resp := decode[SimilarityResponse](t, post(t, h.Similarity, SimilarityRequest{A: "CCO", B: "OCC"}))
	assert.True(t, resp.Valid)
	assert.Equal(t, "tanimoto", resp.Metric)
	assert.InDelta(t, 1.0, resp.Score, 1e-9)

	resp = decode[SimilarityResponse](t, post(t, h.Similarity, SimilarityRequest{A: "CCO", B: "", Metric: "dice"}))
	assert.False(t, resp.Valid)
	assert.True(t, strings.HasPrefix(resp.Error, "b: "))

	w := post(t, h.Similarity, SimilarityRequest{A: "CCO", B: "CCO", Metric: "cosine"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MOL_008", decode[ErrorResponse](t, w).Code)
}

func TestBatch(t *testing.T) {
	h := newTestHandler(t)

	t.Run("canonical", func(t *testing.T) {
		w := post(t, h.BatchCanonical, BatchRequest{Molecules: []string{"OCC", "nope(", "c1ccccc1O"}})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[BatchResponse](t, w)
		require.Len(t, resp.Results, 3)
		assert.Equal(t, 2, resp.Valid)
		assert.Equal(t, 1, resp.Invalid)
		assert.Equal(t, "CCO", resp.Results[0].Canonical)
		assert.False(t, resp.Results[1].Valid)
		assert.Equal(t, testutil.PhenolCanonical, resp.Results[2].Canonical)
	})
	t.Run("fingerprint", func(t *testing.T) {
		resp := decode[BatchResponse](t, post(t, h.BatchFingerprint, BatchRequest{Molecules: []string{"CCO"}, Type: "path"}))
		require.Len(t, resp.Results, 1)
		assert.Len(t, resp.Results[0].Fingerprint, 1024)
	})
	t.Run("empty", func(t *testing.T) {
		w := post(t, h.BatchCanonical, BatchRequest{})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"results":[],"valid":0,"invalid":0}`, w.Body.String())
	})
	t.Run("too large", func(t *testing.T) {
		w := post(t, h.BatchCanonical, BatchRequest{Molecules: make([]string, molapp.MaxBatchSize+1)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "COMMON_005", resp.Code)
	assert.Equal(t, "no route for GET /api/v1/nothing", resp.Message)
}
