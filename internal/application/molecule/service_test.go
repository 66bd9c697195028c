package molecule

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainMol "github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/internal/testutil"
	pkgerrors "github.com/turtacn/molcore/pkg/errors"
)

type countingMetrics struct {
	mu      sync.Mutex
	parses  map[string]int
	matches map[bool]int
	fps     map[string]int
	hits    int
	misses  int
	evicted int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{parses: map[string]int{}, matches: map[bool]int{}, fps: map[string]int{}}
}

func (m *countingMetrics) CacheHit()        { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) CacheMiss()       { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *countingMetrics) CacheEviction()   { m.mu.Lock(); m.evicted++; m.mu.Unlock() }
func (m *countingMetrics) CacheEntries(int) {}

func (m *countingMetrics) RecordParse(mode, format string, ok bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mode + "/" + format + "/invalid"
	if ok {
		key = mode + "/" + format + "/ok"
	}
	m.parses[key]++
}

func (m *countingMetrics) RecordMatch(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[ok]++
}

func (m *countingMetrics) RecordFingerprint(kind string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fps[kind]++
}

func newTestService(t *testing.T, opts ...ServiceOption) Service {
	t.Helper()
	svc, err := NewService(Options{}, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService_Defaults(t *testing.T) {
	svc := newTestService(t)
	o := svc.Options()
	assert.Equal(t, 3, o.QueryCacheSize)
	assert.Equal(t, 1<<20, o.MaxInputLength)
	assert.Equal(t, domainMol.DefaultCircularOptions(), o.Circular)
	assert.Equal(t, domainMol.DefaultPathOptions(), o.Path)
}

func TestNewService_InvalidFingerprintOptions(t *testing.T) {
	_, err := NewService(Options{Circular: domainMol.CircularOptions{Radius: -1, Bits: 64}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeFingerprintGenerationFailed))
}

func TestParseMolecule_Valid(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name      string
		input     string
		canonical string
		atoms     int
		formula   string
		format    domainMol.Format
	}{
		{"ethanol smiles", testutil.EthanolSMILES, "CCO", 3, "C2H6O", domainMol.FormatLineNotation},
		{"phenol aromatic smiles", testutil.PhenolSMILES, testutil.PhenolCanonical, 7, "C6H6O", domainMol.FormatLineNotation},
		{"ethanol molfile", testutil.EthanolMolfile, "CCO", 3, "C2H6O", domainMol.FormatConnectionTable},
		{"phenol kekule molfile", testutil.PhenolMolfile, testutil.PhenolCanonical, 7, "C6H6O", domainMol.FormatConnectionTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := svc.ParseMolecule(tt.input)
			require.True(t, h.IsValid(), "err: %v", h.Err())
			assert.NoError(t, h.Err())
			assert.NotEmpty(t, h.ID())
			assert.Equal(t, domainMol.StateSanitized, h.State())
			assert.Equal(t, tt.format, h.Format())
			assert.False(t, h.IsQuery())
			assert.Equal(t, tt.canonical, h.CanonicalSMILES())
			assert.Equal(t, tt.atoms, h.NumAtoms())
			assert.Equal(t, tt.formula, h.Formula())
		})
	}
}

func TestParseMolecule_ChargedMolfile(t *testing.T) {
	svc := newTestService(t)
	h := svc.ParseMolecule(testutil.AcetateMolfile)
	require.True(t, h.IsValid(), "err: %v", h.Err())
	assert.Equal(t, "C2H3O2-", h.Formula())
	assert.Contains(t, h.CanonicalSMILES(), "[O-]")
}

func TestParseMolecule_Invalid(t *testing.T) {
	svc := newTestService(t)
	missingEnd := strings.Replace(testutil.EthanolMolfile, "M  END\n", "", 1)
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"prose", testutil.NotAMolecule},
		{"unclosed ring", testutil.UnclosedRing},
		{"pentavalent carbon", "C(C)(C)(C)(C)C"},
		{"molfile without terminator", missingEnd},
		{"query feature in target", "[#6;R]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := svc.ParseMolecule(tt.input)
			assert.False(t, h.IsValid())
			assert.Error(t, h.Err())
			assert.Equal(t, "", h.CanonicalSMILES())
			assert.Equal(t, "", h.FingerprintCircular(domainMol.DefaultCircularOptions()))
			assert.Equal(t, "", h.FingerprintPath(domainMol.DefaultPathOptions()))
			assert.Equal(t, "", h.Formula())
			assert.Equal(t, 0, h.NumAtoms())
			assert.Nil(t, h.Graph())
			assert.False(t, h.Matches(svc.ParseQuery("C")))
		})
	}
}

func TestParseMolecule_MissingTerminatorIsLineNotation(t *testing.T) {
	svc := newTestService(t)
	missingEnd := strings.Replace(testutil.EthanolMolfile, "M  END\n", "", 1)
	h := svc.ParseMolecule(missingEnd)
	assert.False(t, h.IsValid())
	assert.Equal(t, domainMol.FormatLineNotation, h.Format())
	assert.True(t, pkgerrors.IsParseError(h.Err()))
}

func TestNilHandle(t *testing.T) {
	var h *Handle
	assert.False(t, h.IsValid())
	assert.Error(t, h.Err())
	assert.Equal(t, "", h.ID())
	assert.Equal(t, "", h.CanonicalSMILES())
	assert.False(t, h.Matches(h))
	assert.Nil(t, h.MatchAtoms(h))
	assert.Equal(t, "", h.FingerprintCircular(domainMol.DefaultCircularOptions()))
	_, err := h.Fingerprint(domainMol.FingerprintCircular)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeNullOperand))
}

func TestParseMolecule_MaxInputLength(t *testing.T) {
	svc, err := NewService(Options{MaxInputLength: 5})
	require.NoError(t, err)

	h := svc.ParseMolecule("CCCCCC")
	assert.False(t, h.IsValid())
	assert.True(t, pkgerrors.IsParseError(h.Err()))
	assert.True(t, svc.ParseMolecule("CCCCC").IsValid())
}

func TestCanonicalRoundTrip(t *testing.T) {
	svc := newTestService(t)
	inputs := []string{
		testutil.EthanolSMILES,
		testutil.PhenolSMILES,
		testutil.AcetamideSMILES,
		testutil.AlanineSMILES,
		"OC(=O)C",
		"C1CC1C(F)(F)F",
		"c1ccc2ccccc2c1",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			a := svc.ParseMolecule(in)
			require.True(t, a.IsValid(), "err: %v", a.Err())
			canon := a.CanonicalSMILES()
			require.NotEmpty(t, canon)

			b := svc.ParseMolecule(canon)
			require.True(t, b.IsValid(), "reparse of %q: %v", canon, b.Err())
			assert.Equal(t, canon, b.CanonicalSMILES(), "canonical form is idempotent")
			assert.Equal(t, a.Formula(), b.Formula())

			assert.True(t, a.Matches(b), "original contains reparsed")
			assert.True(t, b.Matches(a), "reparsed contains original")
		})
	}
}

func TestCanonical_IndependentOfInputOrder(t *testing.T) {
	svc := newTestService(t)
	groups := [][]string{
		{"CCO", "OCC", "C(O)C"},
		{"CC(=O)O", "OC(C)=O", "O=C(O)C"},
		{"c1ccccc1O", "Oc1ccccc1", "c1cc(O)ccc1"},
	}
	for _, group := range groups {
		want := svc.ParseMolecule(group[0]).CanonicalSMILES()
		require.NotEmpty(t, want)
		for _, in := range group[1:] {
			assert.Equal(t, want, svc.ParseMolecule(in).CanonicalSMILES(), in)
		}
	}
}

func TestCanonical_KnownForms(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, "CC(=O)O", svc.ParseMolecule("OC(C)=O").CanonicalSMILES())
	assert.Equal(t, "CCO", svc.ParseMolecule("OCC").CanonicalSMILES())
	assert.Equal(t, "Oc1ccccc1", svc.ParseMolecule("C1=CC=CC=C1O").CanonicalSMILES())
}

func TestMatches(t *testing.T) {
	svc := newTestService(t)
	phenol := svc.ParseMolecule(testutil.PhenolSMILES)
	require.True(t, phenol.IsValid())

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"phenol fragment", testutil.PhenolQuery, true},
		{"aromatic carbon", "c", true},
		{"hydroxyl on aromatic", "[OX2H]c", true},
		{"carbonyl absent", "C=O", false},
		{"nitrogen absent", "N", false},
		{"benzene ring", "c1ccccc1", true},
		{"aliphatic carbon absent", "[CX4]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := svc.ParseQuery(tt.query)
			require.True(t, q.IsValid(), "query err: %v", q.Err())
			assert.True(t, q.IsQuery())
			assert.Equal(t, tt.want, phenol.Matches(q))
		})
	}
}

func TestMatches_Reflexive(t *testing.T) {
	svc := newTestService(t)
	for _, in := range []string{"CCO", "c1ccccc1O", "CC(N)=O", "C1CCCCC1"} {
		assert.True(t, svc.ParseMolecule(in).Matches(svc.ParseQuery(in)), in)
	}
}

func TestMatches_MolfileQuery(t *testing.T) {
	svc := newTestService(t)
	q := svc.ParseQuery(testutil.EthanolMolfile)
	require.True(t, q.IsValid(), "err: %v", q.Err())
	assert.Equal(t, domainMol.StateQuery, q.State())
	assert.Equal(t, "", q.CanonicalSMILES())
	assert.True(t, svc.ParseMolecule("CCCO").Matches(q))
	assert.False(t, svc.ParseMolecule("CCC").Matches(q))
}

func TestMatches_QueryAsTargetNeverMatches(t *testing.T) {
	svc := newTestService(t)
	q := svc.ParseQuery("CC")
	assert.False(t, q.Matches(svc.ParseQuery("C")))
}

func TestMatchAtoms(t *testing.T) {
	svc := newTestService(t)
	phenol := svc.ParseMolecule("Oc1ccccc1")
	m := phenol.MatchAtoms(svc.ParseQuery("O"))
	require.Len(t, m, 1)
	for _, target := range m {
		a, ok := phenol.Graph().Atom(target)
		require.True(t, ok)
		assert.Equal(t, 8, a.AtomicNum)
	}
	assert.Nil(t, phenol.MatchAtoms(svc.ParseQuery("N")))
}

func TestParseQuery_Invalid(t *testing.T) {
	svc := newTestService(t)
	for _, in := range []string{"", "C$(CO)", "C1CC", "[C"} {
		h := svc.ParseQuery(in)
		assert.False(t, h.IsValid(), in)
		assert.Error(t, h.Err(), in)
	}
	assert.Empty(t, svc.CachedQueries())
}

func TestParseQuery_CacheBehaviour(t *testing.T) {
	metrics := newCountingMetrics()
	svc := newTestService(t, WithMetrics(metrics))

	for _, q := range []string{"C", "CC", "CCC"} {
		require.True(t, svc.ParseQuery(q).IsValid())
	}
	a := svc.ParseQuery("C")
	b := svc.ParseQuery("C")
	assert.Same(t, a.Graph(), b.Graph(), "hits share the cached graph")
	assert.NotEqual(t, a.ID(), b.ID())

	require.True(t, svc.ParseQuery("CCCC").IsValid())
	assert.Equal(t, []string{"CCC", "C", "CCCC"}, svc.CachedQueries())
	assert.Equal(t, 2, metrics.hits)
	assert.Equal(t, 4, metrics.misses)
	assert.Equal(t, 1, metrics.evicted)
	assert.Equal(t, 6, metrics.parses["query/smarts/ok"])
}

func TestParseQuery_EvictedHandleStaysValid(t *testing.T) {
	svc := newTestService(t)
	q := svc.ParseQuery("O")
	for _, s := range []string{"C", "CC", "CCC"} {
		svc.ParseQuery(s)
	}
	assert.NotContains(t, svc.CachedQueries(), "O")
	assert.True(t, svc.ParseMolecule("CCO").Matches(q))
}

func TestFingerprints(t *testing.T) {
	svc := newTestService(t)
	ethanol := svc.ParseMolecule(testutil.EthanolSMILES)
	phenol := svc.ParseMolecule(testutil.PhenolSMILES)
	require.True(t, ethanol.IsValid())
	require.True(t, phenol.IsValid())

	t.Run("circular default length", func(t *testing.T) {
		fp := phenol.FingerprintCircular(domainMol.DefaultCircularOptions())
		assert.Len(t, fp, 2048)
		assert.Contains(t, fp, "1")
		assert.Equal(t, fp, phenol.FingerprintCircular(domainMol.DefaultCircularOptions()), "deterministic")
	})
	t.Run("circular custom length", func(t *testing.T) {
		fp := phenol.FingerprintCircular(domainMol.CircularOptions{Radius: 2, Bits: 512})
		assert.Len(t, fp, 512)
	})
	t.Run("circular differs between molecules", func(t *testing.T) {
		opts := domainMol.DefaultCircularOptions()
		assert.NotEqual(t, ethanol.FingerprintCircular(opts), phenol.FingerprintCircular(opts))
	})
	t.Run("path defaults", func(t *testing.T) {
		fp := ethanol.FingerprintPath(domainMol.PathOptions{MinPath: 1, MaxPath: 6, Bits: 1024, BitsPerHash: 2})
		assert.Len(t, fp, 1024)
		assert.Contains(t, fp, "1")
	})
	t.Run("invalid parameters give empty string", func(t *testing.T) {
		assert.Equal(t, "", ethanol.FingerprintCircular(domainMol.CircularOptions{Radius: 2, Bits: 0}))
		assert.Equal(t, "", ethanol.FingerprintPath(domainMol.PathOptions{MinPath: 3, MaxPath: 2, Bits: 64, BitsPerHash: 1}))
	})
	t.Run("query handle has no fingerprint", func(t *testing.T) {
		assert.Equal(t, "", svc.ParseQuery("CCO").FingerprintCircular(domainMol.DefaultCircularOptions()))
	})
	t.Run("same structure from both formats", func(t *testing.T) {
		fromMolfile := svc.ParseMolecule(testutil.PhenolMolfile)
		opts := domainMol.DefaultCircularOptions()
		assert.Equal(t, phenol.FingerprintCircular(opts), fromMolfile.FingerprintCircular(opts))
	})
}

func TestSimilarity(t *testing.T) {
	svc := newTestService(t)
	a := svc.ParseMolecule("CCO")
	b := svc.ParseMolecule("OCC")
	c := svc.ParseMolecule("c1ccccc1")

	score, err := svc.Similarity(a, b, domainMol.FingerprintCircular, domainMol.MetricTanimoto)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, err = svc.Similarity(a, c, domainMol.FingerprintPath, domainMol.MetricDice)
	require.NoError(t, err)
	assert.Less(t, score, 1.0)

	_, err = svc.Similarity(a, svc.ParseMolecule(""), domainMol.FingerprintCircular, domainMol.MetricTanimoto)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeNullOperand))

	_, err = svc.Similarity(a, b, domainMol.FingerprintCircular, domainMol.SimilarityMetric("cosine"))
	assert.Error(t, err)

	_, err = svc.Similarity(a, b, domainMol.FingerprintType("maccs"), domainMol.MetricTanimoto)
	assert.Error(t, err)
}

func TestParseMolecule_RecoversParserPanic(t *testing.T) {
	parser := new(testutil.MockParser)
	parser.On("Parse", "boom").Run(func(mock.Arguments) { panic("corrupt state") })
	logger := testutil.NewMockLogger()

	parsers := DefaultParsers()
	parsers.LineNotation = parser
	svc := newTestService(t, WithParsers(parsers), WithLogger(logger))

	var h *Handle
	require.NotPanics(t, func() { h = svc.ParseMolecule("boom") })
	assert.False(t, h.IsValid())
	assert.True(t, pkgerrors.IsChemistryError(h.Err()))
	assert.True(t, logger.HasMessage("error", "recovered panic while processing structure"))
	parser.AssertExpectations(t)
}

func TestParseMolecule_PropagatesParserError(t *testing.T) {
	parser := new(testutil.MockParser)
	parser.On("Parse", "XYZ").Return(nil, pkgerrors.ParseError("unknown symbol"))
	metrics := newCountingMetrics()

	parsers := DefaultParsers()
	parsers.LineNotation = parser
	svc := newTestService(t, WithParsers(parsers), WithMetrics(metrics))

	h := svc.ParseMolecule("XYZ")
	assert.False(t, h.IsValid())
	assert.True(t, pkgerrors.IsParseError(h.Err()))
	assert.Equal(t, 1, metrics.parses["molecule/smiles/invalid"])
	parser.AssertExpectations(t)
}

func TestParseMolecule_NilGraphFromParser(t *testing.T) {
	parser := new(testutil.MockParser)
	parser.On("Parse", "C").Return(nil, nil)
	parsers := DefaultParsers()
	parsers.LineNotation = parser
	svc := newTestService(t, WithParsers(parsers))

	h := svc.ParseMolecule("C")
	assert.False(t, h.IsValid())
	assert.Error(t, h.Err())
}

func TestBatchCanonical(t *testing.T) {
	svc := newTestService(t)
	inputs := []string{"OCC", "", "c1ccccc1O", testutil.UnclosedRing, "CC(O)=O"}

	results, err := svc.BatchCanonical(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))

	assert.Equal(t, "CCO", results[0].Canonical)
	assert.False(t, results[1].Valid)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "Oc1ccccc1", results[2].Canonical)
	assert.False(t, results[3].Valid)
	assert.Equal(t, "CC(=O)O", results[4].Canonical)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, inputs[i], r.Input)
	}
}

func TestBatchFingerprint(t *testing.T) {
	svc := newTestService(t)
	results, err := svc.BatchFingerprint(context.Background(), []string{"CCO", "bad!!"}, domainMol.FingerprintPath)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.Len(t, results[0].Fingerprint, 1024)
	assert.Positive(t, results[0].NumOnBits)
	assert.False(t, results[1].Valid)

	_, err = svc.BatchFingerprint(context.Background(), []string{"CCO"}, domainMol.FingerprintType("maccs"))
	assert.Error(t, err)
}

func TestBatch_Cancelled(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.BatchCanonical(ctx, []string{"CCO", "CCC"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTimeout))
}

func TestBatch_TooLarge(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.BatchCanonical(context.Background(), make([]string, MaxBatchSize+1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidParam))
}

func TestConcurrentUse(t *testing.T) {
	svc := newTestService(t)
	phenol := svc.ParseMolecule(testutil.PhenolSMILES)
	require.True(t, phenol.IsValid())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := svc.ParseQuery([]string{"O", "c", "cO", "C=O"}[i%4])
			_ = phenol.Matches(q)
			assert.Equal(t, testutil.PhenolCanonical, phenol.CanonicalSMILES())
			assert.Len(t, phenol.FingerprintCircular(domainMol.DefaultCircularOptions()), 2048)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, len(svc.CachedQueries()), 3)
}
