// Package molecule provides the public operations of molcore: parsing text
// into molecule and query handles, and the canonical SMILES, matching and
// fingerprint operations on them. Interfaces (CLI, HTTP) talk to this
// package only.
package molecule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/molcore/internal/config"
	domainMol "github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/internal/infrastructure/cache/querycache"
	"github.com/turtacn/molcore/internal/infrastructure/chem/molfile"
	"github.com/turtacn/molcore/internal/infrastructure/chem/smarts"
	"github.com/turtacn/molcore/internal/infrastructure/chem/smiles"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/pkg/errors"
)

// Service defines the molecule operations offered to the interfaces.
type Service interface {
	// ParseMolecule detects the format of text, parses and sanitizes it.
	// Any failure yields an invalid handle; it never panics.
	ParseMolecule(text string) *Handle
	// ParseQuery builds a query handle through the bounded query cache.
	ParseQuery(text string) *Handle
	// Similarity compares the fingerprints of two molecule handles.
	Similarity(a, b *Handle, kind domainMol.FingerprintType, metric domainMol.SimilarityMetric) (float64, error)
	// BatchCanonical canonicalizes texts concurrently, preserving order.
	BatchCanonical(ctx context.Context, texts []string) ([]BatchResult, error)
	// BatchFingerprint fingerprints texts concurrently, preserving order.
	BatchFingerprint(ctx context.Context, texts []string, kind domainMol.FingerprintType) ([]BatchResult, error)
	// Options returns the effective parameters.
	Options() Options
	// CachedQueries lists the cached query texts, least recently used first.
	CachedQueries() []string
}

// Options are the tunable parameters of the service.
type Options struct {
	QueryCacheSize   int
	MaxInputLength   int
	BatchConcurrency int
	Circular         domainMol.CircularOptions
	Path             domainMol.PathOptions
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Chem)
}

// OptionsFromConfig maps the chem configuration section.
func OptionsFromConfig(c config.ChemConfig) Options {
	return Options{
		QueryCacheSize:   c.QueryCacheSize,
		MaxInputLength:   c.MaxInputLength,
		BatchConcurrency: c.BatchConcurrency,
		Circular:         domainMol.CircularOptions{Radius: c.MorganRadius, Bits: c.MorganBits},
		Path: domainMol.PathOptions{
			MinPath:     c.PathMin,
			MaxPath:     c.PathMax,
			Bits:        c.PathBits,
			BitsPerHash: c.PathBitsPerHash,
		},
	}
}

// Parsers groups the grammar implementations the service dispatches to.
type Parsers struct {
	LineNotation    domainMol.Parser
	ConnectionTable domainMol.Parser
	Pattern         domainMol.Parser
	Writer          domainMol.Writer
}

// DefaultParsers wires the SMILES, molfile and SMARTS packages.
func DefaultParsers() Parsers {
	return Parsers{
		LineNotation:    smiles.Parser{},
		ConnectionTable: molfile.Parser{Options: molfile.DefaultOptions()},
		Pattern:         smarts.Parser{},
		Writer:          smiles.Writer{},
	}
}

// Metrics receives service events. prometheus.ChemMetrics implements it.
type Metrics interface {
	querycache.Recorder
	RecordParse(mode, format string, ok bool, duration time.Duration)
	RecordMatch(matched bool)
	RecordFingerprint(kind string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) CacheHit()                                       {}
func (nopMetrics) CacheMiss()                                      {}
func (nopMetrics) CacheEviction()                                  {}
func (nopMetrics) CacheEntries(int)                                {}
func (nopMetrics) RecordParse(string, string, bool, time.Duration) {}
func (nopMetrics) RecordMatch(bool)                                {}
func (nopMetrics) RecordFingerprint(string, time.Duration)         {}

// ServiceOption configures the service.
type ServiceOption func(*serviceImpl)

func WithLogger(l logging.Logger) ServiceOption {
	return func(s *serviceImpl) { s.logger = l }
}

func WithMetrics(m Metrics) ServiceOption {
	return func(s *serviceImpl) { s.metrics = m }
}

func WithParsers(p Parsers) ServiceOption {
	return func(s *serviceImpl) { s.parsers = p }
}

type serviceImpl struct {
	opts    Options
	parsers Parsers
	cache   *querycache.Cache
	logger  logging.Logger
	metrics Metrics
}

// NewService creates the molecule service. Zero-valued options take their
// defaults.
func NewService(opts Options, svcOpts ...ServiceOption) (Service, error) {
	def := DefaultOptions()
	if opts.QueryCacheSize == 0 {
		opts.QueryCacheSize = def.QueryCacheSize
	}
	if opts.MaxInputLength == 0 {
		opts.MaxInputLength = def.MaxInputLength
	}
	if opts.BatchConcurrency == 0 {
		opts.BatchConcurrency = def.BatchConcurrency
	}
	if opts.Circular == (domainMol.CircularOptions{}) {
		opts.Circular = def.Circular
	}
	if opts.Path == (domainMol.PathOptions{}) {
		opts.Path = def.Path
	}
	if err := opts.Circular.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Path.Validate(); err != nil {
		return nil, err
	}

	s := &serviceImpl{
		opts:    opts,
		parsers: DefaultParsers(),
		logger:  logging.NewNopLogger(),
		metrics: nopMetrics{},
	}
	for _, o := range svcOpts {
		o(s)
	}
	s.logger = s.logger.Named("molecule")

	cache, err := querycache.New(opts.QueryCacheSize, s.buildQuery,
		querycache.WithLogger(s.logger.Named("querycache")),
		querycache.WithRecorder(s.metrics))
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

func (s *serviceImpl) Options() Options { return s.opts }

func (s *serviceImpl) CachedQueries() []string { return s.cache.Keys() }

func (s *serviceImpl) checkLength(text string) error {
	if len(text) > s.opts.MaxInputLength {
		return errors.ParseError("input exceeds the maximum length").
			WithDetail(fmt.Sprintf("length=%d max=%d", len(text), s.opts.MaxInputLength))
	}
	return nil
}

// guard runs fn and converts a panic into a ChemistryError.
func (s *serviceImpl) guard(text string, fn func() (*domainMol.Graph, error)) (g *domainMol.Graph, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic while processing structure",
				logging.Input(text), logging.Any("panic", r))
			g, err = nil, errors.ChemistryError("internal failure while processing structure").
				WithDetail(fmt.Sprint(r))
		}
	}()
	return fn()
}

func (s *serviceImpl) ParseMolecule(text string) *Handle {
	start := time.Now()
	format := domainMol.DetectFormat(text)
	g, err := s.guard(text, func() (*domainMol.Graph, error) {
		if err := s.checkLength(text); err != nil {
			return nil, err
		}
		parser := s.parsers.LineNotation
		if format == domainMol.FormatConnectionTable {
			parser = s.parsers.ConnectionTable
		}
		g, err := parser.Parse(text)
		if err != nil {
			return nil, err
		}
		if err := domainMol.Sanitize(g); err != nil {
			return nil, err
		}
		return g, nil
	})
	s.metrics.RecordParse("molecule", format.String(), err == nil, time.Since(start))
	if err != nil {
		s.logger.Debug("molecule rejected", logging.Input(text), logging.Err(err))
	}
	return s.newHandle(g, err, format)
}

func (s *serviceImpl) ParseQuery(text string) *Handle {
	start := time.Now()
	format := domainMol.DetectFormat(text)
	g, err := s.cache.GetOrBuild(text)
	label := "smarts"
	if format == domainMol.FormatConnectionTable {
		label = format.String()
	}
	s.metrics.RecordParse("query", label, err == nil, time.Since(start))
	if err != nil {
		s.logger.Debug("query rejected", logging.Input(text), logging.Err(err))
	}
	return s.newHandle(g, err, format)
}

// buildQuery is the query cache builder. Connection tables take the molfile
// path and are marked as queries; everything else is SMARTS.
func (s *serviceImpl) buildQuery(text string) (*domainMol.Graph, error) {
	return s.guard(text, func() (*domainMol.Graph, error) {
		if err := s.checkLength(text); err != nil {
			return nil, err
		}
		if domainMol.DetectFormat(text) != domainMol.FormatConnectionTable {
			return s.parsers.Pattern.Parse(text)
		}
		g, err := s.parsers.ConnectionTable.Parse(text)
		if err != nil {
			return nil, err
		}
		if g.State() == domainMol.StateRaw {
			g.MarkQuery()
		}
		return g, nil
	})
}

func (s *serviceImpl) newHandle(g *domainMol.Graph, err error, format domainMol.Format) *Handle {
	h := &Handle{id: uuid.NewString(), svc: s, format: format}
	if err != nil || g == nil {
		if err == nil {
			err = errors.NullOperand("parser returned no graph")
		}
		h.err = err
		return h
	}
	h.graph = g
	return h
}

func (s *serviceImpl) Similarity(a, b *Handle, kind domainMol.FingerprintType, metric domainMol.SimilarityMetric) (float64, error) {
	if !a.IsValid() || !b.IsValid() {
		return 0, errors.NullOperand("similarity needs two valid molecules")
	}
	calc, err := domainMol.NewSimilarityCalculator(metric)
	if err != nil {
		return 0, err
	}
	fa, err := s.fingerprint(a, kind)
	if err != nil {
		return 0, err
	}
	fb, err := s.fingerprint(b, kind)
	if err != nil {
		return 0, err
	}
	return calc.Calculate(fa, fb)
}

// fingerprint computes a fingerprint of kind with the service parameters.
func (s *serviceImpl) fingerprint(h *Handle, kind domainMol.FingerprintType) (*domainMol.Fingerprint, error) {
	if !h.IsValid() {
		return nil, errors.NullOperand("fingerprint of an invalid molecule")
	}
	start := time.Now()
	var (
		fp  *domainMol.Fingerprint
		err error
	)
	switch kind {
	case domainMol.FingerprintCircular:
		fp, err = domainMol.CircularFingerprint(h.graph, s.opts.Circular)
	case domainMol.FingerprintPath:
		fp, err = domainMol.PathFingerprint(h.graph, s.opts.Path)
	default:
		return nil, errors.InvalidParam("unknown fingerprint type").WithDetail(string(kind))
	}
	if err == nil {
		s.metrics.RecordFingerprint(kind.String(), time.Since(start))
	}
	return fp, err
}
