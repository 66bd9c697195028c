package molecule

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	domainMol "github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/pkg/errors"
)

// MaxBatchSize bounds the number of inputs of a single batch call.
const MaxBatchSize = 10000

// BatchResult is the outcome for one input of a batch. Invalid inputs are
// reported per item and do not fail the batch.
type BatchResult struct {
	Index       int    `json:"index"`
	Input       string `json:"input"`
	Valid       bool   `json:"valid"`
	Canonical   string `json:"canonical,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	NumOnBits   int    `json:"num_on_bits,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *serviceImpl) BatchCanonical(ctx context.Context, texts []string) ([]BatchResult, error) {
	return s.runBatch(ctx, texts, func(i int, text string) BatchResult {
		r := BatchResult{Index: i, Input: text}
		h := s.ParseMolecule(text)
		if !h.IsValid() {
			r.Error = ErrorText(h.Err())
			return r
		}
		r.Valid = true
		r.Canonical = h.CanonicalSMILES()
		return r
	})
}

func (s *serviceImpl) BatchFingerprint(ctx context.Context, texts []string, kind domainMol.FingerprintType) ([]BatchResult, error) {
	if !kind.IsValid() {
		return nil, errors.InvalidParam("unknown fingerprint type").WithDetail(string(kind))
	}
	return s.runBatch(ctx, texts, func(i int, text string) BatchResult {
		r := BatchResult{Index: i, Input: text}
		h := s.ParseMolecule(text)
		if !h.IsValid() {
			r.Error = ErrorText(h.Err())
			return r
		}
		fp, err := s.fingerprint(h, kind)
		if err != nil {
			r.Error = ErrorText(err)
			return r
		}
		r.Valid = true
		r.Fingerprint = fp.BitString()
		r.NumOnBits = fp.NumOnBits
		return r
	})
}

// runBatch applies fn to every input with at most BatchConcurrency workers.
// Results keep the input order. Cancelling ctx stops scheduling and returns
// the context error.
func (s *serviceImpl) runBatch(ctx context.Context, texts []string, fn func(int, string) BatchResult) ([]BatchResult, error) {
	if len(texts) > MaxBatchSize {
		return nil, errors.InvalidParam("batch too large").
			WithDetail(fmt.Sprintf("size=%d max=%d", len(texts), MaxBatchSize))
	}
	results := make([]BatchResult, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)
	for i, text := range texts {
		i, text := i, text
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = fn(i, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("batch cancelled", logging.Int("size", len(texts)), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "batch cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "batch cancelled")
	}
	return results, nil
}

// ErrorText renders err for API and CLI output: the message of an AppError
// followed by its detail in parentheses.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	if ae, ok := err.(*errors.AppError); ok {
		if ae.Detail != "" {
			return ae.Message + " (" + ae.Detail + ")"
		}
		return ae.Message
	}
	return err.Error()
}
