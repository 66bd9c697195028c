package molecule

import (
	"math/bits"
	"strings"

	"github.com/turtacn/molcore/pkg/errors"
)

// SimilarityMetric defines the algorithm used for molecular similarity measurement.
type SimilarityMetric string

const (
	MetricTanimoto SimilarityMetric = "tanimoto"
	MetricDice     SimilarityMetric = "dice"
)

// IsValid checks if the similarity metric is valid.
func (m SimilarityMetric) IsValid() bool {
	switch m {
	case MetricTanimoto, MetricDice:
		return true
	default:
		return false
	}
}

func (m SimilarityMetric) String() string {
	return string(m)
}

// ParseSimilarityMetric parses a string into a SimilarityMetric. The empty
// string selects Tanimoto.
func ParseSimilarityMetric(s string) (SimilarityMetric, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MetricTanimoto, nil
	}
	m := SimilarityMetric(s)
	if m.IsValid() {
		return m, nil
	}
	return "", errors.New(errors.ErrCodeSimilarityMetricUnsupported, "unsupported similarity metric: "+s)
}

// SimilarityCalculator computes a score in [0, 1] between two fingerprints.
type SimilarityCalculator interface {
	Calculate(fp1, fp2 *Fingerprint) (float64, error)
	Metric() SimilarityMetric
}

// TanimotoCalculator implements Tanimoto similarity (Jaccard index).
type TanimotoCalculator struct{}

// Calculate returns |A∩B| / |A∪B|, or 0 when both are empty.
func (c *TanimotoCalculator) Calculate(fp1, fp2 *Fingerprint) (float64, error) {
	and, or, err := overlap(fp1, fp2)
	if err != nil {
		return 0, err
	}
	if or == 0 {
		return 0, nil
	}
	return float64(and) / float64(or), nil
}

func (c *TanimotoCalculator) Metric() SimilarityMetric { return MetricTanimoto }

// DiceCalculator implements Dice similarity.
type DiceCalculator struct{}

// Calculate returns 2|A∩B| / (|A|+|B|), or 0 when both are empty.
func (c *DiceCalculator) Calculate(fp1, fp2 *Fingerprint) (float64, error) {
	and, _, err := overlap(fp1, fp2)
	if err != nil {
		return 0, err
	}
	denominator := fp1.NumOnBits + fp2.NumOnBits
	if denominator == 0 {
		return 0, nil
	}
	return 2 * float64(and) / float64(denominator), nil
}

func (c *DiceCalculator) Metric() SimilarityMetric { return MetricDice }

func overlap(fp1, fp2 *Fingerprint) (and, or int, err error) {
	if fp1 == nil || fp2 == nil {
		return 0, 0, errors.NullOperand("similarity")
	}
	if fp1.Type != fp2.Type || fp1.Length != fp2.Length {
		return 0, 0, errors.New(errors.ErrCodeValidation, "fingerprints must have same type and length")
	}
	for i := range fp1.Bits {
		and += bits.OnesCount8(fp1.Bits[i] & fp2.Bits[i])
		or += bits.OnesCount8(fp1.Bits[i] | fp2.Bits[i])
	}
	return and, or, nil
}

// NewSimilarityCalculator factory function.
func NewSimilarityCalculator(metric SimilarityMetric) (SimilarityCalculator, error) {
	switch metric {
	case MetricTanimoto:
		return &TanimotoCalculator{}, nil
	case MetricDice:
		return &DiceCalculator{}, nil
	default:
		return nil, errors.New(errors.ErrCodeSimilarityMetricUnsupported, "unsupported similarity metric: "+string(metric))
	}
}

// Similarity Threshold Constants
const (
	ThresholdIdentical          = 0.99
	ThresholdHighSimilarity     = 0.85
	ThresholdModerateSimilarity = 0.70
	ThresholdLowSimilarity      = 0.50
)

// ClassifySimilarity returns a classification label for a given similarity score.
func ClassifySimilarity(score float64) string {
	switch {
	case score >= ThresholdIdentical:
		return "identical"
	case score >= ThresholdHighSimilarity:
		return "high"
	case score >= ThresholdModerateSimilarity:
		return "moderate"
	case score >= ThresholdLowSimilarity:
		return "low"
	}
	return "dissimilar"
}
