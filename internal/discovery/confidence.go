package discovery

import (
	"context"
	"math"

	"ruleminer/adapters/detectors"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// ConsistencySegments is the number of equal row segments used to judge evenness
const ConsistencySegments = 10

// ConfidenceCalculator scores a rule against two samples by re-measuring its pattern
type ConfidenceCalculator struct {
	detectors *detectors.Engine
}

// NewConfidenceCalculator creates a calculator that re-runs patterns through engine
func NewConfidenceCalculator(engine *detectors.Engine) *ConfidenceCalculator {
	return &ConfidenceCalculator{detectors: engine}
}

// measurement is one re-detection of a rule's pattern in a sample
type measurement struct {
	found bool
	rows  []int
	total int
}

func (m measurement) rate() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(len(m.rows)) / float64(m.total)
}

// Calculate scores rule against sampleA, with sampleB as the stability reference.
// A rule whose column is absent from sampleA gets zero coverage and consistency;
// absent from either sample, zero stability.
func (c *ConfidenceCalculator) Calculate(ctx context.Context, rule *preprocessing.PreprocessingRule, sampleA, sampleB *dataset.Frame) (preprocessing.ConfidenceScore, error) {
	if err := ctx.Err(); err != nil {
		return preprocessing.ConfidenceScore{}, err
	}
	a, err := c.measure(ctx, rule, sampleA)
	if err != nil {
		return preprocessing.ConfidenceScore{}, err
	}
	b := a
	if sampleB != sampleA {
		if b, err = c.measure(ctx, rule, sampleB); err != nil {
			return preprocessing.ConfidenceScore{}, err
		}
	}

	var consistency, coverage, stability float64
	if a.total > 0 {
		coverage = a.rate()
		consistency = Consistency(a.rows, a.total, ConsistencySegments)
	}
	if a.total > 0 && b.total > 0 {
		stability = Stability(a.rate(), b.rate())
	}
	return preprocessing.NewConfidenceScore(consistency, coverage, stability), nil
}

// measure re-runs the rule's detector on its column and picks the pattern with
// the same description
func (c *ConfidenceCalculator) measure(ctx context.Context, rule *preprocessing.PreprocessingRule, sample *dataset.Frame) (measurement, error) {
	if sample == nil {
		return measurement{}, nil
	}
	col, ok := sample.Lookup(rule.PrimaryColumn())
	if !ok {
		return measurement{}, nil
	}
	m := measurement{total: col.Len()}
	d, ok := c.detectors.ForPattern(rule.PatternType)
	if !ok || !d.IsApplicable(col) {
		return m, nil
	}
	patterns, err := d.Detect(ctx, col, rule.PrimaryColumn())
	if err != nil {
		return measurement{}, err
	}
	for _, p := range patterns {
		if p.Description == rule.Description {
			m.found = true
			m.rows = p.Rows
			break
		}
	}
	return m, nil
}

// Consistency is how evenly affected rows spread over equal row segments. It
// compares the observed variance of per-segment rates with the variance expected
// if the same number of rows were spread at random; even spread scores 1 and
// concentration pulls the score toward 0. No affected rows scores 0.
func Consistency(rows []int, total, segments int) float64 {
	if total == 0 || len(rows) == 0 {
		return 0
	}
	if len(rows) >= total {
		return 1
	}
	if segments > total {
		segments = total
	}
	if segments < 2 {
		return 1
	}

	counts := make([]int, segments)
	for _, r := range rows {
		counts[segmentOf(r, total, segments)]++
	}

	p := float64(len(rows)) / float64(total)
	var observed, expected float64
	for s := 0; s < segments; s++ {
		size := segmentSize(s, total, segments)
		rate := float64(counts[s]) / float64(size)
		observed += (rate - p) * (rate - p)
		expected += p * (1 - p) / float64(size)
	}
	observed /= float64(segments)
	expected /= float64(segments)

	if observed <= expected {
		return 1
	}
	return clamp01(expected / observed)
}

// segmentOf places row r into one of n near-equal contiguous segments
func segmentOf(r, total, segments int) int {
	s := r * segments / total
	if s >= segments {
		s = segments - 1
	}
	return s
}

func segmentSize(s, total, segments int) int {
	start := (s*total + segments - 1) / segments
	end := ((s+1)*total + segments - 1) / segments
	return end - start
}

// Stability is the absolute agreement of two occurrence rates, 1 - |a-b|.
// Sampling noise on a low-rate pattern moves it by the size of the noise, not
// by its share of the rate.
func Stability(rateA, rateB float64) float64 {
	return clamp01(1 - math.Abs(rateA-rateB))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
