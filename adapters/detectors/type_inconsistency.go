package detectors

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// HintTargetType names the dominant value bucket a conversion should aim for
const HintTargetType = "target_type"

// TypeInconsistencyDetector flags Mixed columns whose values split across parse buckets
type TypeInconsistencyDetector struct {
	coercer *coercer.TypeCoercer
	config  DetectorConfig
}

func NewTypeInconsistencyDetector(c *coercer.TypeCoercer, config DetectorConfig) *TypeInconsistencyDetector {
	return &TypeInconsistencyDetector{coercer: c, config: config}
}

func (d *TypeInconsistencyDetector) PatternType() preprocessing.PatternType {
	return preprocessing.PatternTypeInconsistency
}

func (d *TypeInconsistencyDetector) IsApplicable(col *dataset.Column) bool {
	return col.IsString() && d.coercer.InferColumnType(col) == profiling.TypeMixed
}

func (d *TypeInconsistencyDetector) Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, err := nonMissingStrings(ctx, d.coercer, col)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, nil
	}

	counts := make(map[coercer.ValueBucket]int)
	examples := make(map[coercer.ValueBucket][]string)
	bucketOf := make([]coercer.ValueBucket, len(cells))
	for i, c := range cells {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		b := coercer.Classify(c.value)
		bucketOf[i] = b
		counts[b]++
		if len(examples[b]) < 2 {
			examples[b] = append(examples[b], c.value)
		}
	}
	if len(counts) < 2 {
		return nil, nil
	}

	buckets := make([]coercer.ValueBucket, 0, len(counts))
	for b := range counts {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if counts[buckets[i]] != counts[buckets[j]] {
			return counts[buckets[i]] > counts[buckets[j]]
		}
		return buckets[i] < buckets[j]
	})

	dominant := buckets[0]
	minority := len(cells) - counts[dominant]
	minorityFraction := float64(minority) / float64(len(cells))
	if minorityFraction <= d.config.TypeMinorityThreshold {
		return nil, nil
	}

	hints := map[string]string{HintTargetType: string(dominant)}
	for _, b := range buckets {
		hints[string(b)] = strconv.Itoa(counts[b])
	}
	pattern := preprocessing.DetectedPattern{
		Type:         preprocessing.PatternTypeInconsistency,
		ColumnName:   columnName,
		Description:  fmt.Sprintf("Mixed value types in column %s", quote(columnName)),
		Severity:     severityByFraction(minorityFraction, 1.1, 0.30, 0.15),
		Occurrences:  minority,
		TotalRows:    col.Len(),
		Confidence:   0.9,
		SuggestedFix: fmt.Sprintf("convert to %s; %d values outside that type would become missing", dominant, minority),
		Hints:        hints,
	}
	for i, c := range cells {
		if bucketOf[i] != dominant {
			pattern.Rows = append(pattern.Rows, c.row)
		}
	}
	for _, b := range buckets[1:] {
		for _, e := range examples[b] {
			pattern.AddExample(fmt.Sprintf("%s: %q", b, e))
		}
	}
	return []preprocessing.DetectedPattern{pattern}, nil
}
