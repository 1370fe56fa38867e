package detectors

import (
	"context"
	"fmt"
	"strconv"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
	iprofiling "ruleminer/internal/profiling"
)

// minOutlierValues is the smallest value count worth testing for outliers
const minOutlierValues = 4

// OutlierDetector flags numeric values outside the Z-score or IQR fences
type OutlierDetector struct {
	coercer *coercer.TypeCoercer
	config  DetectorConfig
}

func NewOutlierDetector(c *coercer.TypeCoercer, config DetectorConfig) *OutlierDetector {
	return &OutlierDetector{coercer: c, config: config}
}

func (d *OutlierDetector) PatternType() preprocessing.PatternType {
	return preprocessing.PatternOutlierAnomaly
}

// IsApplicable accepts typed numeric columns and string columns that infer as numeric
func (d *OutlierDetector) IsApplicable(col *dataset.Column) bool {
	if col.IsNumeric() {
		return true
	}
	return col.IsString() && d.coercer.InferColumnType(col) == profiling.TypeNumeric
}

func (d *OutlierDetector) Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, rows, err := numericCells(ctx, d.coercer, col)
	if err != nil {
		return nil, err
	}
	if len(values) < minOutlierValues {
		return nil, nil
	}

	zIdx := iprofiling.ZScoreOutliers(values, d.config.ZScoreThreshold)
	iqrIdx := iprofiling.IQROutliers(values)
	union := iprofiling.OutlierUnion(values, d.config.ZScoreThreshold)

	fraction := float64(len(union)) / float64(len(values))
	if fraction <= d.config.OutlierMinFraction || fraction >= d.config.OutlierMaxFraction {
		return nil, nil
	}

	q1, _, q3 := iprofiling.Quartiles(values)
	lower, upper := iprofiling.IQRBounds(q1, q3)
	pattern := preprocessing.DetectedPattern{
		Type:        preprocessing.PatternOutlierAnomaly,
		ColumnName:  columnName,
		Description: fmt.Sprintf("Outliers in numeric column %s", quote(columnName)),
		Severity:    severityByFraction(fraction, 1.1, 0.10, 0.05),
		Occurrences: len(union),
		TotalRows:   col.Len(),
		Confidence:  0.8,
		SuggestedFix: fmt.Sprintf("%d outliers (z-score %d, IQR %d): cap to [%s, %s] or review",
			len(union), len(zIdx), len(iqrIdx), formatFloat(lower), formatFloat(upper)),
		Hints: map[string]string{
			"lower_bound": formatFloat(lower),
			"upper_bound": formatFloat(upper),
		},
	}
	for _, idx := range union {
		pattern.Rows = append(pattern.Rows, rows[idx])
		pattern.AddExample(fmt.Sprintf("row %d: %s", rows[idx], formatFloat(values[idx])))
	}
	return []preprocessing.DetectedPattern{pattern}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
