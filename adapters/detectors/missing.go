package detectors

import (
	"context"
	"fmt"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// MissingValueDetector flags nulls, blanks and missing-value tokens
type MissingValueDetector struct {
	coercer *coercer.TypeCoercer
}

func NewMissingValueDetector(c *coercer.TypeCoercer) *MissingValueDetector {
	return &MissingValueDetector{coercer: c}
}

func (d *MissingValueDetector) PatternType() preprocessing.PatternType {
	return preprocessing.PatternMissingValue
}

// IsApplicable is true for every column kind
func (d *MissingValueDetector) IsApplicable(col *dataset.Column) bool {
	return true
}

func (d *MissingValueDetector) Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pattern := preprocessing.DetectedPattern{
		Type:        preprocessing.PatternMissingValue,
		ColumnName:  columnName,
		Description: fmt.Sprintf("Missing values in column %s", quote(columnName)),
		TotalRows:   col.Len(),
		Confidence:  1.0,
	}
	for i := 0; i < col.Len(); i++ {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		if !d.coercer.IsMissingCell(col, i) {
			continue
		}
		pattern.Occurrences++
		pattern.Rows = append(pattern.Rows, i)
		if col.IsNull(i) {
			pattern.AddExample("<null>")
		} else {
			s, _ := col.String(i)
			pattern.AddExample(fmt.Sprintf("%q", s))
		}
	}
	if pattern.Occurrences == 0 {
		return nil, nil
	}

	fraction := pattern.AffectedFraction()
	pattern.Severity = severityByFraction(fraction, 0.50, 0.20, 0.05)
	switch pattern.Severity {
	case preprocessing.SeverityCritical:
		pattern.SuggestedFix = fmt.Sprintf("%.1f%% missing: consider dropping the column", fraction*100)
	case preprocessing.SeverityHigh, preprocessing.SeverityMedium:
		pattern.SuggestedFix = fmt.Sprintf("%.1f%% missing: impute with median or mode", fraction*100)
	default:
		pattern.SuggestedFix = fmt.Sprintf("%.1f%% missing: review and impute or drop affected rows", fraction*100)
	}
	return []preprocessing.DetectedPattern{pattern}, nil
}
