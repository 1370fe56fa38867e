package detectors

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// WhitespaceDetector flags padding, doubled interior spaces and control whitespace
type WhitespaceDetector struct {
	coercer *coercer.TypeCoercer
}

func NewWhitespaceDetector(c *coercer.TypeCoercer) *WhitespaceDetector {
	return &WhitespaceDetector{coercer: c}
}

func (d *WhitespaceDetector) PatternType() preprocessing.PatternType {
	return preprocessing.PatternWhitespaceIssue
}

func (d *WhitespaceDetector) IsApplicable(col *dataset.Column) bool {
	return col.IsString()
}

// WhitespaceFlags reports the independent whitespace problems of one value
func WhitespaceFlags(s string) (padded, doubled, control bool) {
	padded = strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ")
	doubled = strings.Contains(strings.Trim(s, " "), "  ")
	control = strings.ContainsAny(s, "\t\r\n")
	return padded, doubled, control
}

func (d *WhitespaceDetector) Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, err := nonMissingStrings(ctx, d.coercer, col)
	if err != nil {
		return nil, err
	}

	var paddedCount, doubledCount, controlCount, affected int
	var examples []string
	var affectedRows []int
	for _, c := range cells {
		padded, doubled, control := WhitespaceFlags(c.value)
		if padded {
			paddedCount++
		}
		if doubled {
			doubledCount++
		}
		if control {
			controlCount++
		}
		if padded || doubled || control {
			affected++
			affectedRows = append(affectedRows, c.row)
			if len(examples) < preprocessing.MaxExamples {
				examples = append(examples, strconv.Quote(c.value))
			}
		}
	}
	if affected == 0 {
		return nil, nil
	}

	pattern := preprocessing.DetectedPattern{
		Type:        preprocessing.PatternWhitespaceIssue,
		ColumnName:  columnName,
		Description: fmt.Sprintf("Irregular whitespace in column %s", quote(columnName)),
		Severity:    preprocessing.SeverityLow,
		Occurrences: affected,
		TotalRows:   col.Len(),
		Confidence:  1.0,
		SuggestedFix: fmt.Sprintf("trim %d padded values, collapse %d doubled spaces, replace control whitespace in %d values",
			paddedCount, doubledCount, controlCount),
		Hints: map[string]string{
			"padded":  strconv.Itoa(paddedCount),
			"doubled": strconv.Itoa(doubledCount),
			"control": strconv.Itoa(controlCount),
		},
		Rows: affectedRows,
	}
	if pattern.AffectedFraction() >= 0.5 {
		pattern.Severity = preprocessing.SeverityMedium
	}
	for _, e := range examples {
		pattern.AddExample(e)
	}
	return []preprocessing.DetectedPattern{pattern}, nil
}
