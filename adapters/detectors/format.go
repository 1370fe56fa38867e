package detectors

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// Format variation hint keys and values
const (
	HintFamily   = "family"
	HintDominant = "dominant"

	FamilyDate    = "date"
	FamilyNumeric = "numeric"
	FamilyBoolean = "boolean"
)

// Date format classes
const (
	DateISO = "iso"
	DateUS  = "us"
	DateEU  = "eu"
)

// Numeric format styles
const (
	NumericCommaThousands = "comma_thousands"
	NumericCommaDecimal   = "comma_decimal"
	NumericSpaceSeparator = "space_separator"
	NumericPlain          = "plain"
)

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}`)
	usDatePattern  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}`)
	euDatePattern  = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}`)
)

// ClassifyDate returns the date format class of s, or "" when none matches
func ClassifyDate(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case isoDatePattern.MatchString(s):
		return DateISO
	case usDatePattern.MatchString(s):
		return DateUS
	case euDatePattern.MatchString(s):
		return DateEU
	}
	return ""
}

// ClassifyNumeric returns the separator style of a numeric string by the
// position of the last comma relative to the last dot
func ClassifyNumeric(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, " ") {
		return NumericSpaceSeparator
	}
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma < 0:
		return NumericPlain
	case dot >= 0 && comma < dot:
		return NumericCommaThousands
	case dot >= 0 && comma > dot:
		return NumericCommaDecimal
	case len(s)-comma-1 == 3:
		return NumericCommaThousands
	}
	return NumericCommaDecimal
}

// FormatVariationDetector flags date, numeric and boolean columns written in several formats
type FormatVariationDetector struct {
	coercer *coercer.TypeCoercer
	config  DetectorConfig
}

func NewFormatVariationDetector(c *coercer.TypeCoercer, config DetectorConfig) *FormatVariationDetector {
	return &FormatVariationDetector{coercer: c, config: config}
}

func (d *FormatVariationDetector) PatternType() preprocessing.PatternType {
	return preprocessing.PatternFormatVariation
}

func (d *FormatVariationDetector) IsApplicable(col *dataset.Column) bool {
	if !col.IsString() {
		return false
	}
	switch d.coercer.InferColumnType(col) {
	case profiling.TypeDateTime, profiling.TypeNumeric, profiling.TypeBoolean:
		return true
	}
	return false
}

func (d *FormatVariationDetector) Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inferred := d.coercer.InferColumnType(col)
	cells, err := nonMissingStrings(ctx, d.coercer, col)
	if err != nil {
		return nil, err
	}

	var family string
	var classify func(string) string
	switch inferred {
	case profiling.TypeDateTime:
		family, classify = FamilyDate, ClassifyDate
	case profiling.TypeNumeric:
		family = FamilyNumeric
		classify = func(s string) string {
			if _, ok := coercer.ParseNumeric(s); !ok {
				return ""
			}
			return ClassifyNumeric(s)
		}
	case profiling.TypeBoolean:
		family = FamilyBoolean
		classify = func(s string) string {
			if _, ok := coercer.ParseBoolean(s); !ok {
				return ""
			}
			return strings.ToLower(strings.TrimSpace(s))
		}
	default:
		return nil, nil
	}

	counts := make(map[string]int)
	examples := make(map[string]string)
	classOf := make([]string, len(cells))
	for i, c := range cells {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		class := classify(c.value)
		if class == "" {
			continue
		}
		classOf[i] = class
		counts[class]++
		if _, ok := examples[class]; !ok {
			examples[class] = c.value
		}
	}

	limit := 1
	if family == FamilyBoolean {
		limit = d.config.BooleanMaxRepresentations
	}
	if len(counts) <= limit {
		return nil, nil
	}

	classes := make([]string, 0, len(counts))
	total := 0
	for class, n := range counts {
		classes = append(classes, class)
		total += n
	}
	sort.Slice(classes, func(i, j int) bool {
		if counts[classes[i]] != counts[classes[j]] {
			return counts[classes[i]] > counts[classes[j]]
		}
		return classes[i] < classes[j]
	})
	dominant := classes[0]

	pattern := preprocessing.DetectedPattern{
		Type:        preprocessing.PatternFormatVariation,
		ColumnName:  columnName,
		Description: formatDescription(family, columnName),
		TotalRows:   col.Len(),
		Confidence:  0.9,
		Hints: map[string]string{
			HintFamily:   family,
			HintDominant: dominant,
		},
	}
	if family == FamilyBoolean {
		// every non-canonical spelling is affected
		pattern.Occurrences = total
		pattern.SuggestedFix = fmt.Sprintf("convert %d boolean spellings to true/false", len(classes))
	} else {
		pattern.Occurrences = total - counts[dominant]
		pattern.SuggestedFix = fmt.Sprintf("standardize %d values to the %s format", pattern.Occurrences, dominant)
	}
	for i, c := range cells {
		if classOf[i] != "" && (family == FamilyBoolean || classOf[i] != dominant) {
			pattern.Rows = append(pattern.Rows, c.row)
		}
	}
	pattern.Severity = severityByFraction(pattern.AffectedFraction(), 1.1, 1.1, 0.30)
	parts := make([]string, 0, len(classes))
	for _, class := range classes {
		parts = append(parts, class+"="+strconv.Itoa(counts[class]))
		pattern.AddExample(fmt.Sprintf("%s: %q", class, examples[class]))
	}
	pattern.Hints["classes"] = strings.Join(parts, ",")
	return []preprocessing.DetectedPattern{pattern}, nil
}

func formatDescription(family, columnName string) string {
	switch family {
	case FamilyDate:
		return fmt.Sprintf("Inconsistent date formats in column %s", quote(columnName))
	case FamilyNumeric:
		return fmt.Sprintf("Inconsistent numeric formats in column %s", quote(columnName))
	}
	return fmt.Sprintf("Inconsistent boolean representations in column %s", quote(columnName))
}
