package detectors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// mojibakePattern matches UTF-8 sequences that were decoded as Latin-1 or Windows-1252
var mojibakePattern = regexp.MustCompile(
	`[ÃÂ][\x{0080}-\x{00BF}\x{0152}\x{0153}\x{0160}\x{0161}\x{0178}\x{017D}\x{017E}\x{0192}\x{02C6}\x{02DC}\x{2013}\x{2014}\x{2018}-\x{201E}\x{2020}-\x{2022}\x{2026}\x{2030}\x{2039}\x{203A}\x{20AC}\x{2122}]|â€`)

// EncodingDetector flags replacement characters, mojibake and suspicious multi-byte clusters
type EncodingDetector struct {
	coercer *coercer.TypeCoercer
	config  DetectorConfig
}

func NewEncodingDetector(c *coercer.TypeCoercer, config DetectorConfig) *EncodingDetector {
	return &EncodingDetector{coercer: c, config: config}
}

func (d *EncodingDetector) PatternType() preprocessing.PatternType {
	return preprocessing.PatternEncodingIssue
}

func (d *EncodingDetector) IsApplicable(col *dataset.Column) bool {
	return col.IsString()
}

// HasReplacementChar reports whether s contains U+FFFD
func HasReplacementChar(s string) bool {
	return strings.ContainsRune(s, utf8.RuneError)
}

// HasMojibake reports whether s contains a known mis-decoding sequence
func HasMojibake(s string) bool {
	return mojibakePattern.MatchString(s)
}

// IsSuspiciousMultibyte reinterprets the UTF-8 bytes of s as Latin-1 and reports
// whether that yields more than ratio times as many letters. Text that was already
// decoded through the wrong charset grows letters under reinterpretation.
func IsSuspiciousMultibyte(s string, ratio float64) bool {
	if isASCII(s) {
		return false
	}
	latin1, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return false
	}
	before := countLetters(s)
	if before == 0 {
		return false
	}
	return float64(countLetters(latin1)) > ratio*float64(before)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func (d *EncodingDetector) Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, err := nonMissingStrings(ctx, d.coercer, col)
	if err != nil {
		return nil, err
	}

	var replacement, mojibake, suspicious, affected int
	pattern := preprocessing.DetectedPattern{
		Type:        preprocessing.PatternEncodingIssue,
		ColumnName:  columnName,
		Description: fmt.Sprintf("Character encoding problems in column %s", quote(columnName)),
		TotalRows:   col.Len(),
		Confidence:  d.config.EncodingConfidence,
	}
	for i, c := range cells {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		hit := false
		if HasReplacementChar(c.value) {
			replacement++
			hit = true
		}
		if HasMojibake(c.value) {
			mojibake++
			hit = true
		} else if IsSuspiciousMultibyte(c.value, d.config.EncodingLetterRatio) {
			suspicious++
			hit = true
		}
		if hit {
			affected++
			pattern.Rows = append(pattern.Rows, c.row)
			pattern.AddExample(c.value)
		}
	}
	if affected == 0 {
		return nil, nil
	}

	pattern.Occurrences = affected
	pattern.Severity = severityByFraction(pattern.AffectedFraction(), 1.1, 0.10, 0.01)
	pattern.SuggestedFix = fmt.Sprintf("repair %d mis-decoded values and drop %d replacement characters", mojibake+suspicious, replacement)
	pattern.Hints = map[string]string{
		"replacement": strconv.Itoa(replacement),
		"mojibake":    strconv.Itoa(mojibake),
		"suspicious":  strconv.Itoa(suspicious),
	}
	return []preprocessing.DetectedPattern{pattern}, nil
}
