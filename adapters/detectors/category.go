package detectors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// Hint keys shared with the rule applier
const (
	HintMapping = "mapping"
	HintVariant = "variant"
)

// Category variant kinds
const (
	VariantCase          = "case"
	VariantNearDuplicate = "near_duplicate"
)

// CategoryVariationDetector finds case variants and near-duplicate spellings of categories
type CategoryVariationDetector struct {
	coercer *coercer.TypeCoercer
	config  DetectorConfig
}

func NewCategoryVariationDetector(c *coercer.TypeCoercer, config DetectorConfig) *CategoryVariationDetector {
	return &CategoryVariationDetector{coercer: c, config: config}
}

func (d *CategoryVariationDetector) PatternType() preprocessing.PatternType {
	return preprocessing.PatternCategoryVariation
}

func (d *CategoryVariationDetector) IsApplicable(col *dataset.Column) bool {
	return col.IsString()
}

// categoryGroup collects the original spellings sharing one normalized key
type categoryGroup struct {
	key       string
	total     int
	originals map[string][]int // spelling -> rows
}

// dominant returns the most frequent original spelling, ties broken lexically
func (g *categoryGroup) dominant() string {
	best, bestCount := "", -1
	for orig, rows := range g.originals {
		if n := len(rows); n > bestCount || (n == bestCount && orig < best) {
			best, bestCount = orig, n
		}
	}
	return best
}

func (g *categoryGroup) rows() []int {
	var rows []int
	for _, r := range g.originals {
		rows = append(rows, r...)
	}
	return rows
}

func (d *CategoryVariationDetector) Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, err := nonMissingStrings(ctx, d.coercer, col)
	if err != nil {
		return nil, err
	}

	upper := cases.Upper(language.Und)
	groups := make(map[string]*categoryGroup)
	for _, c := range cells {
		orig := strings.TrimSpace(c.value)
		key := upper.String(orig)
		g, ok := groups[key]
		if !ok {
			if len(groups) >= d.config.MaxCategories {
				// too many distinct values to be categorical
				return nil, nil
			}
			g = &categoryGroup{key: key, originals: make(map[string][]int)}
			groups[key] = g
		}
		g.total++
		g.originals[orig] = append(g.originals[orig], c.row)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var patterns []preprocessing.DetectedPattern
	if p, ok := d.caseVariants(columnName, col.Len(), keys, groups); ok {
		patterns = append(patterns, p)
	}
	p, ok, err := d.nearDuplicates(ctx, columnName, col.Len(), keys, groups)
	if err != nil {
		return nil, err
	}
	if ok {
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func (d *CategoryVariationDetector) caseVariants(columnName string, totalRows int, keys []string, groups map[string]*categoryGroup) (preprocessing.DetectedPattern, bool) {
	var mapping []string
	var examples []string
	var rows []int
	for _, k := range keys {
		g := groups[k]
		if len(g.originals) < 2 {
			continue
		}
		target := g.dominant()
		spellings := make([]string, 0, len(g.originals))
		for orig, r := range g.originals {
			spellings = append(spellings, orig)
			if orig != target {
				rows = append(rows, r...)
				mapping = append(mapping, orig+"=>"+target)
			}
		}
		sort.Strings(spellings)
		examples = append(examples, strings.Join(spellings, " | "))
	}
	if len(mapping) == 0 {
		return preprocessing.DetectedPattern{}, false
	}
	sort.Strings(mapping)
	sort.Ints(rows)

	p := preprocessing.DetectedPattern{
		Type:         preprocessing.PatternCategoryVariation,
		ColumnName:   columnName,
		Description:  fmt.Sprintf("Case variants of category values in column %s", quote(columnName)),
		Occurrences:  len(rows),
		TotalRows:    totalRows,
		Confidence:   0.95,
		SuggestedFix: fmt.Sprintf("map %d variant spellings to their most frequent casing", len(mapping)),
		Hints: map[string]string{
			HintVariant: VariantCase,
			HintMapping: strings.Join(mapping, ";"),
		},
		Rows: rows,
	}
	p.Severity = severityByFraction(p.AffectedFraction(), 1.1, 0.30, 0.10)
	for _, e := range examples {
		p.AddExample(e)
	}
	return p, true
}

func (d *CategoryVariationDetector) nearDuplicates(ctx context.Context, columnName string, totalRows int, keys []string, groups map[string]*categoryGroup) (preprocessing.DetectedPattern, bool, error) {
	// each rarer key maps to its most frequent similar partner
	partner := make(map[string]string)
	var examples []string
	for i := 0; i < len(keys); i++ {
		if err := ctx.Err(); err != nil {
			return preprocessing.DetectedPattern{}, false, err
		}
		for j := i + 1; j < len(keys); j++ {
			a, b := groups[keys[i]], groups[keys[j]]
			if isTypedLabel(a.key) && isTypedLabel(b.key) {
				continue
			}
			sim := Similarity(a.key, b.key)
			if sim < d.config.SimilarityThreshold {
				continue
			}
			rare, common := a, b
			if a.total > b.total || (a.total == b.total && a.key < b.key) {
				rare, common = b, a
			}
			if cur, ok := partner[rare.key]; !ok || groups[cur].total < common.total {
				partner[rare.key] = common.key
			}
			examples = append(examples, fmt.Sprintf("%s ~ %s (%.2f)", rare.dominant(), common.dominant(), sim))
		}
	}
	if len(partner) == 0 {
		return preprocessing.DetectedPattern{}, false, nil
	}

	var mapping []string
	var rows []int
	for rareKey, commonKey := range partner {
		target := groups[commonKey].dominant()
		for orig := range groups[rareKey].originals {
			mapping = append(mapping, orig+"=>"+target)
		}
		rows = append(rows, groups[rareKey].rows()...)
	}
	sort.Strings(mapping)
	sort.Ints(rows)

	p := preprocessing.DetectedPattern{
		Type:         preprocessing.PatternCategoryVariation,
		ColumnName:   columnName,
		Description:  fmt.Sprintf("Near-duplicate category spellings in column %s", quote(columnName)),
		Occurrences:  len(rows),
		TotalRows:    totalRows,
		Confidence:   0.7,
		SuggestedFix: fmt.Sprintf("review %d candidate typo pairs and merge them", len(examples)),
		Hints: map[string]string{
			HintVariant: VariantNearDuplicate,
			HintMapping: strings.Join(mapping, ";"),
		},
		Rows: rows,
	}
	p.Severity = severityByFraction(p.AffectedFraction(), 1.1, 0.30, 0.10)
	for _, e := range examples {
		p.AddExample(e)
	}
	return p, true, nil
}

// isTypedLabel reports whether a label reads as a number, date or boolean;
// two such labels differing by one character are distinct values, not typos
func isTypedLabel(s string) bool {
	return coercer.Classify(s) != coercer.BucketText
}
