package applier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/montanaflynn/stats"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/adapters/detectors"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/discovery"
	statprof "ruleminer/internal/profiling"
)

// Missing value strategies
const (
	StrategyMedian   = "median"
	StrategyMean     = "mean"
	StrategyMode     = "mode"
	StrategyConstant = "constant"
	StrategyDropRows = "drop_rows"
)

// Outlier strategies
const (
	StrategyCap    = "cap"
	StrategyRemove = "remove"
	StrategyKeep   = "keep"
)

// Conversion targets
const (
	TargetNumeric  = "numeric"
	TargetBoolean  = "boolean"
	TargetDateTime = "datetime"
	TargetText     = "text"
)

func (a *Applier) isNumericColumn(col *dataset.Column) bool {
	if col.IsNumeric() {
		return true
	}
	return col.IsString() && a.coercer.InferColumnType(col) == profiling.TypeNumeric
}

// numericAt reads a cell as a number, parsing separators in string columns
func numericAt(col *dataset.Column, i int) (float64, bool) {
	if col.IsString() {
		s, ok := col.String(i)
		if !ok {
			return 0, false
		}
		return coercer.ParseNumeric(s)
	}
	return col.Float(i)
}

// setNumber writes f in the column's own representation
func setNumber(col *dataset.Column, i int, f float64) {
	switch col.Kind() {
	case dataset.KindString:
		col.Set(i, strconv.FormatFloat(f, 'f', -1, 64))
	case dataset.KindInt:
		col.Set(i, int64(math.Round(f)))
	default:
		col.Set(i, f)
	}
}

func requireString(col *dataset.Column) error {
	if !col.IsString() {
		return fmt.Errorf("column %q is %s, not string", col.Name(), col.Kind())
	}
	return nil
}

func (a *Applier) applyMissing(ctx context.Context, data *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (outcome, error) {
	var missing []int
	var values []float64
	for i := 0; i < col.Len(); i++ {
		if err := checkCancel(ctx, i); err != nil {
			return outcome{}, err
		}
		if a.coercer.IsMissingCell(col, i) {
			missing = append(missing, i)
			continue
		}
		if v, ok := numericAt(col, i); ok {
			values = append(values, v)
		}
	}
	if len(missing) == 0 {
		return outcome{}, nil
	}

	numeric := a.isNumericColumn(col)
	fallback := StrategyMode
	if numeric {
		fallback = StrategyMedian
	}

	switch strategy := rule.Param(discovery.ParamStrategy, fallback); strategy {
	case StrategyMedian, StrategyMean:
		if len(values) == 0 {
			return outcome{}, fmt.Errorf("column %q has no numeric values to impute from", col.Name())
		}
		var fill float64
		var err error
		if strategy == StrategyMedian {
			fill, err = stats.Median(values)
		} else {
			fill, err = stats.Mean(values)
		}
		if err != nil {
			return outcome{}, err
		}
		for _, i := range missing {
			setNumber(col, i, fill)
		}
	case StrategyMode:
		mode, ok := a.modeOf(col)
		if !ok {
			return outcome{}, fmt.Errorf("column %q has no values to impute from", col.Name())
		}
		if err := fillConstant(col, missing, mode); err != nil {
			return outcome{}, err
		}
	case StrategyConstant:
		value := rule.Param(discovery.ParamValue, "")
		if value == "" {
			return outcome{}, fmt.Errorf("constant strategy requires a %q parameter", discovery.ParamValue)
		}
		if err := fillConstant(col, missing, value); err != nil {
			return outcome{}, err
		}
	case StrategyDropRows:
		drop := make(map[int]bool, len(missing))
		for _, i := range missing {
			drop[i] = true
		}
		return outcome{affected: data.DropRows(drop)}, nil
	default:
		return outcome{}, fmt.Errorf("unknown missing value strategy %q", strategy)
	}
	return outcome{affected: len(missing)}, nil
}

func fillConstant(col *dataset.Column, rows []int, value string) error {
	if col.IsString() {
		for _, i := range rows {
			col.Set(i, value)
		}
		return nil
	}
	f, ok := coercer.ParseNumeric(value)
	if !ok {
		return fmt.Errorf("fill value %q is not numeric for column %q", value, col.Name())
	}
	for _, i := range rows {
		setNumber(col, i, f)
	}
	return nil
}

// modeOf returns the most frequent trimmed non-missing value; ties go to the smallest
func (a *Applier) modeOf(col *dataset.Column) (string, bool) {
	counts := make(map[string]int)
	for i := 0; i < col.Len(); i++ {
		if a.coercer.IsMissingCell(col, i) {
			continue
		}
		s, _ := col.String(i)
		counts[strings.TrimSpace(s)]++
	}
	best, bestCount := "", 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best, bestCount > 0
}

func (a *Applier) applyOutliers(ctx context.Context, data *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (outcome, error) {
	strategy := rule.Param(discovery.ParamStrategy, StrategyCap)
	if strategy == StrategyKeep {
		return outcome{}, nil
	}

	var values []float64
	var rows []int
	for i := 0; i < col.Len(); i++ {
		if err := checkCancel(ctx, i); err != nil {
			return outcome{}, err
		}
		if a.coercer.IsMissingCell(col, i) {
			continue
		}
		if v, ok := numericAt(col, i); ok {
			values = append(values, v)
			rows = append(rows, i)
		}
	}

	lower, upper, err := outlierBounds(rule, values)
	if err != nil {
		return outcome{}, err
	}

	switch strategy {
	case StrategyCap:
		affected := 0
		for k, v := range values {
			switch {
			case v < lower:
				setNumber(col, rows[k], lower)
				affected++
			case v > upper:
				setNumber(col, rows[k], upper)
				affected++
			}
		}
		return outcome{affected: affected}, nil
	case StrategyRemove:
		drop := make(map[int]bool)
		for k, v := range values {
			if v < lower || v > upper {
				drop[rows[k]] = true
			}
		}
		return outcome{affected: data.DropRows(drop)}, nil
	}
	return outcome{}, fmt.Errorf("unknown outlier strategy %q", strategy)
}

// outlierBounds prefers the bounds recorded on the rule and falls back to the
// IQR fences of the full column
func outlierBounds(rule *preprocessing.PreprocessingRule, values []float64) (float64, float64, error) {
	lo, errLo := strconv.ParseFloat(rule.Param(discovery.ParamLowerBound, ""), 64)
	hi, errHi := strconv.ParseFloat(rule.Param(discovery.ParamUpperBound, ""), 64)
	if errLo == nil && errHi == nil && lo <= hi {
		return lo, hi, nil
	}
	if len(values) < 4 {
		return 0, 0, fmt.Errorf("need at least 4 numeric values to compute outlier bounds, have %d", len(values))
	}
	q1, _, q3 := statprof.Quartiles(values)
	lo, hi = statprof.IQRBounds(q1, q3)
	return lo, hi, nil
}

func (a *Applier) applyWhitespace(ctx context.Context, _ *dataset.Frame, col *dataset.Column, _ *preprocessing.PreprocessingRule) (outcome, error) {
	if err := requireString(col); err != nil {
		return outcome{}, err
	}
	return mapStrings(ctx, col, func(s string) (string, bool) {
		return NormalizeWhitespace(s), true
	})
}

// NormalizeWhitespace trims, collapses interior runs and turns tabs and line breaks into spaces
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// mapStrings rewrites every non-null string cell through fn; a false return counts as skipped
func mapStrings(ctx context.Context, col *dataset.Column, fn func(string) (string, bool)) (outcome, error) {
	var out outcome
	for i := 0; i < col.Len(); i++ {
		if err := checkCancel(ctx, i); err != nil {
			return outcome{}, err
		}
		s, ok := col.String(i)
		if !ok {
			continue
		}
		next, ok := fn(s)
		if !ok {
			out.skipped++
			continue
		}
		if next != s {
			col.Set(i, next)
			out.affected++
		}
	}
	return out, nil
}

func (a *Applier) applyCategoryMapping(ctx context.Context, _ *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (outcome, error) {
	if err := requireString(col); err != nil {
		return outcome{}, err
	}
	mapping, err := ParseMapping(rule.Param(discovery.ParamMapping, ""))
	if err != nil {
		return outcome{}, err
	}
	if len(mapping) == 0 {
		mapping = a.foldMapping(col)
	}
	return mapStrings(ctx, col, func(s string) (string, bool) {
		if a.coercer.IsMissing(s) {
			return s, true
		}
		if to, ok := mapping[strings.TrimSpace(s)]; ok {
			return to, true
		}
		return s, true
	})
}

// ParseMapping reads "from=>to;from=>to" pairs
func ParseMapping(raw string) (map[string]string, error) {
	mapping := make(map[string]string)
	for _, entry := range strings.Split(raw, ";") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		from, to, ok := strings.Cut(entry, "=>")
		if !ok {
			return nil, fmt.Errorf("malformed mapping entry %q", entry)
		}
		mapping[from] = to
	}
	return mapping, nil
}

// foldMapping maps each spelling to the most frequent spelling sharing its
// case-folded form
func (a *Applier) foldMapping(col *dataset.Column) map[string]string {
	upper := cases.Upper(language.Und)
	groups := make(map[string]map[string]int)
	for i := 0; i < col.Len(); i++ {
		if a.coercer.IsMissingCell(col, i) {
			continue
		}
		s, _ := col.String(i)
		orig := strings.TrimSpace(s)
		key := upper.String(orig)
		if groups[key] == nil {
			groups[key] = make(map[string]int)
		}
		groups[key][orig]++
	}

	mapping := make(map[string]string)
	for _, spellings := range groups {
		if len(spellings) < 2 {
			continue
		}
		names := make([]string, 0, len(spellings))
		for name := range spellings {
			names = append(names, name)
		}
		sort.Strings(names)
		dominant := names[0]
		for _, name := range names[1:] {
			if spellings[name] > spellings[dominant] {
				dominant = name
			}
		}
		for _, name := range names {
			if name != dominant {
				mapping[name] = dominant
			}
		}
	}
	return mapping
}

func (a *Applier) applyTypeConversion(ctx context.Context, data *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (outcome, error) {
	target := rule.Param(discovery.ParamTargetType, TargetNumeric)

	var kind dataset.ColumnKind
	var convert func(i int) (interface{}, bool)
	switch target {
	case TargetNumeric:
		kind = dataset.KindFloat
		convert = func(i int) (interface{}, bool) { return numericAt(col, i) }
	case TargetBoolean:
		kind = dataset.KindBool
		convert = func(i int) (interface{}, bool) {
			s, _ := col.String(i)
			return coercer.ParseBoolean(s)
		}
	case TargetDateTime:
		kind = dataset.KindDateTime
		convert = func(i int) (interface{}, bool) {
			s, _ := col.String(i)
			return coercer.ParseDateTime(s)
		}
	case TargetText:
		if col.IsString() {
			return outcome{}, nil
		}
		kind = dataset.KindString
		convert = func(i int) (interface{}, bool) { return col.String(i) }
	default:
		return outcome{}, fmt.Errorf("unknown conversion target %q", target)
	}

	var out outcome
	cells := make([]interface{}, col.Len())
	for i := 0; i < col.Len(); i++ {
		if err := checkCancel(ctx, i); err != nil {
			return outcome{}, err
		}
		if a.coercer.IsMissingCell(col, i) {
			continue
		}
		v, ok := convert(i)
		if !ok {
			// unparseable values become missing
			out.skipped++
			continue
		}
		cells[i] = v
		out.affected++
	}
	if err := data.ReplaceColumn(dataset.NewColumn(col.Name(), kind, cells)); err != nil {
		return outcome{}, err
	}
	return out, nil
}

func (a *Applier) applyEncoding(ctx context.Context, _ *dataset.Frame, col *dataset.Column, _ *preprocessing.PreprocessingRule) (outcome, error) {
	if err := requireString(col); err != nil {
		return outcome{}, err
	}
	ratio := detectors.DefaultDetectorConfig().EncodingLetterRatio
	return mapStrings(ctx, col, func(s string) (string, bool) {
		return RepairEncoding(s, ratio), true
	})
}

// RepairEncoding reverses UTF-8 text that was decoded as Latin-1 or cp1252,
// drops replacement characters and NFC-normalizes the result
func RepairEncoding(s string, letterRatio float64) string {
	out := s
	if detectors.HasMojibake(out) || detectors.IsSuspiciousMultibyte(out, letterRatio) {
		if repaired, ok := reverseLatin1(out); ok {
			out = repaired
		}
	}
	out = strings.ReplaceAll(out, string(utf8.RuneError), "")
	return norm.NFC.String(out)
}

func reverseLatin1(s string) (string, bool) {
	for _, cm := range []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1} {
		b, err := cm.NewEncoder().Bytes([]byte(s))
		if err == nil && utf8.Valid(b) {
			return string(b), true
		}
	}
	return "", false
}

func (a *Applier) applyDateFormat(ctx context.Context, _ *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (outcome, error) {
	if !col.IsString() {
		// typed datetimes carry no textual format
		return outcome{}, nil
	}
	layout := rule.Param(discovery.ParamTargetFormat, discovery.ISODateLayout)
	return mapStrings(ctx, col, func(s string) (string, bool) {
		if a.coercer.IsMissing(s) {
			return s, true
		}
		t, ok := ParseDate(s)
		if !ok {
			return s, false
		}
		return t.Format(layout), true
	})
}

var (
	usLayouts = []string{"1/2/2006", "1/2/2006 15:04", "1/2/2006 15:04:05"}
	euLayouts = []string{"2.1.2006", "2.1.2006 15:04", "2.1.2006 15:04:05"}
)

// ParseDate reads ISO, US (M/D/Y) and EU (D.M.Y) dates, falling back to the
// coercer's datetime layouts
func ParseDate(s string) (time.Time, bool) {
	clean := strings.TrimSpace(s)
	var layouts []string
	switch detectors.ClassifyDate(clean) {
	case detectors.DateUS:
		layouts = usLayouts
	case detectors.DateEU:
		layouts = euLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, true
		}
	}
	return coercer.ParseDateTime(clean)
}

func (a *Applier) applyNumericFormat(ctx context.Context, _ *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (outcome, error) {
	if !col.IsString() {
		return outcome{}, nil
	}
	sep := rule.Param(discovery.ParamDecimalSep, ".")
	return mapStrings(ctx, col, func(s string) (string, bool) {
		if a.coercer.IsMissing(s) {
			return s, true
		}
		return NormalizeNumber(s, sep)
	})
}

// NormalizeNumber rewrites a formatted number as plain dot-decimal text.
// decimalSep decides whether a lone separator followed by three digits is a
// decimal mark or a thousands mark.
func NormalizeNumber(s, decimalSep string) (string, bool) {
	t := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	lastComma := strings.LastIndex(t, ",")
	lastDot := strings.LastIndex(t, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			t = strings.ReplaceAll(t, ".", "")
			t = strings.Replace(t, ",", ".", 1)
		} else {
			t = strings.ReplaceAll(t, ",", "")
		}
	case lastComma >= 0:
		digitsAfter := len(t) - lastComma - 1
		if strings.Count(t, ",") > 1 || (decimalSep != "," && digitsAfter == 3) {
			t = strings.ReplaceAll(t, ",", "")
		} else {
			t = strings.Replace(t, ",", ".", 1)
		}
	case lastDot >= 0:
		digitsAfter := len(t) - lastDot - 1
		if strings.Count(t, ".") > 1 || (decimalSep == "," && digitsAfter == 3) {
			t = strings.ReplaceAll(t, ".", "")
		}
	}
	if _, err := strconv.ParseFloat(t, 64); err != nil {
		return s, false
	}
	return t, true
}

func applyBusinessLogic(context.Context, *dataset.Frame, *dataset.Column, *preprocessing.PreprocessingRule) (outcome, error) {
	return outcome{}, nil
}
