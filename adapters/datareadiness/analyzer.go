package datareadiness

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/core"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/dataset"
	"ruleminer/internal/errors"
	iprofiling "ruleminer/internal/profiling"
	"ruleminer/ports"
)

// SampleAnalyzer implements ports.AnalyzerPort over dataset frames
type SampleAnalyzer struct {
	coercer *coercer.TypeCoercer
	config  profiling.AnalyzerConfig
	logger  ports.Logger
}

// NewSampleAnalyzer creates an analyzer
func NewSampleAnalyzer(c *coercer.TypeCoercer, config profiling.AnalyzerConfig, logger ports.Logger) *SampleAnalyzer {
	if c == nil {
		c = coercer.Default
	}
	if config.TopN <= 0 {
		config.TopN = profiling.DefaultAnalyzerConfig().TopN
	}
	return &SampleAnalyzer{coercer: c, config: config, logger: logger}
}

var _ ports.AnalyzerPort = (*SampleAnalyzer)(nil)

// Analyze profiles every column of sample
func (a *SampleAnalyzer) Analyze(ctx context.Context, sample *dataset.Frame, stage int, ratio float64) (*profiling.SampleAnalysis, error) {
	if sample == nil {
		return nil, errors.InvalidInput(core.ErrNilDataset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	analysis := &profiling.SampleAnalysis{
		StageNumber:          stage,
		SampleRatio:          ratio,
		Timestamp:            core.Now(),
		RowCount:             sample.RowCount(),
		ColumnCount:          sample.ColumnCount(),
		Columns:              make([]profiling.ColumnAnalysis, 0, sample.ColumnCount()),
		EstimatedMemoryBytes: sample.EstimatedMemoryBytes(),
	}
	for i, col := range sample.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		analysis.Columns = append(analysis.Columns, a.analyzeColumn(i, col))
	}
	analysis.QualityScore = a.qualityScore(analysis)

	if a.logger != nil {
		a.logger.Debug("stage %d: analyzed %d columns over %d rows in %v (quality %.2f)",
			stage, analysis.ColumnCount, analysis.RowCount, time.Since(start), analysis.QualityScore)
	}
	return analysis, nil
}

func (a *SampleAnalyzer) analyzeColumn(index int, col *dataset.Column) profiling.ColumnAnalysis {
	ca := profiling.ColumnAnalysis{
		ColumnName:  col.Name(),
		ColumnIndex: index,
		DataType:    a.coercer.InferColumnType(col),
		TotalRows:   col.Len(),
	}

	for i := 0; i < col.Len(); i++ {
		if a.coercer.IsMissingCell(col, i) {
			ca.NullCount++
		}
	}
	ca.NonNullCount = ca.TotalRows - ca.NullCount
	if ca.TotalRows > 0 {
		ca.MissingPercentage = float64(ca.NullCount) / float64(ca.TotalRows) * 100
	}

	if ca.NonNullCount > 0 {
		if col.IsNumeric() || ca.DataType == profiling.TypeNumeric {
			ca.NumericStats = a.numericStats(col)
		} else {
			ca.CategoricalStats = a.categoricalStats(col)
		}
	}

	a.attachIssues(&ca)
	return ca
}

func (a *SampleAnalyzer) numericStats(col *dataset.Column) *profiling.NumericStats {
	values := make([]float64, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if a.coercer.IsMissingCell(col, i) {
			continue
		}
		var f float64
		var ok bool
		if col.IsString() {
			s, _ := col.String(i)
			f, ok = coercer.ParseNumeric(s)
		} else {
			f, ok = col.Float(i)
		}
		if ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return nil
	}

	summary := iprofiling.Summarize(values)
	outliers := iprofiling.OutlierUnion(values, iprofiling.ZScoreThreshold)
	return &profiling.NumericStats{
		Mean:              summary.Mean,
		StdDev:            summary.StdDev,
		Min:               summary.Min,
		Max:               summary.Max,
		Median:            summary.Median,
		OutlierCount:      len(outliers),
		OutlierPercentage: float64(len(outliers)) / float64(len(values)) * 100,
	}
}

func (a *SampleAnalyzer) categoricalStats(col *dataset.Column) *profiling.CategoricalStats {
	counts := make(map[string]int)
	total := 0
	for i := 0; i < col.Len(); i++ {
		if a.coercer.IsMissingCell(col, i) {
			continue
		}
		s, _ := col.String(i)
		counts[strings.TrimSpace(s)]++
		total++
	}

	top := make([]profiling.ValueCount, 0, len(counts))
	for v, n := range counts {
		top = append(top, profiling.ValueCount{Value: v, Count: n, Ratio: float64(n) / float64(total)})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Value < top[j].Value
	})
	if len(top) > a.config.TopN {
		top = top[:a.config.TopN]
	}

	limit := math.Max(float64(a.config.HighCardinalityMinUnique), a.config.HighCardinalityRatio*float64(col.Len()))
	return &profiling.CategoricalStats{
		UniqueCount:       len(counts),
		Entropy:           iprofiling.Entropy(counts),
		TopValues:         top,
		IsHighCardinality: float64(len(counts)) > limit,
	}
}

func (a *SampleAnalyzer) attachIssues(ca *profiling.ColumnAnalysis) {
	ca.QualityIssues = []profiling.QualityIssue{}
	ca.RecommendedActions = []string{}
	add := func(issue profiling.QualityIssue, action string) {
		ca.QualityIssues = append(ca.QualityIssues, issue)
		ca.RecommendedActions = append(ca.RecommendedActions, action)
	}

	switch {
	case ca.MissingPercentage >= a.config.HighMissingPercent:
		add(profiling.IssueHighMissingValues, "Consider dropping the column or collecting more data")
	case ca.MissingPercentage >= a.config.ModerateMissingPercent:
		add(profiling.IssueModerateMissingValues, "Impute missing values and add a missing indicator")
	case ca.MissingPercentage >= a.config.LowMissingPercent:
		if ca.NumericStats != nil {
			add(profiling.IssueLowMissingValues, "Fill missing with median")
		} else {
			add(profiling.IssueLowMissingValues, "Fill missing with mode")
		}
	}

	if ns := ca.NumericStats; ns != nil {
		if ns.OutlierPercentage > a.config.HighOutlierPercent {
			add(profiling.IssueHighOutliers, "Cap outliers at the IQR fences or review them")
		}
		if ns.Min == ns.Max && ca.NonNullCount > 1 {
			add(profiling.IssueConstantColumn, "Drop the constant column")
		}
	}
	if cs := ca.CategoricalStats; cs != nil {
		if cs.IsHighCardinality {
			add(profiling.IssueHighCardinality, "Consider target encoding or grouping rare values")
		}
		if cs.UniqueCount == 1 && ca.NonNullCount > 1 {
			add(profiling.IssueConstantColumn, "Drop the constant column")
		}
	}
}

// qualityScore blends the mean and the worst column score, weighted toward the
// worst so that one badly broken column keeps the dataset below 0.6 however
// many clean columns surround it
func (a *SampleAnalyzer) qualityScore(analysis *profiling.SampleAnalysis) float64 {
	if len(analysis.Columns) == 0 {
		return 0
	}
	sum, worst := 0.0, 1.0
	for i := range analysis.Columns {
		s := columnScore(&analysis.Columns[i])
		sum += s
		worst = math.Min(worst, s)
	}
	mean := sum / float64(len(analysis.Columns))
	return clamp01(0.4*mean + 0.6*worst)
}

func columnScore(ca *profiling.ColumnAnalysis) float64 {
	present := 1 - ca.MissingPercentage/100
	score := present * present
	if ca.NumericStats != nil {
		score *= 1 - 0.5*ca.NumericStats.OutlierPercentage/100
	}
	if ca.HasIssue(profiling.IssueHighCardinality) {
		score *= 0.9
	}
	if ca.HasIssue(profiling.IssueConstantColumn) {
		score *= 0.8
	}
	return clamp01(score)
}

// HasConverged reports whether the per-column drift between two analyses is
// below threshold. Drift per column is the largest of the missing-rate shift,
// the mean shift in previous standard deviations and the relative entropy shift,
// each capped at 1; a column present in only one analysis counts as 1.
func (a *SampleAnalyzer) HasConverged(previous, current *profiling.SampleAnalysis, threshold float64) (bool, error) {
	if previous == nil {
		return false, errors.InvalidInput(core.NewValidationError("previous", "analysis is nil"))
	}
	if current == nil {
		return false, errors.InvalidInput(core.NewValidationError("current", "analysis is nil"))
	}
	drift := Drift(previous, current)
	if a.logger != nil {
		a.logger.Debug("analysis drift %.4f (threshold %.4f)", drift, threshold)
	}
	return drift < threshold, nil
}

// Drift is the mean per-column drift between two analyses
func Drift(previous, current *profiling.SampleAnalysis) float64 {
	names := make(map[string]bool)
	for _, c := range previous.Columns {
		names[c.ColumnName] = true
	}
	for _, c := range current.Columns {
		names[c.ColumnName] = true
	}
	if len(names) == 0 {
		return 0
	}

	total := 0.0
	for name := range names {
		p, okP := previous.Column(name)
		c, okC := current.Column(name)
		if !okP || !okC {
			total++
			continue
		}
		total += columnDrift(p, c)
	}
	return total / float64(len(names))
}

func columnDrift(p, c *profiling.ColumnAnalysis) float64 {
	drift := math.Abs(p.MissingPercentage-c.MissingPercentage) / 100
	switch {
	case p.NumericStats != nil && c.NumericStats != nil:
		scale := p.NumericStats.StdDev
		if scale == 0 {
			scale = math.Max(math.Abs(p.NumericStats.Mean), 1)
		}
		drift = math.Max(drift, math.Min(1, math.Abs(p.NumericStats.Mean-c.NumericStats.Mean)/scale))
	case p.CategoricalStats != nil && c.CategoricalStats != nil:
		scale := math.Max(p.CategoricalStats.Entropy, 1)
		drift = math.Max(drift, math.Min(1, math.Abs(p.CategoricalStats.Entropy-c.CategoricalStats.Entropy)/scale))
	case (p.NumericStats == nil) != (c.NumericStats == nil):
		drift = 1
	}
	return drift
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
