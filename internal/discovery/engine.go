package discovery

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ruleminer/adapters/detectors"
	"ruleminer/domain/core"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/errors"
	"ruleminer/ports"
)

// Engine turns detector findings on a sample into an ordered rule list
type Engine struct {
	detectors   *detectors.Engine
	confidence  *ConfidenceCalculator
	convergence *ConvergenceDetector
	parallelism int
	logger      ports.Logger
}

// NewEngine creates a discovery engine; parallelism bounds concurrent column scans
func NewEngine(engine *detectors.Engine, parallelism int, logger ports.Logger) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{
		detectors:   engine,
		confidence:  NewConfidenceCalculator(engine),
		convergence: NewConvergenceDetector(DefaultModifiedEpsilon),
		parallelism: parallelism,
		logger:      logger,
	}
}

// DiscoverRules scans every column of sample and returns one rule per detected
// pattern, stamped with stage and sorted by priority then affected rows.
// A detector that fails on a column is logged and skipped.
func (e *Engine) DiscoverRules(ctx context.Context, sample *dataset.Frame, analysis *profiling.SampleAnalysis, stage int) ([]*preprocessing.PreprocessingRule, error) {
	if sample == nil {
		return nil, errors.InvalidInput(core.ErrNilDataset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	columns := sample.Columns()
	perColumn := make([][]preprocessing.DetectedPattern, len(columns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, col := range columns {
		g.Go(func() error {
			patterns, failures, err := e.detectors.DetectColumn(gctx, col)
			if err != nil {
				return err
			}
			for _, f := range failures {
				e.logger.Warn("stage %d: %v", stage, f)
			}
			perColumn[i] = patterns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rules []*preprocessing.PreprocessingRule
	for i, patterns := range perColumn {
		var column *profiling.ColumnAnalysis
		if analysis != nil {
			column, _ = analysis.Column(columns[i].Name())
		}
		for _, p := range patterns {
			rule, ok := NewRule(p, column, stage)
			if !ok {
				e.logger.Warn("stage %d: no rule type for pattern %s on %q", stage, p.Type, p.ColumnName)
				continue
			}
			rules = append(rules, rule)
		}
	}
	preprocessing.SortRules(rules)

	e.logger.Debug("stage %d: %d rules from %d columns", stage, len(rules), len(columns))
	return rules, nil
}

// CalculateConfidence scores rule against sampleA with sampleB as the stability reference
func (e *Engine) CalculateConfidence(ctx context.Context, rule *preprocessing.PreprocessingRule, sampleA, sampleB *dataset.Frame) (preprocessing.ConfidenceScore, error) {
	return e.confidence.Calculate(ctx, rule, sampleA, sampleB)
}

// HasConverged compares two stage rule sets by signature
func (e *Engine) HasConverged(previous, current []*preprocessing.PreprocessingRule, threshold float64) bool {
	return e.convergence.HasConverged(previous, current, threshold)
}

// ConvergenceInfo returns the full stage-over-stage comparison
func (e *Engine) ConvergenceInfo(previous, current []*preprocessing.PreprocessingRule, threshold float64) preprocessing.ConvergenceInfo {
	return e.convergence.Info(previous, current, threshold)
}
