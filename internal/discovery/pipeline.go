package discovery

import (
	"context"
	"fmt"
	"time"

	"ruleminer/domain/core"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/errors"
	"ruleminer/internal/sampling"
	"ruleminer/ports"
)

// PipelineConfig controls the staged discovery loop
type PipelineConfig struct {
	StageRatios          []float64       `json:"stage_ratios" yaml:"stage_ratios"`
	MaxStages            int             `json:"max_stages" yaml:"max_stages"`
	ConvergenceThreshold float64         `json:"convergence_threshold" yaml:"convergence_threshold"`
	Sampling             sampling.Config `json:"sampling" yaml:"sampling"`
}

// DefaultPipelineConfig returns the 10/30/50/70/100% schedule
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		StageRatios:          []float64{0.1, 0.3, 0.5, 0.7, 1.0},
		MaxStages:            5,
		ConvergenceThreshold: DefaultConvergenceThreshold,
		Sampling:             sampling.DefaultConfig(),
	}
}

// StageResult captures one discovery stage
type StageResult struct {
	Stage       int                                `json:"stage"`
	Ratio       float64                            `json:"ratio"`
	SampleRows  int                                `json:"sample_rows"`
	Analysis    *profiling.SampleAnalysis          `json:"analysis"`
	Rules       []*preprocessing.PreprocessingRule `json:"rules"`
	Convergence *preprocessing.ConvergenceInfo     `json:"convergence,omitempty"`
	DataStable  bool                               `json:"data_stable"`
	DurationMs  int64                              `json:"duration_ms"`
}

// Result is the outcome of a full discovery run
type Result struct {
	SessionID   core.SessionID                     `json:"session_id"`
	Stages      []StageResult                      `json:"stages"`
	Rules       []*preprocessing.PreprocessingRule `json:"rules"`
	AutoRules   []*preprocessing.PreprocessingRule `json:"auto_rules"`
	HITLRules   []*preprocessing.PreprocessingRule `json:"hitl_rules"`
	Converged   bool                               `json:"converged"`
	StartedAt   core.Timestamp                     `json:"started_at"`
	CompletedAt core.Timestamp                     `json:"completed_at"`
}

// FinalStage returns the last stage run, or nil
func (r *Result) FinalStage() *StageResult {
	if len(r.Stages) == 0 {
		return nil
	}
	return &r.Stages[len(r.Stages)-1]
}

// StageRecorder receives stage-level metrics
type StageRecorder interface {
	StageCompleted(duration time.Duration, ruleTypes []string)
	ConvergenceChecked(changeRate float64)
}

// Pipeline runs sample, analyze, discover, score and converge over growing samples
type Pipeline struct {
	sampler  *sampling.Sampler
	analyzer ports.AnalyzerPort
	engine   *Engine
	config   PipelineConfig
	recorder StageRecorder
	logger   ports.Logger
}

// NewPipeline wires a pipeline
func NewPipeline(sampler *sampling.Sampler, analyzer ports.AnalyzerPort, engine *Engine, config PipelineConfig, logger ports.Logger) *Pipeline {
	return &Pipeline{
		sampler:  sampler,
		analyzer: analyzer,
		engine:   engine,
		config:   config,
		logger:   logger,
	}
}

// WithRecorder attaches a metrics recorder
func (p *Pipeline) WithRecorder(r StageRecorder) *Pipeline {
	p.recorder = r
	return p
}

// schedule returns the stage ratios capped by MaxStages
func (p *Pipeline) schedule() ([]float64, error) {
	ratios := p.config.StageRatios
	if len(ratios) == 0 {
		return nil, errors.InvalidInput(core.NewValidationError("stage_ratios", "at least one stage is required"))
	}
	if p.config.MaxStages > 0 && len(ratios) > p.config.MaxStages {
		ratios = ratios[:p.config.MaxStages]
	}
	for _, r := range ratios {
		if !(r > 0 && r <= 1) {
			return nil, errors.InvalidInput(fmt.Errorf("%w: got %v", core.ErrInvalidRatio, r))
		}
	}
	return ratios, nil
}

// Run executes stages until the rule set converges or the schedule is exhausted.
// Stage n samples with seed+n; the first stage scores rules against its own
// sample, later stages against the previous stage's sample.
func (p *Pipeline) Run(ctx context.Context, data *dataset.Frame, progress ports.ProgressFunc) (*Result, error) {
	if data == nil {
		return nil, errors.InvalidInput(core.ErrNilDataset)
	}
	ratios, err := p.schedule()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{SessionID: core.NewSessionID(), StartedAt: core.Now()}
	report(progress, 0)

	var prevSample *dataset.Frame
	var prevAnalysis *profiling.SampleAnalysis
	var prevRules []*preprocessing.PreprocessingRule

	for i, ratio := range ratios {
		stage := i + 1
		start := time.Now()

		cfg := p.config.Sampling
		cfg.RandomSeed += int64(stage)
		sample, err := p.sampler.Sample(ctx, data, ratio, cfg, nil)
		if err != nil {
			return nil, err
		}
		analysis, err := p.analyzer.Analyze(ctx, sample, stage, ratio)
		if err != nil {
			return nil, err
		}
		rules, err := p.engine.DiscoverRules(ctx, sample, analysis, stage)
		if err != nil {
			return nil, err
		}

		reference := sample
		if prevSample != nil {
			reference = prevSample
		}
		for _, rule := range rules {
			score, err := p.engine.CalculateConfidence(ctx, rule, sample, reference)
			if err != nil {
				return nil, err
			}
			rule.Score = &score
		}

		sr := StageResult{
			Stage:      stage,
			Ratio:      ratio,
			SampleRows: sample.RowCount(),
			Analysis:   analysis,
			Rules:      rules,
		}
		if prevAnalysis != nil {
			stable, err := p.analyzer.HasConverged(prevAnalysis, analysis, p.config.ConvergenceThreshold)
			if err != nil {
				return nil, err
			}
			sr.DataStable = stable
		}

		converged := false
		if stage > 1 {
			info := p.engine.ConvergenceInfo(prevRules, rules, p.config.ConvergenceThreshold)
			sr.Convergence = &info
			converged = info.HasConverged
			if p.recorder != nil {
				p.recorder.ConvergenceChecked(info.ChangeRate)
			}
		}

		elapsed := time.Since(start)
		sr.DurationMs = elapsed.Milliseconds()
		result.Stages = append(result.Stages, sr)
		if p.recorder != nil {
			p.recorder.StageCompleted(elapsed, ruleTypes(rules))
		}
		p.logStage(sr)
		report(progress, float64(stage)/float64(len(ratios)))

		prevSample, prevAnalysis, prevRules = sample, analysis, rules
		if converged {
			result.Converged = true
			break
		}
	}

	result.Rules = prevRules
	result.AutoRules, result.HITLRules = preprocessing.SplitByHITL(prevRules)
	result.CompletedAt = core.Now()
	report(progress, 1)

	p.logger.Info("discovery finished after %d stages: %d rules (%d auto, %d need review), converged=%t",
		len(result.Stages), len(result.Rules), len(result.AutoRules), len(result.HITLRules), result.Converged)
	return result, nil
}

func (p *Pipeline) logStage(sr StageResult) {
	status := "first stage"
	if sr.Convergence != nil {
		status = sr.Convergence.Status
	}
	p.logger.Info("stage %d (%.0f%%, %d rows): %d rules, %s, data stable=%t",
		sr.Stage, sr.Ratio*100, sr.SampleRows, len(sr.Rules), status, sr.DataStable)
}

func ruleTypes(rules []*preprocessing.PreprocessingRule) []string {
	types := make([]string, len(rules))
	for i, r := range rules {
		types[i] = string(r.Type)
	}
	return types
}

func report(progress ports.ProgressFunc, fraction float64) {
	if progress != nil {
		progress(fraction)
	}
}
