package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"ruleminer/adapters/datareadiness"
	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/adapters/detectors"
	"ruleminer/adapters/tabular"
	"ruleminer/domain/core"
	"ruleminer/domain/dataset"
	"ruleminer/domain/datareadiness/profiling"
	domain "ruleminer/domain/hitl"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal"
	"ruleminer/internal/applier"
	"ruleminer/internal/config"
	"ruleminer/internal/discovery"
	"ruleminer/internal/errors"
	"ruleminer/internal/hitl"
	"ruleminer/internal/metrics"
	"ruleminer/internal/report"
	"ruleminer/internal/sampling"
	"ruleminer/internal/testkit"
	"ruleminer/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load(os.Getenv("RULEMINER_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed: %v", err)
		if errors.HasCode(err, errors.CodeInvalidInput) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *internal.Logger) error {
	store := tabular.NewStore(logger)
	data, err := loadData(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	pipeline := discovery.NewPipeline(
		sampling.NewSampler(logger),
		datareadiness.NewSampleAnalyzer(coercer.Default, profiling.DefaultAnalyzerConfig(), logger),
		discovery.NewEngine(detectors.NewEngine(detectorConfig(cfg.Detectors)), cfg.Discovery.Parallelism, logger),
		pipelineConfig(cfg),
		logger,
	).WithRecorder(recorder)

	result, err := pipeline.Run(ctx, data, func(fraction float64) {
		logger.Debug("discovery %.0f%%", fraction*100)
	})
	if err != nil {
		return err
	}

	decisions, err := resolveHITL(ctx, cfg, result, os.Stdin, os.Stdout, logger)
	if err != nil {
		return err
	}

	var applicable []*preprocessing.PreprocessingRule
	for _, r := range result.Rules {
		if r.CanApply() {
			applicable = append(applicable, r)
		}
	}
	a := applier.NewApplier(applier.Config{ContinueOnFailure: cfg.Applier.ContinueOnFailure}, coercer.Default, logger).
		WithRecorder(recorder)
	applied, err := a.ApplyRules(ctx, data, applicable, func(index, total int, message string) {
		logger.Info("[%d/%d] %s", index, total, message)
	})
	if err != nil {
		return err
	}

	if cfg.Input.OutputPath != "" {
		if err := store.Write(ctx, cfg.Input.OutputPath, tabular.FromFrame(data)); err != nil {
			return err
		}
	}

	rep := report.Report{
		Title:       reportTitle(cfg),
		Discovery:   result,
		Application: &applied,
		Decisions:   decisions,
		GeneratedAt: core.Now(),
	}
	paths := report.Paths{
		Markdown:  cfg.Report.MarkdownPath,
		HTML:      cfg.Report.HTMLPath,
		RulesYAML: cfg.Report.RulesYAML,
	}
	if err := report.WriteAll(rep, paths, logger); err != nil {
		return err
	}
	return writeMetrics(cfg.Report.MetricsPath, recorder)
}

// loadData reads the configured input, or generates a synthetic dirty dataset
// when none is configured
func loadData(ctx context.Context, cfg *config.Config, store *tabular.Store, logger ports.Logger) (*dataset.Frame, error) {
	if cfg.Input.Path == "" {
		logger.Info("no input configured, using synthetic data")
		return testkit.NewDirtyDataGenerator(testkit.DefaultDirtyDataConfig()).Generate(), nil
	}
	rows, err := store.Read(ctx, cfg.Input.Path)
	if err != nil {
		return nil, err
	}
	return tabular.ToFrame(rows, coercer.Default)
}

// resolveHITL settles human-gated rules. Interactive review asks on the
// terminal; auto-accept takes each recommended option. Either way every decision
// is written to the decision directory. With both off the rules stay proposed.
func resolveHITL(ctx context.Context, cfg *config.Config, result *discovery.Result, in io.Reader, out io.Writer, logger ports.Logger) (*domain.Summary, error) {
	if len(result.HITLRules) == 0 {
		return nil, nil
	}

	var prompter ports.PrompterPort
	switch {
	case cfg.HITL.Enabled:
		prompter = hitl.NewTerminalPrompter(in, out)
	case cfg.HITL.AutoAccept:
		logger.Warn("%d rules need review; accepting recommended options", len(result.HITLRules))
		prompter = hitl.AutoPrompter{}
	default:
		logger.Warn("%d rules need review and stay proposed; set HITL_ENABLED or HITL_AUTO_ACCEPT to resolve them",
			len(result.HITLRules))
		return nil, nil
	}

	store := hitl.NewDecisionLogger(cfg.HITL.DecisionDir, logger)
	workflow := hitl.NewWorkflow(nil, prompter, store, cfg.HITL.UserID, logger)
	res, err := workflow.Resolve(ctx, result.HITLRules, result.SessionID)
	if err != nil {
		return nil, err
	}
	logger.Info("review: %d approved, %d rejected", len(res.Approved), len(res.Rejected))

	summary, err := store.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func detectorConfig(c config.DetectorsConfig) detectors.DetectorConfig {
	dc := detectors.DefaultDetectorConfig()
	dc.ZScoreThreshold = c.ZScoreThreshold
	dc.OutlierMinFraction = c.OutlierMinFraction
	dc.OutlierMaxFraction = c.OutlierMaxFraction
	dc.MaxCategories = c.MaxCategories
	dc.SimilarityThreshold = c.SimilarityThreshold
	dc.TypeMinorityThreshold = c.TypeMinorityThreshold
	dc.EncodingConfidence = c.EncodingConfidence
	return dc
}

func pipelineConfig(cfg *config.Config) discovery.PipelineConfig {
	pc := discovery.DefaultPipelineConfig()
	pc.StageRatios = cfg.Discovery.StageRatios
	pc.MaxStages = cfg.Discovery.MaxStages
	pc.ConvergenceThreshold = cfg.Discovery.ConvergenceThreshold
	pc.Sampling = sampling.Config{
		Strategy:    sampling.Strategy(cfg.Sampling.Strategy),
		LabelColumn: cfg.Sampling.LabelColumn,
		RandomSeed:  cfg.Sampling.RandomSeed,
	}
	return pc
}

func reportTitle(cfg *config.Config) string {
	if cfg.Input.Path == "" {
		return "Preprocessing rules: synthetic data"
	}
	return "Preprocessing rules: " + filepath.Base(cfg.Input.Path)
}

func writeMetrics(path string, recorder *metrics.Recorder) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.IOError(path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	if err := recorder.WriteText(f); err != nil {
		f.Close()
		return errors.IOError(path, err)
	}
	return f.Close()
}
