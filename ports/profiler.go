package ports

import (
	"context"

	"ruleminer/domain/dataset"
	"ruleminer/domain/datareadiness/profiling"
)

// AnalyzerPort profiles a sample for one discovery stage
type AnalyzerPort interface {
	Analyze(ctx context.Context, sample *dataset.Frame, stage int, ratio float64) (*profiling.SampleAnalysis, error)
	HasConverged(previous, current *profiling.SampleAnalysis, threshold float64) (bool, error)
}
