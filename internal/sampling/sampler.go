package sampling

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/core"
	"ruleminer/domain/dataset"
	"ruleminer/internal/errors"
	"ruleminer/ports"
)

// Strategy selects how rows are drawn
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyStratified Strategy = "stratified"
	StrategyAuto       Strategy = "auto"
)

// cancelCheckInterval is how many rows are grouped between context checks
const cancelCheckInterval = 1024

// Config controls one sampling call
type Config struct {
	Strategy    Strategy `json:"strategy" yaml:"strategy"`
	LabelColumn string   `json:"label_column" yaml:"label_column"`
	RandomSeed  int64    `json:"random_seed" yaml:"random_seed"`
}

// DefaultConfig returns auto sampling with the fixed default seed
func DefaultConfig() Config {
	return Config{Strategy: StrategyAuto, RandomSeed: 42}
}

// Sampler draws reproducible row samples from a frame
type Sampler struct {
	logger ports.Logger
}

// NewSampler creates a sampler
func NewSampler(logger ports.Logger) *Sampler {
	return &Sampler{logger: logger}
}

// Sample draws ratio of the rows of data. The result keeps source row order.
// An empty source yields an empty sample for any valid ratio.
func (s *Sampler) Sample(ctx context.Context, data *dataset.Frame, ratio float64, config Config, progress ports.ProgressFunc) (*dataset.Frame, error) {
	if data == nil {
		return nil, errors.InvalidInput(core.ErrNilDataset)
	}
	if !(ratio > 0 && ratio <= 1) {
		return nil, errors.InvalidInput(fmt.Errorf("%w: got %v", core.ErrInvalidRatio, ratio))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(progress, 0)

	if data.RowCount() == 0 {
		report(progress, 1)
		return data.Take(nil), nil
	}

	strategy, err := s.resolveStrategy(data, config)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(config.RandomSeed))
	var rows []int
	switch strategy {
	case StrategyStratified:
		label, _ := data.Lookup(config.LabelColumn)
		rows, err = stratifiedRows(ctx, label, ratio, rng)
	default:
		rows = randomRows(data.RowCount(), ratio, rng)
	}
	if err != nil {
		return nil, err
	}
	report(progress, 0.5)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Ints(rows)
	sample := data.Take(rows)
	report(progress, 1)

	if s.logger != nil {
		s.logger.Debug("sampled %d of %d rows (ratio %.2f, %s, seed %d)",
			sample.RowCount(), data.RowCount(), ratio, strategy, config.RandomSeed)
	}
	return sample, nil
}

// resolveStrategy turns auto into a concrete strategy and validates stratified input
func (s *Sampler) resolveStrategy(data *dataset.Frame, config Config) (Strategy, error) {
	switch config.Strategy {
	case StrategyRandom:
		return StrategyRandom, nil
	case StrategyStratified:
		if config.LabelColumn == "" {
			return "", errors.InvalidInput(core.NewValidationError("label_column", "stratified sampling requires a label column"))
		}
		if _, ok := data.Lookup(config.LabelColumn); !ok {
			return "", errors.InvalidInput(core.NewColumnNotFoundError(config.LabelColumn))
		}
		return StrategyStratified, nil
	case StrategyAuto, "":
		if config.LabelColumn != "" {
			if _, ok := data.Lookup(config.LabelColumn); ok {
				return StrategyStratified, nil
			}
			if s.logger != nil {
				s.logger.Warn("label column %q not found, falling back to random sampling", config.LabelColumn)
			}
		}
		return StrategyRandom, nil
	}
	return "", errors.InvalidInput(core.NewValidationError("strategy", fmt.Sprintf("unknown strategy %q", config.Strategy)))
}

// sampleSize is round(n*ratio), capped at n
func sampleSize(n int, ratio float64) int {
	k := int(math.Round(float64(n) * ratio))
	if k > n {
		k = n
	}
	return k
}

// stratumSize is sampleSize with at least one row of a non-empty stratum, so
// no label disappears from the sample
func stratumSize(n int, ratio float64) int {
	k := sampleSize(n, ratio)
	if k < 1 && n > 0 {
		k = 1
	}
	return k
}

// randomRows picks sampleSize(n, ratio) distinct rows uniformly
func randomRows(n int, ratio float64, rng *rand.Rand) []int {
	return rng.Perm(n)[:sampleSize(n, ratio)]
}

// stratifiedRows samples ratio of each label partition independently
func stratifiedRows(ctx context.Context, label *dataset.Column, ratio float64, rng *rand.Rand) ([]int, error) {
	strata := make(map[string][]int)
	for i := 0; i < label.Len(); i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		key := ""
		if !coercer.Default.IsMissingCell(label, i) {
			key, _ = label.String(i)
		}
		strata[key] = append(strata[key], i)
	}

	// map order is random; sort keys so a seed always yields the same sample
	keys := make([]string, 0, len(strata))
	for k := range strata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows []int
	for _, k := range keys {
		members := strata[k]
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		rows = append(rows, members[:stratumSize(len(members), ratio)]...)
	}
	return rows, nil
}

func report(progress ports.ProgressFunc, fraction float64) {
	if progress != nil {
		progress(fraction)
	}
}
