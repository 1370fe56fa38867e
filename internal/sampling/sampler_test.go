package sampling

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleminer/domain/core"
	"ruleminer/domain/dataset"
	"ruleminer/internal"
	"ruleminer/internal/errors"
)

func idFrame(n int, labels func(i int) string) *dataset.Frame {
	ids := make([]float64, n)
	lbl := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = float64(i)
		lbl[i] = labels(i)
	}
	return dataset.MustFrame(
		dataset.NewFloatColumn("id", ids),
		dataset.NewStringColumn("label", lbl),
	)
}

func ids(t *testing.T, f *dataset.Frame) []float64 {
	t.Helper()
	col, ok := f.Column("id")
	require.True(t, ok)
	values, _ := col.NumericValues()
	return values
}

func newSampler() *Sampler {
	return NewSampler(internal.NewNopLogger())
}

func TestSample_RandomSizeAndReproducibility(t *testing.T) {
	data := idFrame(1000, func(int) string { return "x" })
	cfg := Config{Strategy: StrategyRandom, RandomSeed: 7}

	a, err := newSampler().Sample(context.Background(), data, 0.1, cfg, nil)
	require.NoError(t, err)
	b, err := newSampler().Sample(context.Background(), data, 0.1, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, 100, a.RowCount())
	assert.Equal(t, ids(t, a), ids(t, b))
	assert.IsIncreasing(t, ids(t, a))

	cfg.RandomSeed = 8
	c, err := newSampler().Sample(context.Background(), data, 0.1, cfg, nil)
	require.NoError(t, err)
	assert.NotEqual(t, ids(t, a), ids(t, c))
}

func TestSample_StratifiedPreservesProportions(t *testing.T) {
	// 70% A, 20% B, 10% C
	data := idFrame(1000, func(i int) string {
		switch {
		case i%10 < 7:
			return "A"
		case i%10 < 9:
			return "B"
		}
		return "C"
	})
	cfg := Config{Strategy: StrategyStratified, LabelColumn: "label", RandomSeed: 3}

	sample, err := newSampler().Sample(context.Background(), data, 0.3, cfg, nil)
	require.NoError(t, err)

	label, _ := sample.Column("label")
	counts := map[string]int{}
	for i := 0; i < label.Len(); i++ {
		s, _ := label.String(i)
		counts[s]++
	}
	total := float64(sample.RowCount())
	assert.InDelta(t, 300, total, 3)
	assert.InDelta(t, 0.7, float64(counts["A"])/total, 0.05)
	assert.InDelta(t, 0.2, float64(counts["B"])/total, 0.05)
	assert.InDelta(t, 0.1, float64(counts["C"])/total, 0.05)
}

func TestSample_AutoStrategy(t *testing.T) {
	data := idFrame(200, func(i int) string { return fmt.Sprintf("k%d", i%4) })
	s := newSampler()

	strategy, err := s.resolveStrategy(data, Config{Strategy: StrategyAuto, LabelColumn: "LABEL"})
	require.NoError(t, err)
	assert.Equal(t, StrategyStratified, strategy)

	strategy, err = s.resolveStrategy(data, Config{Strategy: StrategyAuto, LabelColumn: "missing"})
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, strategy)

	strategy, err = s.resolveStrategy(data, Config{Strategy: StrategyAuto})
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, strategy)

	_, err = s.resolveStrategy(data, Config{Strategy: StrategyStratified, LabelColumn: "missing"})
	assert.ErrorIs(t, err, core.ErrColumnNotFound)
}

func TestSample_InvalidInput(t *testing.T) {
	data := idFrame(10, func(int) string { return "x" })
	for _, ratio := range []float64{0, -0.5, 1.01} {
		_, err := newSampler().Sample(context.Background(), data, ratio, DefaultConfig(), nil)
		assert.ErrorIs(t, err, core.ErrInvalidRatio, "ratio %v", ratio)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	}

	_, err := newSampler().Sample(context.Background(), nil, 0.5, DefaultConfig(), nil)
	assert.ErrorIs(t, err, core.ErrNilDataset)
	assert.True(t, core.IsValidationError(err))
}

func TestSample_EdgeCases(t *testing.T) {
	t.Run("single row full ratio", func(t *testing.T) {
		data := idFrame(1, func(int) string { return "x" })
		sample, err := newSampler().Sample(context.Background(), data, 1.0, DefaultConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, []float64{0}, ids(t, sample))
	})
	t.Run("random sample rounds to zero rows", func(t *testing.T) {
		data := idFrame(4, func(int) string { return "x" })
		sample, err := newSampler().Sample(context.Background(), data, 0.1, Config{Strategy: StrategyRandom, RandomSeed: 1}, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, sample.RowCount())

		sample, err = newSampler().Sample(context.Background(), data, 0.2, Config{Strategy: StrategyRandom, RandomSeed: 1}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, sample.RowCount())
	})
	t.Run("stratified keeps one row per label", func(t *testing.T) {
		data := idFrame(4, func(i int) string { return fmt.Sprintf("k%d", i%2) })
		cfg := Config{Strategy: StrategyStratified, LabelColumn: "label", RandomSeed: 1}
		sample, err := newSampler().Sample(context.Background(), data, 0.1, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, sample.RowCount())
	})
	t.Run("empty source", func(t *testing.T) {
		data := idFrame(0, func(int) string { return "x" })
		for _, ratio := range []float64{0.1, 1.0} {
			sample, err := newSampler().Sample(context.Background(), data, ratio, DefaultConfig(), nil)
			require.NoError(t, err)
			assert.Equal(t, 0, sample.RowCount())
			assert.Equal(t, 2, sample.ColumnCount())
		}
	})
}

func TestSample_ProgressIsMonotonic(t *testing.T) {
	data := idFrame(50, func(int) string { return "x" })
	var seen []float64
	_, err := newSampler().Sample(context.Background(), data, 0.5, DefaultConfig(), func(f float64) {
		seen = append(seen, f)
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(seen), 2)
	assert.Equal(t, 0.0, seen[0])
	assert.Equal(t, 1.0, seen[len(seen)-1])
	assert.IsNonDecreasing(t, seen)
}

func TestSample_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := idFrame(50, func(int) string { return "x" })
	called := false
	_, err := newSampler().Sample(ctx, data, 0.5, DefaultConfig(), func(float64) { called = true })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
