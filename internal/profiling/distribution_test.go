package profiling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndUnbiasedStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(data), 1e-12)
	// population sd is 2; unbiased uses n-1
	assert.InDelta(t, math.Sqrt(32.0/7.0), StdDev(data), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{3}))
}

func TestQuartiles_IndexBasedWithoutInterpolation(t *testing.T) {
	data := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	q1, q2, q3 := Quartiles(data)
	// sorted 1..10, indices 2, 5, 7
	assert.Equal(t, 3.0, q1)
	assert.Equal(t, 6.0, q2)
	assert.Equal(t, 8.0, q3)
}

func TestIQRBounds(t *testing.T) {
	lower, upper := IQRBounds(3, 8)
	assert.Equal(t, -4.5, lower)
	assert.Equal(t, 15.5, upper)
}

func TestOutlierUnion(t *testing.T) {
	data := make([]float64, 0, 101)
	for i := 0; i < 100; i++ {
		data = append(data, float64(50+i%10))
	}
	data = append(data, 1000)

	assert.Equal(t, []int{100}, ZScoreOutliers(data, ZScoreThreshold))
	assert.Equal(t, []int{100}, OutlierUnion(data, ZScoreThreshold))
}

func TestZScores_ConstantColumn(t *testing.T) {
	for _, z := range ZScores([]float64{4, 4, 4}) {
		assert.Equal(t, 0.0, z)
	}
	assert.Empty(t, ZScoreOutliers([]float64{4, 4, 4}, ZScoreThreshold))
}

func TestEntropy(t *testing.T) {
	assert.InDelta(t, 1.0, Entropy(map[string]int{"a": 5, "b": 5}), 1e-12)
	assert.InDelta(t, 2.0, Entropy(map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}), 1e-12)
	assert.Equal(t, 0.0, Entropy(map[string]int{"a": 10}))
	assert.Equal(t, 0.0, Entropy(nil))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, Summary{}, Summarize(nil))
}
