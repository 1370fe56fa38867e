package profiling

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Outlier detection constants
const (
	ZScoreThreshold = 3.0
	IQRMultiplier   = 1.5
)

// Summary holds the basic descriptive statistics of a numeric column
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64 // unbiased (n-1)
	Min    float64
	Max    float64
	Median float64
	Q1     float64
	Q2     float64
	Q3     float64
}

// Summarize computes descriptive statistics; the zero Summary is returned for empty input
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(data), Mean: Mean(data), StdDev: StdDev(data)}
	s.Min, _ = stats.Min(data)
	s.Max, _ = stats.Max(data)
	s.Median, _ = stats.Median(data)
	s.Q1, s.Q2, s.Q3 = Quartiles(data)
	return s
}

// Mean returns the arithmetic mean
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev returns the unbiased sample standard deviation, 0 for fewer than two values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Quartiles returns the 25th/50th/75th percentile values taken at index
// floor(n*p) of the sorted data, without interpolation
func Quartiles(data []float64) (q1, q2, q3 float64) {
	n := len(data)
	if n == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)
	at := func(p float64) float64 {
		idx := int(float64(n) * p)
		if idx >= n {
			idx = n - 1
		}
		return sorted[idx]
	}
	return at(0.25), at(0.50), at(0.75)
}

// IQRBounds returns [Q1 - 1.5*IQR, Q3 + 1.5*IQR]
func IQRBounds(q1, q3 float64) (lower, upper float64) {
	iqr := q3 - q1
	return q1 - IQRMultiplier*iqr, q3 + IQRMultiplier*iqr
}

// ZScores standardizes data with the sample mean and unbiased standard deviation.
// A constant column yields all zeros.
func ZScores(data []float64) []float64 {
	z := make([]float64, len(data))
	mean := Mean(data)
	sd := StdDev(data)
	if sd == 0 {
		return z
	}
	for i, x := range data {
		z[i] = (x - mean) / sd
	}
	return z
}

// ZScoreOutliers returns positions whose |z| exceeds threshold
func ZScoreOutliers(data []float64, threshold float64) []int {
	var idx []int
	for i, z := range ZScores(data) {
		if math.Abs(z) > threshold {
			idx = append(idx, i)
		}
	}
	return idx
}

// IQROutliers returns positions outside the IQR fences
func IQROutliers(data []float64) []int {
	q1, _, q3 := Quartiles(data)
	lower, upper := IQRBounds(q1, q3)
	var idx []int
	for i, x := range data {
		if x < lower || x > upper {
			idx = append(idx, i)
		}
	}
	return idx
}

// OutlierUnion returns the sorted union of Z-score and IQR outlier positions
func OutlierUnion(data []float64, zThreshold float64) []int {
	set := make(map[int]bool)
	for _, i := range ZScoreOutliers(data, zThreshold) {
		set[i] = true
	}
	for _, i := range IQROutliers(data) {
		set[i] = true
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Entropy returns the Shannon entropy in bits of a frequency table
func Entropy(counts map[string]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	p := make([]float64, 0, len(counts))
	for _, c := range counts {
		if c > 0 {
			p = append(p, float64(c)/float64(total))
		}
	}
	return stat.Entropy(p) / math.Ln2
}

// CoefficientOfVariation is stddev/|mean|, 0 when the mean is 0
func CoefficientOfVariation(data []float64) float64 {
	mean := Mean(data)
	if mean == 0 {
		return 0
	}
	return StdDev(data) / math.Abs(mean)
}
