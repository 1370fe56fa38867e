package coercer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"ruleminer/domain/dataset"
	"ruleminer/domain/datareadiness/profiling"
)

func TestInferColumnType(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())

	tests := []struct {
		name     string
		values   []string
		expected profiling.InferredType
	}{
		{"numeric strings", []string{"25", "34", "1,250.5", "28", "52"}, profiling.TypeNumeric},
		{"iso dates", []string{"2024-01-05", "2024-02-11", "2024-03-09", "2023-12-31"}, profiling.TypeDateTime},
		{"boolean words", []string{"yes", "no", "Y", "N", "on", "off"}, profiling.TypeBoolean},
		{"free text", []string{"North", "South", "East", "West"}, profiling.TypeText},
		{"half numbers half words", []string{"1", "2", "3", "4", "x", "y", "z", "w"}, profiling.TypeMixed},
		{"all missing", []string{"", "NA", "null", "?"}, profiling.TypeUnknown},
		{"empty column", []string{}, profiling.TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := dataset.NewStringColumn("c", tt.values)
			assert.Equal(t, tt.expected, c.InferColumnType(col))
		})
	}
}

func TestInferColumnType_TypedColumn(t *testing.T) {
	col := dataset.NewFloatColumn("amount", []float64{1, 2, 3})
	assert.Equal(t, profiling.TypeTypedColumn, Default.InferColumnType(col))
}

func TestAnalyzeColumn_StridedSample(t *testing.T) {
	values := make([]string, 1000)
	for i := range values {
		values[i] = fmt.Sprintf("%d", i)
	}
	analysis := Default.AnalyzeColumn(dataset.NewStringColumn("id", values))
	assert.Equal(t, 100, analysis.SampledCount)
	assert.Equal(t, 100, analysis.NumericCount)
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", "   ", "NULL", "null", "N/A", "n/a", "NaN", "None", "-", "?", "NA"} {
		assert.True(t, Default.IsMissing(v), v)
	}
	for _, v := range []string{"0", "nil?", "--", "value"} {
		assert.False(t, Default.IsMissing(v), v)
	}
}

func TestParseNumeric(t *testing.T) {
	v, ok := ParseNumeric("1,234.5")
	assert.True(t, ok)
	assert.Equal(t, 1234.5, v)

	v, ok = ParseNumeric("1 000")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)

	_, ok = ParseNumeric("Inf")
	assert.False(t, ok)
	_, ok = ParseNumeric("abc")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, BucketNumeric, Classify("1"))
	assert.Equal(t, BucketDateTime, Classify("2024-01-01"))
	assert.Equal(t, BucketBoolean, Classify("yes"))
	assert.Equal(t, BucketText, Classify("hello"))
}
