package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirtyDataGenerator_InjectsExactRates(t *testing.T) {
	frame := NewDirtyDataGenerator(DefaultDirtyDataConfig()).Generate()
	require.Equal(t, 1000, frame.RowCount())
	require.Equal(t, 6, frame.ColumnCount())

	amount, ok := frame.Column(ColumnAmount)
	require.True(t, ok)
	nulls, outliers := 0, 0
	for i := 0; i < amount.Len(); i++ {
		if amount.IsNull(i) {
			nulls++
			continue
		}
		if f, _ := amount.Float(i); f >= 500 {
			outliers++
		}
	}
	assert.Equal(t, 200, nulls)
	assert.Equal(t, 50, outliers)

	category, _ := frame.Column(ColumnCategory)
	spellings := map[string]bool{}
	for i := 0; i < category.Len(); i++ {
		s, _ := category.String(i)
		spellings[s] = true
	}
	assert.Contains(t, spellings, "Alpha")
	assert.Contains(t, spellings, "alpha")
	assert.Contains(t, spellings, "GAMMA")
}

func TestDirtyDataGenerator_Deterministic(t *testing.T) {
	a := NewDirtyDataGenerator(DefaultDirtyDataConfig()).Generate()
	b := NewDirtyDataGenerator(DefaultDirtyDataConfig()).Generate()
	for _, name := range a.ColumnNames() {
		ca, _ := a.Column(name)
		cb, _ := b.Column(name)
		for i := 0; i < ca.Len(); i++ {
			require.Equal(t, ca.Value(i), cb.Value(i), "%s row %d", name, i)
		}
	}
}

func TestCleanDataConfig(t *testing.T) {
	frame := NewDirtyDataGenerator(CleanDataConfig(300)).Generate()
	amount, _ := frame.Column(ColumnAmount)
	for i := 0; i < amount.Len(); i++ {
		f, ok := amount.Float(i)
		require.True(t, ok)
		assert.True(t, f >= 35 && f <= 65)
	}
}
