package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDUniqueAndTimeOrdered(t *testing.T) {
	const n = 5000
	seen := make(map[ID]bool, n)
	var prev ID
	for i := 0; i < n; i++ {
		id := NewID()
		require.False(t, id.IsEmpty())
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		parsed, err := uuid.Parse(id.String())
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		if prev != "" {
			assert.LessOrEqual(t, string(prev)[:13], string(id)[:13])
		}
		prev = id
	}
}

func TestParseRuleID(t *testing.T) {
	tests := []struct {
		input   string
		want    RuleID
		wantErr bool
	}{
		{"valid-id", "valid-id", false},
		{"  padded ", "padded", false},
		{"", "", true},
		{"   ", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRuleID(tt.input)
		if tt.wantErr {
			assert.True(t, IsValidationError(err), tt.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestComputeSignature(t *testing.T) {
	a := ComputeSignature("CategoryMapping", "City", "case variants")
	b := ComputeSignature("CategoryMapping", "city", "case variants")
	assert.True(t, a.Equals(b), "column name case is ignored")
	assert.Len(t, a.String(), 64)

	assert.False(t, a.Equals(ComputeSignature("CategoryMapping", "City", "near duplicates")))
	assert.False(t, a.Equals(ComputeSignature("OutlierHandling", "City", "case variants")))
	assert.NotEqual(t, ComputeSignature("ab", "c", "d"), ComputeSignature("a", "bc", "d"))
}

func TestTimestampCompactUTC(t *testing.T) {
	ts, err := ParseTimestamp("2024-05-01T14:30:09+02:00")
	require.NoError(t, err)
	assert.Equal(t, "20240501123009", ts.CompactUTC())
	assert.True(t, ts.Before(Now()))
	assert.False(t, Timestamp{}.After(ts))
}
