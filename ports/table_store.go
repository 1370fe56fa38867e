package ports

import (
	"context"
)

// Row is one record keyed by column header, remembering header order
type Row struct {
	Keys   []string
	Values map[string]string
}

// NewRow creates an empty row with capacity for n columns
func NewRow(n int) Row {
	return Row{Keys: make([]string, 0, n), Values: make(map[string]string, n)}
}

// Set assigns a value, appending the key on first use
func (r *Row) Set(key, value string) {
	if _, ok := r.Values[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = value
}

// Get returns the value stored under key
func (r Row) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// TableStorePort reads and writes tabular files as ordered rows
type TableStorePort interface {
	Read(ctx context.Context, path string) ([]Row, error)
	Write(ctx context.Context, path string, rows []Row) error
}
