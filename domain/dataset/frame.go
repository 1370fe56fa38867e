package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"ruleminer/domain/core"
)

// ColumnKind tags the storage type of a column
type ColumnKind string

const (
	KindString   ColumnKind = "string"
	KindFloat    ColumnKind = "float"
	KindInt      ColumnKind = "int"
	KindBool     ColumnKind = "bool"
	KindDateTime ColumnKind = "datetime"
)

// Column holds one named column of cells. A nil cell is a null.
type Column struct {
	name   string
	kind   ColumnKind
	values []interface{}
}

// NewColumn creates a column from raw cells of the given kind
func NewColumn(name string, kind ColumnKind, values []interface{}) *Column {
	cells := make([]interface{}, len(values))
	copy(cells, values)
	return &Column{name: name, kind: kind, values: cells}
}

// NewStringColumn creates a string column; every value is present (possibly blank)
func NewStringColumn(name string, values []string) *Column {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return &Column{name: name, kind: KindString, values: cells}
}

// NewFloatColumn creates a float column; NaN entries are stored as nulls
func NewFloatColumn(name string, values []float64) *Column {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		cells[i] = v
	}
	return &Column{name: name, kind: KindFloat, values: cells}
}

func (c *Column) Name() string     { return c.name }
func (c *Column) Kind() ColumnKind { return c.kind }
func (c *Column) Len() int         { return len(c.values) }

// IsString reports whether the column stores raw strings
func (c *Column) IsString() bool { return c.kind == KindString }

// IsNumeric reports whether the column stores typed numbers
func (c *Column) IsNumeric() bool { return c.kind == KindFloat || c.kind == KindInt }

// Value returns the raw cell at row i
func (c *Column) Value(i int) interface{} {
	return c.values[i]
}

// IsNull reports whether the cell at row i is null (nil or NaN)
func (c *Column) IsNull(i int) bool {
	v := c.values[i]
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// String returns the cell rendered as a string; ok is false for nulls
func (c *Column) String(i int) (string, bool) {
	if c.IsNull(i) {
		return "", false
	}
	switch v := c.values[i].(type) {
	case time.Time:
		return v.Format(time.RFC3339), true
	}
	s, err := cast.ToStringE(c.values[i])
	if err != nil {
		return fmt.Sprintf("%v", c.values[i]), true
	}
	return s, true
}

// Float returns the cell as a float64; ok is false for nulls and unconvertible cells
func (c *Column) Float(i int) (float64, bool) {
	if c.IsNull(i) {
		return 0, false
	}
	if c.kind == KindString {
		s := strings.TrimSpace(c.values[i].(string))
		if s == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	f, err := cast.ToFloat64E(c.values[i])
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Set replaces the cell at row i
func (c *Column) Set(i int, v interface{}) {
	c.values[i] = v
}

// NumericValues returns the non-null numeric cells with their row indices
func (c *Column) NumericValues() ([]float64, []int) {
	values := make([]float64, 0, len(c.values))
	rows := make([]int, 0, len(c.values))
	for i := range c.values {
		if f, ok := c.Float(i); ok {
			values = append(values, f)
			rows = append(rows, i)
		}
	}
	return values, rows
}

// take builds a new column holding the given rows in order
func (c *Column) take(rows []int) *Column {
	cells := make([]interface{}, len(rows))
	for i, r := range rows {
		cells[i] = c.values[r]
	}
	return &Column{name: c.name, kind: c.kind, values: cells}
}

// Frame is the in-memory tabular data handle shared by sampling, analysis,
// discovery and rule application.
type Frame struct {
	columns []*Column
	rows    int
}

// NewFrame assembles columns into a frame. All columns must share a length
// and have distinct names.
func NewFrame(columns ...*Column) (*Frame, error) {
	f := &Frame{}
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if col == nil {
			return nil, core.NewValidationError("columns", fmt.Sprintf("column %d is nil", i))
		}
		key := strings.ToLower(col.name)
		if seen[key] {
			return nil, core.NewValidationError("columns", fmt.Sprintf("duplicate column %q", col.name))
		}
		seen[key] = true
		if i == 0 {
			f.rows = col.Len()
		} else if col.Len() != f.rows {
			return nil, core.NewValidationError("columns",
				fmt.Sprintf("column %q has %d rows, expected %d", col.name, col.Len(), f.rows))
		}
	}
	f.columns = columns
	return f, nil
}

// MustFrame is NewFrame that panics on error, for fixtures
func MustFrame(columns ...*Column) *Frame {
	f, err := NewFrame(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) RowCount() int    { return f.rows }
func (f *Frame) ColumnCount() int { return len(f.columns) }

// Columns returns the columns in declaration order
func (f *Frame) Columns() []*Column {
	return f.columns
}

// ColumnNames returns the column names in declaration order
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.name
	}
	return names
}

// Column looks up a column by exact name
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.columns {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Lookup finds a column by name, ignoring case
func (f *Frame) Lookup(name string) (*Column, bool) {
	if c, ok := f.Column(name); ok {
		return c, true
	}
	for _, c := range f.columns {
		if strings.EqualFold(c.name, name) {
			return c, true
		}
	}
	return nil, false
}

// ColumnIndex returns the position of a column, or -1
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.columns {
		if strings.EqualFold(c.name, name) {
			return i
		}
	}
	return -1
}

// Cell reads one cell by row index and column name
func (f *Frame) Cell(row int, column string) (interface{}, error) {
	c, ok := f.Lookup(column)
	if !ok {
		return nil, core.NewColumnNotFoundError(column)
	}
	if row < 0 || row >= f.rows {
		return nil, core.NewValidationError("row", fmt.Sprintf("index %d out of range [0,%d)", row, f.rows))
	}
	return c.values[row], nil
}

// Take derives a new frame containing the given rows in order
func (f *Frame) Take(rows []int) *Frame {
	cols := make([]*Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.take(rows)
	}
	return &Frame{columns: cols, rows: len(rows)}
}

// Clone derives a deep copy of the frame
func (f *Frame) Clone() *Frame {
	rows := make([]int, f.rows)
	for i := range rows {
		rows[i] = i
	}
	return f.Take(rows)
}

// ReplaceColumn swaps a column in place, matching by name ignoring case
func (f *Frame) ReplaceColumn(col *Column) error {
	if col.Len() != f.rows {
		return core.NewValidationError("column", fmt.Sprintf("column %q has %d rows, expected %d", col.name, col.Len(), f.rows))
	}
	idx := f.ColumnIndex(col.name)
	if idx < 0 {
		return core.NewColumnNotFoundError(col.name)
	}
	f.columns[idx] = col
	return nil
}

// DropRows removes the given rows from every column in place and returns how many were removed
func (f *Frame) DropRows(rows map[int]bool) int {
	if len(rows) == 0 {
		return 0
	}
	keep := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if !rows[i] {
			keep = append(keep, i)
		}
	}
	removed := f.rows - len(keep)
	for i, c := range f.columns {
		f.columns[i] = c.take(keep)
	}
	f.rows = len(keep)
	return removed
}

// EstimatedMemoryBytes gives a rough in-memory footprint of the frame
func (f *Frame) EstimatedMemoryBytes() int64 {
	var total int64
	for _, c := range f.columns {
		for _, v := range c.values {
			switch x := v.(type) {
			case string:
				total += int64(len(x)) + 16
			case nil:
				total += 8
			default:
				total += 16
			}
		}
	}
	return total
}
