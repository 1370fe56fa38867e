package tabular

import (
	"strings"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/dataset"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/ports"
)

// ToFrame builds a frame with one column per header of the first row. With a
// nil coercer every column stays a string column. Otherwise a column whose
// present cells all parse as plain numbers becomes a float column with missing
// tokens as nulls. Separator-formatted numbers stay strings for the detectors.
func ToFrame(rows []ports.Row, c *coercer.TypeCoercer) (*dataset.Frame, error) {
	if len(rows) == 0 {
		return dataset.NewFrame()
	}
	headers := rows[0].Keys
	columns := make([]*dataset.Column, len(headers))
	for j, h := range headers {
		values := make([]string, len(rows))
		for i, r := range rows {
			values[i], _ = r.Get(h)
		}
		columns[j] = buildColumn(h, values, c)
	}
	return dataset.NewFrame(columns...)
}

func buildColumn(name string, values []string, c *coercer.TypeCoercer) *dataset.Column {
	if c == nil {
		return dataset.NewStringColumn(name, values)
	}
	if c.AnalyzeTypeDistribution(values).RecommendedType != profiling.TypeNumeric {
		return dataset.NewStringColumn(name, values)
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		if c.IsMissing(v) {
			continue
		}
		f, ok := coercer.ParseNumeric(v)
		if !ok || strings.ContainsRune(v, ',') {
			return dataset.NewStringColumn(name, values)
		}
		cells[i] = f
	}
	return dataset.NewColumn(name, dataset.KindFloat, cells)
}

// FromFrame renders a frame back into rows; nulls become blank cells
func FromFrame(f *dataset.Frame) []ports.Row {
	names := f.ColumnNames()
	rows := make([]ports.Row, f.RowCount())
	for i := range rows {
		row := ports.NewRow(len(names))
		for _, col := range f.Columns() {
			s, _ := col.String(i)
			row.Set(col.Name(), s)
		}
		rows[i] = row
	}
	return rows
}
