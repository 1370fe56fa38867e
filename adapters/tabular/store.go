package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ruleminer/domain/core"
	"ruleminer/internal/errors"
	"ruleminer/ports"
)

// Format is a supported file type
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DefaultSheet is used when writing workbooks
const DefaultSheet = "Sheet1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store reads and writes CSV and XLSX files. The first row is the header;
// the first worksheet is read from workbooks.
type Store struct {
	logger ports.Logger
}

var _ ports.TableStorePort = (*Store)(nil)

// NewStore creates a store
func NewStore(logger ports.Logger) *Store {
	return &Store{logger: logger}
}

// FormatOf picks the format from the file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", errors.InvalidInput(core.NewValidationError("path", fmt.Sprintf("unsupported file type %q", filepath.Ext(path))))
}

// Read loads path into header-ordered rows
func (s *Store) Read(ctx context.Context, path string) ([]ports.Row, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var records [][]string
	switch format {
	case FormatCSV:
		records, err = readCSV(path)
	case FormatXLSX:
		records, err = readXLSX(path)
	}
	if err != nil {
		s.logger.Error("failed to read %s: %v", path, err)
		return nil, errors.IOError(path, err)
	}
	if len(records) == 0 {
		return nil, errors.InvalidInput(core.NewValidationError("path", path+" has no header row"))
	}

	rows := toRows(records)
	s.logger.Info("read %s: %d columns, %d rows in %s", path, len(records[0]), len(rows), time.Since(start).Round(time.Millisecond))
	return rows, nil
}

// Write stores rows at path, creating parent directories. The header is the
// union of row keys in first-seen order.
func (s *Store) Write(ctx context.Context, path string, rows []ports.Row) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.IOError(dir, err)
		}
	}

	records := toRecords(rows)
	switch format {
	case FormatCSV:
		err = writeCSV(path, records)
	case FormatXLSX:
		err = writeXLSX(path, records)
	}
	if err != nil {
		s.logger.Error("failed to write %s: %v", path, err)
		return errors.IOError(path, err)
	}
	s.logger.Info("wrote %s: %d rows", path, len(rows))
	return nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeXLSX(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(record))
		for j, v := range record {
			values[j] = v
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// toRows turns header plus records into rows. Blank headers become column_N,
// repeated headers get a numeric suffix, short records are padded with blanks
// and extra cells are dropped.
func toRows(records [][]string) []ports.Row {
	headers := uniqueHeaders(records[0])
	rows := make([]ports.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		row := ports.NewRow(len(headers))
		for j, h := range headers {
			v := ""
			if j < len(record) {
				v = record[j]
			}
			row.Set(h, v)
		}
		rows = append(rows, row)
	}
	return rows
}

func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		seen[key]++
		if n := seen[key]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
			seen[strings.ToLower(name)]++
		}
		headers[i] = name
	}
	return headers
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if v != "" {
			return false
		}
	}
	return true
}

func toRecords(rows []ports.Row) [][]string {
	var header []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, k := range r.Keys {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, r := range rows {
		record := make([]string, len(header))
		for j, k := range header {
			record[j], _ = r.Get(k)
		}
		records = append(records, record)
	}
	return records
}
