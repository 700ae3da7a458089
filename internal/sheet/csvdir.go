package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CSVDir is a Workbook backed by a directory of per-sheet CSV exports:
// each <name>.csv file is one sheet. This is the shape "export every sheet
// as CSV" produces, and it keeps the pipeline independent of any particular
// spreadsheet format.
type CSVDir struct {
	dir string
}

// NewCSVDir creates a workbook over a directory of sheet CSV files.
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{dir: dir}
}

// SheetNames implements Workbook.
func (w *CSVDir) SheetNames() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read workbook dir %s: %w", w.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(names)
	return names, nil
}

// ReadSheet implements Workbook. Header rows are merged hierarchically;
// data rows are keyed by merged header name; the first fully blank row
// terminates the sheet.
func (w *CSVDir) ReadSheet(name string, headerRows int) (*Sheet, error) {
	path := filepath.Join(w.dir, name+".csv")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sheet %q not found in %s", name, w.dir)
		}
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	decoded, _, err := DecodeToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if headerRows <= 0 {
		headerRows = 1
	}
	var raw [][]string
	for i := 0; i < headerRows; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sheet %q: read header row %d: %w", name, i+1, err)
		}
		raw = append(raw, record)
	}
	headers := MergeHeaders(raw)

	s := &Sheet{Name: name, Headers: headers}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if IsBlank(record) {
			break
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = CleanCell(record[i])
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}
