// Package csvdata reads and writes the persisted per-entity CSV tables.
//
// One CSV file per entity, header row always present, UTF-8, comma-delimited.
// The pipeline never rewrites a committed row; files grow by append only.
package csvdata

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cctech/drsimport/internal/schema"
)

// filePrefix is the deterministic naming prefix for entity data files.
const filePrefix = "CCTECH.DRS.ENTITIES-"

// FileName returns the persisted CSV file name for an entity.
func FileName(entity string) string {
	return filePrefix + entity + ".csv"
}

// FilePath returns the persisted CSV path for an entity under dataDir.
func FilePath(dataDir, entity string) string {
	return filepath.Join(dataDir, FileName(entity))
}

// EntityForFile returns the entity name encoded in a data file name, or "" if the
// file does not follow the entity naming scheme.
func EntityForFile(name string) string {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".csv") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".csv")
}

// ReadTable reads a persisted CSV into its header and one map per data row.
// A missing file is not an error: it returns empty header and no rows, the
// same shape as an entity that has never been committed.
func ReadTable(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readTable(f, path)
}

func readTable(r io.Reader, path string) ([]string, []map[string]string, error) {
	reader := csv.NewReader(newBOMSkippingReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// ReadHeader reads only the header row of a CSV file. Missing file yields nil.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(newBOMSkippingReader(f))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

// WriteTable writes a full CSV file with the given column order, one row per
// map. Columns absent from a row are written blank; extra keys are ignored.
// Used for staged files, which are overwritten wholesale per staging pass.
func WriteTable(path string, columns []string, rows []map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header of %s: %w", path, err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// ListTables introspects the data directory and returns, per entity, its file
// path and header columns. Ordering of the result map follows no guarantee;
// callers wanting determinism should sort the keys.
func ListTables(dataDir string) (map[string]*schema.CSVInfo, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*schema.CSVInfo{}, nil
		}
		return nil, fmt.Errorf("read data dir %s: %w", dataDir, err)
	}

	out := make(map[string]*schema.CSVInfo)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		entity := EntityForFile(name)
		if entity == "" {
			continue
		}
		path := filepath.Join(dataDir, name)
		header, err := ReadHeader(path)
		if err != nil {
			return nil, err
		}
		out[entity] = &schema.CSVInfo{File: path, Columns: header}
	}
	return out, nil
}

// newBOMSkippingReader strips a UTF-8 BOM (0xEF 0xBB 0xBF) if present.
// Windows tools routinely prepend one to exported CSV files.
func newBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
