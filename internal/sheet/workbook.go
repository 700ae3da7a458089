// Package sheet is the spreadsheet ingestion boundary. The pipeline only
// depends on the Workbook interface: named sheets yielding rows of named
// cell values, with multi-row hierarchical headers already merged.
package sheet

import "strings"

// Row maps a merged header name to the raw cell value of one data row.
type Row map[string]string

// Sheet is one fully read sheet: merged headers plus its data rows.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []Row
}

// Workbook yields sheets of named cell values. Implementations decide how
// the underlying storage (exported CSV directory, xlsx, etc.) is read.
type Workbook interface {
	// SheetNames lists the available sheet names.
	SheetNames() ([]string, error)

	// ReadSheet reads a sheet, merging the first headerRows rows into
	// hierarchical header names. Data begins immediately after the header
	// region; a row with every cell blank terminates the sheet.
	ReadSheet(name string, headerRows int) (*Sheet, error)
}

// MergeHeaders collapses a multi-row header region into one header name per
// column. Stacked non-blank cells join with " > " (parent > child); blank
// trailing columns are dropped.
func MergeHeaders(raw [][]string) []string {
	maxCols := 0
	for _, row := range raw {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}

	headers := make([]string, 0, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for _, row := range raw {
			if col < len(row) {
				if v := strings.TrimSpace(row[col]); v != "" {
					parts = append(parts, v)
				}
			}
		}
		headers = append(headers, strings.Join(parts, " > "))
	}

	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	return headers
}

// CleanCell strips the artifacts spreadsheet exports leave in cell values:
// surrounding whitespace, Excel formula prefixes (="..."), and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	return strings.Trim(s, `"'`)
}

// IsBlank reports whether every cell in a record is blank.
func IsBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
