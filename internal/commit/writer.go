// Package commit promotes staged rows into the persisted CSV tables.
//
// Every affected file is backed up before mutation and restored from that
// backup if its append fails. Protection is per file: entities appended
// earlier in the same commit stay committed if a later one fails.
package commit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cctech/drsimport/internal/csvdata"
)

// AppendResult reports the append outcome for one entity.
type AppendResult struct {
	Entity   string `json:"entity"`
	Appended int    `json:"appended"`
	Backup   string `json:"backup,omitempty"`
	Err      error  `json:"-"`
}

// Writer appends staged rows to persisted CSV files, append-only.
type Writer struct {
	dataDir   string
	backupDir string

	now func() time.Time
	// openAppend is swappable so tests can inject write failures.
	openAppend func(path string) (io.WriteCloser, error)
}

// NewWriter creates a writer that backs up into backupDir before touching
// any file under dataDir.
func NewWriter(dataDir, backupDir string) *Writer {
	return &Writer{
		dataDir:   dataDir,
		backupDir: backupDir,
		now:       time.Now,
		openAppend: func(path string) (io.WriteCloser, error) {
			return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		},
	}
}

// AppendEntity appends one entity's staged rows to its persisted file.
//
// Rows are written in the existing target header order: staged columns the
// target lacks are dropped, target columns the staged rows lack are written
// blank. When the target file does not exist yet, the staged header becomes
// the new target header. On write failure the backup is restored over the
// target before the error is reported.
func (w *Writer) AppendEntity(entity, targetFile, stagedFile string) AppendResult {
	res := AppendResult{Entity: entity}

	stagedHeader, stagedRows, err := csvdata.ReadTable(stagedFile)
	if err != nil {
		res.Err = fmt.Errorf("read staged file: %w", err)
		return res
	}
	if stagedHeader == nil {
		res.Err = fmt.Errorf("staged file not found: %s", stagedFile)
		return res
	}

	targetHeader, err := csvdata.ReadHeader(targetFile)
	if err != nil {
		res.Err = err
		return res
	}

	if targetHeader != nil {
		backup, err := w.backup(targetFile)
		if err != nil {
			res.Err = fmt.Errorf("backup %s: %w", targetFile, err)
			return res
		}
		res.Backup = backup
	}

	writeHeader := targetHeader == nil
	header := targetHeader
	if writeHeader {
		header = stagedHeader
	}

	if err := w.appendRows(targetFile, header, writeHeader, stagedRows); err != nil {
		if res.Backup != "" {
			if restoreErr := copyFile(res.Backup, targetFile); restoreErr != nil {
				res.Err = fmt.Errorf("append failed (%v) and restore failed: %w", err, restoreErr)
				return res
			}
		}
		res.Err = fmt.Errorf("append to %s: %w", targetFile, err)
		return res
	}

	res.Appended = len(stagedRows)
	return res
}

func (w *Writer) appendRows(targetFile string, header []string, writeHeader bool, rows []map[string]string) error {
	f, err := w.openAppend(targetFile)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(header); err != nil {
			f.Close()
			return err
		}
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// backup copies the target file into the backup directory under a
// timestamped name and returns the backup path.
func (w *Writer) backup(targetFile string) (string, error) {
	if err := os.MkdirAll(w.backupDir, 0o755); err != nil {
		return "", err
	}
	stamp := w.now().Format("20060102_150405")
	base := filepath.Base(targetFile)
	name := fmt.Sprintf("%s_%s.bak.csv", base[:len(base)-len(filepath.Ext(base))], stamp)
	backupPath := filepath.Join(w.backupDir, name)
	if err := copyFile(targetFile, backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
