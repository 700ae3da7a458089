package commit

import (
	"fmt"
	"log/slog"

	"github.com/cctech/drsimport/internal/csvdata"
	"github.com/cctech/drsimport/internal/staging"
)

// Mode selects the commit gating behavior.
type Mode int

const (
	// Strict refuses to touch any file while any entity has errors.
	Strict Mode = iota
	// Partial appends only the zero-error entities and reports the rest
	// as skipped.
	Partial
)

// Summary aggregates one commit invocation.
type Summary struct {
	Appended []AppendResult          `json:"appended"`
	Skipped  []*staging.EntityResult `json:"skipped,omitempty"`
}

// TotalAppended sums appended row counts.
func (s *Summary) TotalAppended() int {
	n := 0
	for _, r := range s.Appended {
		n += r.Appended
	}
	return n
}

// Failed returns the append results that errored.
func (s *Summary) Failed() []AppendResult {
	var out []AppendResult
	for _, r := range s.Appended {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Run applies a staging report to persisted storage under the given mode.
//
// Strict mode returns an error, with nothing mutated, if any entity carries
// validation errors or no entity staged a row. Partial mode appends the
// clean subset and lists error-bearing entities as skipped; it errors only
// when no clean entity exists. Appends proceed entity by entity in ingestion
// order; a failure stops further appends but earlier appends stay committed.
func Run(report *staging.RunReport, w *Writer, mode Mode) (*Summary, error) {
	switch mode {
	case Strict:
		if n := report.TotalErrors(); n > 0 {
			return nil, fmt.Errorf("commit aborted: %d validation errors outstanding, no files modified", n)
		}
	case Partial:
	default:
		return nil, fmt.Errorf("unknown commit mode %d", mode)
	}

	summary := &Summary{Skipped: report.WithErrors()}

	candidates := report.Clean()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("commit aborted: no staged rows to append, no files modified")
	}

	for _, res := range candidates {
		target := csvdata.FilePath(w.dataDir, res.Entity)
		ar := w.AppendEntity(res.Entity, target, res.StagedFile)
		summary.Appended = append(summary.Appended, ar)
		if ar.Err != nil {
			slog.Error("append failed, file restored from backup",
				"entity", res.Entity, "backup", ar.Backup, "error", ar.Err)
			return summary, fmt.Errorf("append %s: %w", res.Entity, ar.Err)
		}
		slog.Info("appended entity", "entity", res.Entity, "rows", ar.Appended, "backup", ar.Backup)
	}

	return summary, nil
}
