package transform

import (
	"fmt"
	"strings"

	"github.com/cctech/drsimport/internal/csvdata"
	"github.com/cctech/drsimport/internal/mapping"
	"github.com/cctech/drsimport/internal/rules"
	"github.com/cctech/drsimport/internal/sheet"
	"github.com/cctech/drsimport/internal/validate"
)

// EntityResult is the outcome of transforming one entity's source rows.
type EntityResult struct {
	Valid  []map[string]string
	Errors []ErrorRecord
}

// HardErrorCount counts error records that are not informational skips.
func (r *EntityResult) HardErrorCount() int {
	n := 0
	for _, rec := range r.Errors {
		if !rec.Info {
			n++
		}
	}
	return n
}

// TransformEntity runs the full transformation for one entity's rows,
// applying the master-data deduplication overlay and the duplicate policy.
//
// Master entities are treated as idempotent reference data: rows whose
// natural key is entirely blank, duplicates a key earlier in this batch, or
// matches a row already persisted are dropped without error. Transactional
// entities attempt every row.
func (t *Transformer) TransformEntity(entity string, cfg *mapping.Sheet, dataDir string, sourceRows []sheet.Row) (*EntityResult, error) {
	_, existing, err := csvdata.ReadTable(csvdata.FilePath(dataDir, entity))
	if err != nil {
		return nil, fmt.Errorf("load existing rows for %s: %w", entity, err)
	}

	result := &EntityResult{}
	accumulated := make([]map[string]string, len(existing))
	copy(accumulated, existing)

	dedup := t.rules.ShouldDeduplicate(entity)
	dedupKeys := t.rules.DedupKeys(entity)

	// Keys already present in persisted storage, so existing master rows
	// are not staged again.
	existingKeys := make(map[string]bool)
	if dedup {
		for _, row := range existing {
			existingKeys[foldedKey(dedupKeys, row)] = true
		}
	}
	seenKeys := make(map[string]bool)

	for i, source := range sourceRows {
		rowNum := i + 1

		if dedup {
			key, blank := sourceKey(dedupKeys, cfg, source)
			if blank {
				continue
			}
			if seenKeys[key] {
				continue
			}
			seenKeys[key] = true
		}

		transformed, rowErrs, err := t.TransformRow(entity, cfg, source, accumulated)
		if err != nil {
			return nil, err
		}

		if transformed != nil {
			if dedup {
				key := foldedKey(dedupKeys, transformed)
				if existingKeys[key] {
					continue
				}
				existingKeys[key] = true
			}
			result.Valid = append(result.Valid, transformed)
			accumulated = append(accumulated, transformed)
			continue
		}

		// Master-data rows colliding with existing data resolve through the
		// already-present record; dropping them keeps staging idempotent.
		if dedup && onlyUniqueViolations(rowErrs) {
			continue
		}

		if onlyUniqueViolations(rowErrs) {
			switch t.rules.DuplicatePolicy(entity) {
			case rules.DuplicateSkip:
				result.Errors = append(result.Errors, ErrorRecord{
					RowNum: rowNum,
					Source: source,
					Errors: []string{"skipped duplicate row (unique constraint)"},
					Info:   true,
				})
				continue
			case rules.DuplicateError:
				// Falls through to the hard error record below.
			}
		}

		result.Errors = append(result.Errors, ErrorRecord{
			RowNum: rowNum,
			Source: source,
			Errors: rowErrs,
		})
	}

	return result, nil
}

func onlyUniqueViolations(errs []string) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !validate.IsUniqueViolation(e) {
			return false
		}
	}
	return true
}

// foldedKey builds the case-folded natural key of a transformed row.
func foldedKey(keys []string, row map[string]string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strings.ToUpper(strings.TrimSpace(row[k]))
	}
	return strings.Join(parts, "\x1f")
}

// sourceKey builds the natural key of a source row before transformation,
// following the column map from target field back to source column.
// blank is true when every key part is empty.
func sourceKey(keys []string, cfg *mapping.Sheet, source sheet.Row) (string, bool) {
	parts := make([]string, len(keys))
	blank := true
	for i, field := range keys {
		var sourceCol string
		for from, to := range cfg.ColumnMap {
			if to == field {
				sourceCol = from
				break
			}
		}
		if sourceCol != "" {
			v := strings.ToUpper(strings.TrimSpace(source[sourceCol]))
			parts[i] = v
			if v != "" {
				blank = false
			}
		}
	}
	return strings.Join(parts, "\x1f"), blank
}
