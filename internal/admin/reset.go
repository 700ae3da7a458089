// Package admin provides the destructive maintenance operations: discarding
// the staged files of an abandoned run and pruning old commit backups.
package admin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Maintenance bundles the directories maintenance operates on.
type Maintenance struct {
	StagingDir string
	BackupDir  string
}

// DiscardStaged removes every staged CSV file and returns how many were
// removed. Persisted data is never touched; the staging directory itself
// stays in place.
func (m *Maintenance) DiscardStaged() (int, error) {
	entries, err := os.ReadDir(m.StagingDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read staging dir %s: %w", m.StagingDir, err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		if err := os.Remove(filepath.Join(m.StagingDir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove staged file %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// PruneBackups keeps the newest keep backups per entity file and removes the
// rest, returning how many were removed. Backup names embed their timestamp,
// so lexical order within one entity is chronological.
func (m *Maintenance) PruneBackups(keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	entries, err := os.ReadDir(m.BackupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backup dir %s: %w", m.BackupDir, err)
	}

	byStem := make(map[string][]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bak.csv") {
			continue
		}
		byStem[backupStem(e.Name())] = append(byStem[backupStem(e.Name())], e.Name())
	}

	removed := 0
	for _, names := range byStem {
		if len(names) <= keep {
			continue
		}
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
		for _, name := range names[keep:] {
			if err := os.Remove(filepath.Join(m.BackupDir, name)); err != nil {
				return removed, fmt.Errorf("remove backup %s: %w", name, err)
			}
			removed++
		}
	}
	return removed, nil
}

// backupStem strips the trailing _<date>_<time>.bak.csv suffix, leaving the
// backed-up file's stem.
func backupStem(name string) string {
	base := strings.TrimSuffix(name, ".bak.csv")
	parts := strings.Split(base, "_")
	if len(parts) >= 3 {
		return strings.Join(parts[:len(parts)-2], "_")
	}
	return base
}
