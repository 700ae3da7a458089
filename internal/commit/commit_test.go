package commit

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cctech/drsimport/internal/csvdata"
	"github.com/cctech/drsimport/internal/staging"
)

// stageReport fabricates a staging report with real staged files on disk.
func stageReport(t *testing.T, stagingDir string, entities ...*staging.EntityResult) *staging.RunReport {
	t.Helper()
	report := &staging.RunReport{Results: map[string]*staging.EntityResult{}, Passes: 1}
	for _, res := range entities {
		if res.ValidCount > 0 {
			path := filepath.Join(stagingDir, res.Entity+".csv")
			rows := make([]map[string]string, res.ValidCount)
			for i := range rows {
				rows[i] = map[string]string{"ID": res.Entity + "-id", "NAME": res.Entity}
			}
			require.NoError(t, csvdata.WriteTable(path, []string{"ID", "NAME"}, rows))
			res.StagedFile = path
		}
		report.Order = append(report.Order, res.Entity)
		report.Results[res.Entity] = res
	}
	return report
}

func TestRunStrict(t *testing.T) {
	t.Run("appends everything when clean", func(t *testing.T) {
		dataDir := t.TempDir()
		report := stageReport(t, t.TempDir(),
			&staging.EntityResult{Entity: "CLUSTERS", ValidCount: 2},
			&staging.EntityResult{Entity: "LOCATIONS", ValidCount: 3},
		)
		summary, err := Run(report, NewWriter(dataDir, t.TempDir()), Strict)
		require.NoError(t, err)
		assert.Equal(t, 5, summary.TotalAppended())
		assert.Empty(t, summary.Failed())
		assert.FileExists(t, csvdata.FilePath(dataDir, "CLUSTERS"))
		assert.FileExists(t, csvdata.FilePath(dataDir, "LOCATIONS"))
	})

	t.Run("refuses any outstanding error", func(t *testing.T) {
		dataDir := t.TempDir()
		report := stageReport(t, t.TempDir(),
			&staging.EntityResult{Entity: "CLUSTERS", ValidCount: 2},
			&staging.EntityResult{Entity: "LOCATIONS", ValidCount: 1, ErrorCount: 1},
		)
		_, err := Run(report, NewWriter(dataDir, t.TempDir()), Strict)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no files modified")
		assert.NoFileExists(t, csvdata.FilePath(dataDir, "CLUSTERS"))
	})

	t.Run("nothing staged", func(t *testing.T) {
		report := stageReport(t, t.TempDir(),
			&staging.EntityResult{Entity: "CLUSTERS", ValidCount: 0},
		)
		_, err := Run(report, NewWriter(t.TempDir(), t.TempDir()), Strict)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no staged rows to append")
	})
}

func TestRunPartial(t *testing.T) {
	dataDir := t.TempDir()
	report := stageReport(t, t.TempDir(),
		&staging.EntityResult{Entity: "CLUSTERS", ValidCount: 2},
		&staging.EntityResult{Entity: "LOCATIONS", ValidCount: 1, ErrorCount: 1},
	)

	summary, err := Run(report, NewWriter(dataDir, t.TempDir()), Partial)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalAppended())
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "LOCATIONS", summary.Skipped[0].Entity)

	assert.FileExists(t, csvdata.FilePath(dataDir, "CLUSTERS"))
	assert.NoFileExists(t, csvdata.FilePath(dataDir, "LOCATIONS"))
}

func TestRunPartialNoCleanEntities(t *testing.T) {
	report := stageReport(t, t.TempDir(),
		&staging.EntityResult{Entity: "LOCATIONS", ValidCount: 1, ErrorCount: 2},
	)
	_, err := Run(report, NewWriter(t.TempDir(), t.TempDir()), Partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no staged rows to append")
}

// A mid-commit failure stops the run; entities appended before it stay.
func TestRunStopsOnFirstFailure(t *testing.T) {
	dataDir := t.TempDir()
	report := stageReport(t, t.TempDir(),
		&staging.EntityResult{Entity: "CLUSTERS", ValidCount: 1},
		&staging.EntityResult{Entity: "LOCATIONS", ValidCount: 1},
		&staging.EntityResult{Entity: "PLOTS", ValidCount: 1},
	)

	w := NewWriter(dataDir, t.TempDir())
	calls := 0
	realOpen := w.openAppend
	w.openAppend = func(path string) (io.WriteCloser, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("injected failure")
		}
		return realOpen(path)
	}

	summary, err := Run(report, w, Strict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append LOCATIONS")

	require.Len(t, summary.Appended, 2)
	assert.NoError(t, summary.Appended[0].Err)
	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, "LOCATIONS", summary.Failed()[0].Entity)

	assert.FileExists(t, csvdata.FilePath(dataDir, "CLUSTERS"))
	assert.NoFileExists(t, csvdata.FilePath(dataDir, "LOCATIONS"))
	assert.NoFileExists(t, csvdata.FilePath(dataDir, "PLOTS"))
}
