package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cctech/drsimport/internal/csvdata"
	"github.com/cctech/drsimport/internal/mapping"
	"github.com/cctech/drsimport/internal/rules"
	"github.com/cctech/drsimport/internal/schema"
	"github.com/cctech/drsimport/internal/sheet"
)

func stagingArtifact(t *testing.T) *schema.Artifact {
	t.Helper()
	def, err := schema.Parse(`
entity CLUSTERS {
    key ID: UUID;
    NAME: String(100);
}

entity LOCATIONS {
    key ID: UUID;
    NAME: String(100);
    CLUSTER_ID: UUID;
    CLUSTER: Association to CLUSTERS;
}
`)
	require.NoError(t, err)
	return schema.Build(def, nil)
}

func stagingConfig() *mapping.Config {
	return &mapping.Config{
		Version: 1,
		Sheets: []mapping.Sheet{
			{
				Entity:     "CLUSTERS",
				Sheet:      "Clusters",
				HeaderRows: 1,
				ID:         mapping.IDConfig{Column: "ID", UUIDPolicy: mapping.GenerateIfBlank},
				ColumnMap:  map[string]string{"Cluster Name": "NAME"},
			},
			{
				Entity:     "LOCATIONS",
				Sheet:      "Locations",
				HeaderRows: 1,
				ID:         mapping.IDConfig{Column: "ID", UUIDPolicy: mapping.GenerateIfBlank},
				ColumnMap:  map[string]string{"Location Name": "NAME"},
				Lookups: map[string]mapping.Lookup{
					"CLUSTER_ID": {
						Entity: "CLUSTERS",
						Match:  []mapping.MatchRule{{Field: "NAME", From: "Cluster Name"}},
					},
				},
			},
		},
	}
}

type stagingDirs struct {
	workbook string
	data     string
	staging  string
}

func newEngine(t *testing.T) (*Engine, stagingDirs) {
	t.Helper()
	dirs := stagingDirs{
		workbook: t.TempDir(),
		data:     t.TempDir(),
		staging:  t.TempDir(),
	}
	e := New(stagingArtifact(t), stagingConfig(), rules.Default(),
		sheet.NewCSVDir(dirs.workbook), dirs.data, dirs.staging)
	return e, dirs
}

func writeWorkbookSheet(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".csv"), []byte(content), 0o644))
}

// Locations reference clusters introduced by the same workbook; the cold
// pass cannot resolve them and the first warm pass must.
func TestStageAllTwoPassConvergence(t *testing.T) {
	e, dirs := newEngine(t)
	writeWorkbookSheet(t, dirs.workbook, "Clusters", "Cluster Name\nNorth\nSouth\n")
	writeWorkbookSheet(t, dirs.workbook, "Locations", "Location Name,Cluster Name\nField A,North\nField B,south\n")

	report, err := e.StageAll()
	require.NoError(t, err)

	assert.Equal(t, 2, report.Passes)
	assert.Equal(t, []string{"CLUSTERS", "LOCATIONS"}, report.Order)
	assert.Equal(t, 4, report.TotalValid())
	assert.Equal(t, 0, report.TotalErrors())

	clean := report.Clean()
	require.Len(t, clean, 2)
	assert.Equal(t, "CLUSTERS", clean[0].Entity)
	assert.Equal(t, "LOCATIONS", clean[1].Entity)

	_, clusters, err := csvdata.ReadTable(filepath.Join(dirs.staging, "CLUSTERS.csv"))
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	idByName := map[string]string{}
	for _, row := range clusters {
		idByName[row["NAME"]] = row["ID"]
	}

	_, locations, err := csvdata.ReadTable(filepath.Join(dirs.staging, "LOCATIONS.csv"))
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, idByName["North"], locations[0]["CLUSTER_ID"])
	assert.Equal(t, idByName["South"], locations[1]["CLUSTER_ID"], "lookup is case insensitive")
}

// With the referenced clusters already persisted, everything resolves cold.
func TestStageAllSinglePassAgainstPersistedData(t *testing.T) {
	e, dirs := newEngine(t)
	require.NoError(t, csvdata.WriteTable(
		csvdata.FilePath(dirs.data, "CLUSTERS"),
		[]string{"ID", "NAME"},
		[]map[string]string{{"ID": "11111111-2222-4333-8444-555555555555", "NAME": "North"}},
	))
	writeWorkbookSheet(t, dirs.workbook, "Locations", "Location Name,Cluster Name\nField A,North\n")

	report, err := e.StageAll()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Passes)
	assert.Equal(t, 0, report.TotalErrors())

	_, locations, err := csvdata.ReadTable(filepath.Join(dirs.staging, "LOCATIONS.csv"))
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "11111111-2222-4333-8444-555555555555", locations[0]["CLUSTER_ID"])
}

// A reference nothing can satisfy stops the loop on the error plateau, not
// after exhausting every allowed pass.
func TestStageAllStopsOnPlateau(t *testing.T) {
	e, dirs := newEngine(t)
	writeWorkbookSheet(t, dirs.workbook, "Clusters", "Cluster Name\nNorth\n")
	writeWorkbookSheet(t, dirs.workbook, "Locations", "Location Name,Cluster Name\nField A,North\nField B,Atlantis\n")

	report, err := e.StageAll()
	require.NoError(t, err)

	// Pass 2 resolves Field A; pass 3 changes nothing and stops.
	assert.Equal(t, 3, report.Passes)
	assert.Equal(t, 1, report.TotalErrors())

	withErrors := report.WithErrors()
	require.Len(t, withErrors, 1)
	assert.Equal(t, "LOCATIONS", withErrors[0].Entity)
	assert.True(t, withErrors[0].HasFKErrors())
	assert.Equal(t, 1, withErrors[0].ValidCount)
}

func TestStageAllMissingSheetIsANote(t *testing.T) {
	e, dirs := newEngine(t)
	writeWorkbookSheet(t, dirs.workbook, "Clusters", "Cluster Name\nNorth\n")

	report, err := e.StageAll()
	require.NoError(t, err)

	res := report.Results["LOCATIONS"]
	require.NotNil(t, res)
	assert.Contains(t, res.Note, "sheet unavailable")
	assert.Equal(t, 0, res.ErrorCount)
	assert.Equal(t, 1, report.Results["CLUSTERS"].ValidCount)
}

func TestStageAllEmptySheet(t *testing.T) {
	e, dirs := newEngine(t)
	writeWorkbookSheet(t, dirs.workbook, "Clusters", "Cluster Name\n")
	writeWorkbookSheet(t, dirs.workbook, "Locations", "Location Name,Cluster Name\n")

	report, err := e.StageAll()
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalValid())
	assert.Equal(t, "no data rows found in sheet", report.Results["CLUSTERS"].Note)
	assert.Empty(t, report.Clean())
}

// A re-stage that produces no valid rows must discard its earlier staged file.
func TestRestageDiscardsStaleFile(t *testing.T) {
	e, dirs := newEngine(t)
	writeWorkbookSheet(t, dirs.workbook, "Clusters", "Cluster Name\nNorth\n")

	report, err := e.StageAll()
	require.NoError(t, err)
	staged := filepath.Join(dirs.staging, "CLUSTERS.csv")
	require.FileExists(t, staged)

	// Persist the staged clusters, then stage the same workbook again: the
	// dedup overlay drops every row and the stale staged file must go away.
	_, rows, err := csvdata.ReadTable(staged)
	require.NoError(t, err)
	require.NoError(t, csvdata.WriteTable(csvdata.FilePath(dirs.data, "CLUSTERS"), []string{"ID", "NAME"}, rows))

	report, err = e.StageAll()
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results["CLUSTERS"].ValidCount)
	assert.NoFileExists(t, staged)
}
