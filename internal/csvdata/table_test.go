package csvdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNaming(t *testing.T) {
	assert.Equal(t, "CCTECH.DRS.ENTITIES-CLUSTERS.csv", FileName("CLUSTERS"))
	assert.Equal(t, filepath.Join("data", "CCTECH.DRS.ENTITIES-SPVS.csv"), FilePath("data", "SPVS"))

	assert.Equal(t, "CLUSTERS", EntityForFile("CCTECH.DRS.ENTITIES-CLUSTERS.csv"))
	assert.Equal(t, "", EntityForFile("CLUSTERS.csv"))
	assert.Equal(t, "", EntityForFile("CCTECH.DRS.ENTITIES-CLUSTERS.bak"))
}

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CCTECH.DRS.ENTITIES-LOCATIONS.csv")
	columns := []string{"ID", "NAME", "CLUSTER_ID"}
	rows := []map[string]string{
		{"ID": "l-1", "NAME": "North, Field", "CLUSTER_ID": "c-1"},
		{"ID": "l-2", "NAME": "South Field", "EXTRA": "dropped"},
	}
	require.NoError(t, WriteTable(path, columns, rows))

	header, got, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, columns, header)
	require.Len(t, got, 2)
	assert.Equal(t, "North, Field", got[0]["NAME"])
	assert.Equal(t, "", got[1]["CLUSTER_ID"], "absent columns come back blank")
	assert.NotContains(t, got[1], "EXTRA", "keys outside the column order are not persisted")
}

func TestReadTableMissingFile(t *testing.T) {
	header, rows, err := ReadTable(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, rows)
}

func TestReadTableBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFID,NAME\n1,Alpha\n"), 0o644))

	header, rows, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0]["ID"])
}

func TestReadTableShortRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.csv")
	require.NoError(t, os.WriteFile(path, []byte("ID,NAME,NOTE\n1,Alpha\n"), 0o644))

	_, rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["NOTE"])
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "h.csv")
	require.NoError(t, os.WriteFile(path, []byte(" ID , NAME \n"), 0o644))

	header, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME"}, header)

	header, err = ReadHeader(filepath.Join(dir, "absent.csv"))
	require.NoError(t, err)
	assert.Nil(t, header)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	header, err = ReadHeader(empty)
	require.NoError(t, err)
	assert.Nil(t, header)
}

func TestListTables(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CCTECH.DRS.ENTITIES-CLUSTERS.csv"), []byte("ID,NAME\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CCTECH.DRS.ENTITIES-SPVS.csv"), []byte("ID,NAME,COUNTRY\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.csv"), []byte("X\n"), 0o644))

	tables, err := ListTables(dir)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, []string{"ID", "NAME"}, tables["CLUSTERS"].Columns)
	assert.Equal(t, []string{"ID", "NAME", "COUNTRY"}, tables["SPVS"].Columns)
}

func TestListTablesMissingDir(t *testing.T) {
	tables, err := ListTables(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, tables)
}
