package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	sqlPath := filepath.Join(dir, "list_tables.sql")
	require.NoError(t, os.WriteFile(sqlPath, []byte("SELECT * FROM :table_ref WHERE created_at > :since"), 0o644))

	manifestJSON := `{
		"schema.list_tables": {
			"file": "list_tables.sql",
			"parameters": [
				{"name": "table_ref", "param_type": "table_ref", "required": true},
				{"name": "since", "param_type": "string", "required": false, "default": "2020-01-01"}
			]
		}
	}`
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifestJSON), 0o644))
	return manifestPath
}

func TestLoadAndGet(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)

	m, err := Load(path)
	require.NoError(t, err)

	q, err := m.Get("schema.list_tables")
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "SELECT * FROM")
}

func TestGetUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)
	m, err := Load(path)
	require.NoError(t, err)

	_, err = m.Get("nope.nope")
	assert.Error(t, err)
}

func TestBindSubstitutesTableRefAndAppliesDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)
	m, err := Load(path)
	require.NoError(t, err)

	q, err := m.Get("schema.list_tables")
	require.NoError(t, err)

	sql, params, err := q.Bind(map[string]any{"table_ref": "main.sales.orders"})
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM `main`.`sales`.`orders`")
	assert.Equal(t, "2020-01-01", params["since"])
}

func TestBindRejectsUnknownParameter(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)
	m, err := Load(path)
	require.NoError(t, err)

	q, err := m.Get("schema.list_tables")
	require.NoError(t, err)

	_, _, err = q.Bind(map[string]any{"table_ref": "main.sales.orders", "bogus": 1})
	assert.Error(t, err)
}

func TestBindRejectsMissingRequired(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)
	m, err := Load(path)
	require.NoError(t, err)

	q, err := m.Get("schema.list_tables")
	require.NoError(t, err)

	_, _, err = q.Bind(map[string]any{})
	assert.Error(t, err)
}

func TestGetRejectsNonReadOnlySQL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("DELETE FROM t"), 0o644))
	manifestJSON := `{"bad.query": {"file": "bad.sql"}}`
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifestJSON), 0o644))

	m, err := Load(manifestPath)
	require.NoError(t, err)

	_, err = m.Get("bad.query")
	assert.Error(t, err)
}
