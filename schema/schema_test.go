package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
	"github.com/databricks-labs/gatewaydb/manifest"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/types"
)

func newTestManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "columns.sql"), []byte("SELECT column_name FROM information_schema.columns WHERE table_name = :table_ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pks.sql"), []byte("SELECT column_name FROM information_schema.key_column_usage WHERE table_name = :table_ref"), 0o644))

	manifestJSON := `{
		"schema.table_columns": {"file": "columns.sql", "parameters": [{"name": "table_ref", "param_type": "table_ref", "required": true}]},
		"schema.primary_keys": {"file": "pks.sql", "parameters": [{"name": "table_ref", "param_type": "table_ref", "required": true}]}
	}`
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(manifestJSON), 0o644))

	m, err := manifest.Load(path)
	require.NoError(t, err)
	return m
}

func TestGetFetchesAndCachesInMemory(t *testing.T) {
	fd := fakedriver.New()
	calls := 0
	fd.QueryFunc = func(sql string, params map[string]any, format types.DataFormat) (*types.QueryResult, error) {
		calls++
		return &types.QueryResult{Rows: []types.Row{{{Column: "column_name", Value: "id"}}}}, nil
	}
	p := pool.New(fd)
	m := newTestManifest(t)
	provider := New(p, m, t.TempDir(), time.Hour)

	s1, err := provider.Get(context.Background(), "main", "sales", "orders")
	require.NoError(t, err)
	assert.Len(t, s1.Columns, 1)

	s2, err := provider.Get(context.Background(), "main", "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, s1.FetchedAt, s2.FetchedAt)
	assert.Equal(t, 2, calls) // one fetch = two queries (columns + pks); second Get is a memory hit
}

func TestInvalidateDropsBothTiers(t *testing.T) {
	fd := fakedriver.New()
	p := pool.New(fd)
	m := newTestManifest(t)
	cacheDir := t.TempDir()
	provider := New(p, m, cacheDir, time.Hour)

	_, err := provider.Get(context.Background(), "main", "sales", "orders")
	require.NoError(t, err)

	provider.Invalidate("main", "sales", "orders")
	_, ok := provider.fromMemory(cacheKey("main", "sales", "orders"))
	assert.False(t, ok)
	_, ok = provider.fromFile("main", "sales", "orders")
	assert.False(t, ok)
}

func TestFilePersistedAcrossProviders(t *testing.T) {
	fd := fakedriver.New()
	p := pool.New(fd)
	m := newTestManifest(t)
	cacheDir := t.TempDir()

	provider1 := New(p, m, cacheDir, time.Hour)
	_, err := provider1.Get(context.Background(), "main", "sales", "orders")
	require.NoError(t, err)

	provider2 := New(p, m, cacheDir, time.Hour)
	s, ok := provider2.fromFile("main", "sales", "orders")
	require.True(t, ok)
	assert.Equal(t, "orders", s.Table)
}
