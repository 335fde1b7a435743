package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
	"github.com/databricks-labs/gatewaydb/types"
)

func setManifest(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	t.Setenv("QUERY_MANIFEST_PATH", path)
}

func setWarehouseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABRICKS_SERVER_HOSTNAME", "my-host.cloud.databricks.com")
	t.Setenv("DATABRICKS_HTTP_PATH", "/sql/1.0/warehouses/abc")
	t.Setenv("WAREHOUSE_WARMUP_ENABLED", "false")
}

func TestBootstrapWiresHeartbeat(t *testing.T) {
	setWarehouseEnv(t)
	setManifest(t)

	mgr, err := Bootstrap(fakedriver.New())
	require.NoError(t, err)
	require.NotNil(t, mgr)

	resp := mgr.Execute(context.Background(), types.OperationRequest{
		Operation: types.OpHeartbeat,
		Mode:      types.ModeSingle,
	}, "", "", nil)

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	setWarehouseEnv(t)
	setManifest(t)

	first, err := Bootstrap(fakedriver.New())
	require.NoError(t, err)

	second, err := Bootstrap(fakedriver.New())
	require.NoError(t, err)

	assert.Same(t, first, second)
}
