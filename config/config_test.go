package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRequiresHostAndPath(t *testing.T) {
	t.Setenv("DATABRICKS_SERVER_HOSTNAME", "")
	t.Setenv("DATABRICKS_HOST", "")
	t.Setenv("DATABRICKS_HTTP_PATH", "")
	t.Setenv("WAREHOUSE_ID", "")
	require.Error(t, Init())
}

func TestInitDefaults(t *testing.T) {
	t.Setenv("DATABRICKS_SERVER_HOSTNAME", "https://my-host.cloud.databricks.com")
	t.Setenv("DATABRICKS_HTTP_PATH", "/sql/1.0/warehouses/abc")
	require.NoError(t, Init())

	c := Get()
	assert.Equal(t, "my-host.cloud.databricks.com", c.ServerHostname)
	assert.Equal(t, 1000, c.DefaultReadLimit)
	assert.Equal(t, 10000, c.MaxReadLimit)
	assert.Equal(t, 8, c.RateLimitRequests)
	assert.True(t, c.WarmupEnabled)
	assert.Equal(t, "SELECT 1", c.WarmupSQL)
}

func TestInitOverrides(t *testing.T) {
	t.Setenv("DATABRICKS_SERVER_HOSTNAME", "host")
	t.Setenv("DATABRICKS_HTTP_PATH", "/path")
	t.Setenv("MAX_BATCH_SIZE", "250")
	t.Setenv("WAREHOUSE_WARMUP_ENABLED", "false")
	require.NoError(t, Init())

	c := Get()
	assert.Equal(t, 250, c.MaxBatchSize)
	assert.False(t, c.WarmupEnabled)
}
