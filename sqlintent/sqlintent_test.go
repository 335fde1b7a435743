package sqlintent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/types"
)

func TestBuildSelectCapsLimit(t *testing.T) {
	requested := 50000
	req := types.OperationRequest{
		Table:   "main.sales.orders",
		Columns: []string{"*"},
		Options: types.Options{Limit: &requested},
	}
	intent, err := BuildSelect(req, 1000, 10000)
	require.NoError(t, err)
	assert.True(t, intent.LimitCapped)
	assert.Equal(t, 10000, intent.Limit)

	sql, _, err := intent.Render()
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT * FROM `main`.`sales`.`orders`")
	assert.Contains(t, sql, "LIMIT 10000")
}

func TestBuildSelectRejectsHavingWithoutGroupBy(t *testing.T) {
	req := types.OperationRequest{
		Table:   "main.sales.orders",
		Columns: []string{"*"},
		Options: types.Options{Having: []types.FilterClause{{Column: "n", Op: types.OpGt, Value: 1}}},
	}
	_, err := BuildSelect(req, 100, 1000)
	assert.Error(t, err)
}

func TestSelectRenderWithFiltersAndOrder(t *testing.T) {
	req := types.OperationRequest{
		Table:   "main.sales.orders",
		Columns: []string{"id", "status"},
		Where:   []types.Row{{{Column: "status", Value: "OPEN"}}},
		Options: types.Options{
			OrderBy: []types.OrderByClause{{Column: "id", Direction: types.OrderDesc}},
		},
	}
	intent, err := BuildSelect(req, 100, 1000)
	require.NoError(t, err)
	sql, params, err := intent.Render()
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT `id`, `status` FROM")
	assert.Contains(t, sql, "ORDER BY `id` DESC")
	assert.Contains(t, sql, "%(")
	assert.NotEmpty(t, params)
}

func TestSelectRenderEmptyInListIsAlwaysFalse(t *testing.T) {
	req := types.OperationRequest{
		Table:   "main.sales.orders",
		Columns: []string{"*"},
	}
	intent, err := BuildSelect(req, 100, 1000)
	require.NoError(t, err)
	intent.Where = []types.FilterClause{{Column: "id", Op: types.OpIn, Value: []any{}}}
	sql, _, err := intent.Render()
	require.NoError(t, err)
	assert.Contains(t, sql, "IS NULL AND 1 = 0")
}

func TestBuildInsertRenders(t *testing.T) {
	req := types.OperationRequest{
		Table:   "main.sales.orders",
		Payload: []types.Row{{{Column: "id", Value: 1}, {Column: "status", Value: "OPEN"}}},
	}
	intent, err := BuildInsert(req)
	require.NoError(t, err)
	sql, params, err := intent.Render()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO `main`.`sales`.`orders` (`id`, `status`) VALUES (%(id)s, %(status)s)")
	assert.Equal(t, 1, params["id"])
}

func TestBuildUpdateRejectsOverlapWithPK(t *testing.T) {
	_, err := BuildUpdate("main.s.t", StrategyUpdate,
		types.Row{{Column: "id", Value: 2}},
		types.Row{{Column: "id", Value: 1}},
		nil,
	)
	assert.Error(t, err)
}

func TestUpdateRenderWithOldValues(t *testing.T) {
	intent, err := BuildUpdate("main.s.t", StrategyUpdate,
		types.Row{{Column: "status", Value: "CLOSED"}},
		types.Row{{Column: "id", Value: 1}},
		types.Row{{Column: "status", Value: "OPEN"}},
	)
	require.NoError(t, err)
	sql, params, err := intent.Render()
	require.NoError(t, err)
	assert.Contains(t, sql, "UPDATE `main`.`s`.`t` SET `status` = %(s_status)s WHERE")
	assert.Contains(t, sql, "`id` = %(pk_id)s")
	assert.Contains(t, sql, "`status` = %(old_status)s")
	assert.Equal(t, "CLOSED", params["s_status"])
	assert.Equal(t, "OPEN", params["old_status"])
}

func TestMergeRender(t *testing.T) {
	intent, err := BuildUpdate("main.s.t", StrategyMerge,
		types.Row{{Column: "status", Value: "CLOSED"}},
		types.Row{{Column: "id", Value: 1}},
		nil,
	)
	require.NoError(t, err)
	sql, _, err := intent.Render()
	require.NoError(t, err)
	assert.Contains(t, sql, "MERGE INTO `main`.`s`.`t` AS t USING (SELECT")
	assert.Contains(t, sql, "ON `t`.`id` = `s`.`id`")
	assert.Contains(t, sql, "WHEN MATCHED THEN UPDATE SET `t`.`status` = `s`.`status`")
	assert.Contains(t, sql, "WHEN NOT MATCHED THEN INSERT (`id`, `status`) VALUES (`s`.`id`, `s`.`status`)")
}

func TestDeleteRenderOrCombinesMultiplePKSets(t *testing.T) {
	intent, err := BuildDelete("main.s.t", []types.Row{
		{{Column: "id", Value: 1}},
		{{Column: "id", Value: 2}},
	})
	require.NoError(t, err)
	sql, params, err := intent.Render()
	require.NoError(t, err)
	assert.Contains(t, sql, "DELETE FROM `main`.`s`.`t` WHERE (`id` = %(pk_id)s OR `id` = %(pk_id_1)s)")
	assert.Equal(t, 1, params["pk_id"])
	assert.Equal(t, 2, params["pk_id_1"])
}

func TestNormalizePlaceholdersSkipsCastOperator(t *testing.T) {
	sql := normalizePlaceholders("SELECT col::int FROM t WHERE id = :id")
	assert.Equal(t, "SELECT col::int FROM t WHERE id = %(id)s", sql)
}
