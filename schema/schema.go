// Package schema implements the hybrid memory+file TTL cache of spec.md
// §4.7: a mutex-guarded memory tier, a JSON file tier under
// <cache_dir>/<catalog>/<schema>.<table>.json written atomically
// (tempfile + rename), and a single-flight information_schema fetch that
// merges two named queries into a TableSchema. Grounded on the teacher's
// atomic-tempfile-then-rename config publication idiom, generalised from a
// one-shot startup write to a per-key cache fill.
package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/logger"
	"github.com/databricks-labs/gatewaydb/manifest"
	"github.com/databricks-labs/gatewaydb/metrics"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/types"
	"go.uber.org/zap"
)

// TableSchema is the resolved metadata for one table.
type TableSchema struct {
	Catalog   string                 `json:"catalog"`
	Schema    string                 `json:"schema"`
	Table     string                 `json:"table"`
	FetchedAt time.Time              `json:"fetched_at"`
	Columns   []types.ColumnMetadata `json:"columns"`
}

type memEntry struct {
	schema   TableSchema
	cachedAt time.Time
}

// Provider is the schema cache + fetcher.
type Provider struct {
	pool      *pool.Pool
	manifest  *manifest.Manifest
	cacheDir  string
	ttl       time.Duration
	group     singleflight.Group

	mu  sync.Mutex
	mem map[string]memEntry
}

// New builds a Provider. cacheDir is the root of the file tier
// ("cache/schema" per spec.md §6); ttl applies to both tiers.
func New(p *pool.Pool, m *manifest.Manifest, cacheDir string, ttl time.Duration) *Provider {
	return &Provider{pool: p, manifest: m, cacheDir: cacheDir, ttl: ttl, mem: make(map[string]memEntry)}
}

func cacheKey(catalog, schemaName, table string) string {
	return catalog + "." + schemaName + "." + table
}

// Get resolves a table's schema: memory, then file (honouring TTL), then a
// single-flight information_schema fetch under a service-principal lease.
func (p *Provider) Get(ctx context.Context, catalog, schemaName, table string) (*TableSchema, error) {
	key := cacheKey(catalog, schemaName, table)

	if s, ok := p.fromMemory(key); ok {
		metrics.SchemaCacheHits.WithLabelValues("memory").Inc()
		return s, nil
	}

	if s, ok := p.fromFile(catalog, schemaName, table); ok {
		metrics.SchemaCacheHits.WithLabelValues("file").Inc()
		p.storeMemory(key, *s)
		return s, nil
	}
	metrics.SchemaCacheMisses.WithLabelValues("memory_and_file").Inc()

	result, err, _ := p.group.Do(key, func() (any, error) {
		return p.fetch(ctx, catalog, schemaName, table)
	})
	if err != nil {
		return nil, err
	}
	fetched := result.(TableSchema)
	p.storeMemory(key, fetched)
	p.storeFile(catalog, schemaName, table, fetched)
	return &fetched, nil
}

// Invalidate drops both tiers for a table.
func (p *Provider) Invalidate(catalog, schemaName, table string) {
	key := cacheKey(catalog, schemaName, table)
	p.mu.Lock()
	delete(p.mem, key)
	p.mu.Unlock()

	path := p.filePath(catalog, schemaName, table)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Schema.Warn("failed to remove cached schema file", zap.String("path", path), zap.Error(err))
	}
}

func (p *Provider) fromMemory(key string) (*TableSchema, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.mem[key]
	if !ok || time.Since(e.cachedAt) >= p.ttl {
		return nil, false
	}
	s := e.schema
	return &s, true
}

func (p *Provider) storeMemory(key string, s TableSchema) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mem[key] = memEntry{schema: s, cachedAt: time.Now()}
}

func (p *Provider) filePath(catalog, schemaName, table string) string {
	return filepath.Join(p.cacheDir, catalog, schemaName+"."+table+".json")
}

func (p *Provider) fromFile(catalog, schemaName, table string) (*TableSchema, bool) {
	raw, err := os.ReadFile(p.filePath(catalog, schemaName, table))
	if err != nil {
		return nil, false
	}
	var s TableSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	if time.Since(s.FetchedAt) >= p.ttl {
		return nil, false
	}
	return &s, true
}

// storeFile writes atomically via tempfile + rename, per spec.md §4.7/§6.
func (p *Provider) storeFile(catalog, schemaName, table string, s TableSchema) {
	path := p.filePath(catalog, schemaName, table)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Schema.Warn("failed to create schema cache directory", zap.String("dir", dir), zap.Error(err))
		return
	}

	raw, err := json.Marshal(s)
	if err != nil {
		logger.Schema.Warn("failed to marshal schema for cache", zap.Error(err))
		return
	}

	tmp, err := os.CreateTemp(dir, ".schema-*.tmp")
	if err != nil {
		logger.Schema.Warn("failed to create schema cache tempfile", zap.Error(err))
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		logger.Schema.Warn("failed to write schema cache tempfile", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		logger.Schema.Warn("failed to close schema cache tempfile", zap.Error(err))
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		logger.Schema.Warn("failed to publish schema cache file", zap.String("path", path), zap.Error(err))
	}
}

// fetch reads schema.table_columns and schema.primary_keys via the query
// manifest under a service-principal lease, merging them into a
// TableSchema (spec.md §4.7).
func (p *Provider) fetch(ctx context.Context, catalog, schemaName, table string) (TableSchema, error) {
	columnsQuery, err := p.manifest.Get("schema.table_columns")
	if err != nil {
		return TableSchema{}, err
	}
	pkQuery, err := p.manifest.Get("schema.primary_keys")
	if err != nil {
		return TableSchema{}, err
	}

	tableRef := catalog + "." + schemaName + "." + table
	columnsSQL, columnsParams, err := columnsQuery.Bind(map[string]any{"table_ref": tableRef})
	if err != nil {
		return TableSchema{}, err
	}
	pkSQL, pkParams, err := pkQuery.Bind(map[string]any{"table_ref": tableRef})
	if err != nil {
		return TableSchema{}, err
	}

	taskCtx := pool.WithTask(ctx)
	conn, release, err := p.pool.Lease(taskCtx, driver.Identity{})
	if err != nil {
		return TableSchema{}, errs.Wrap(errs.KindConnection, err, "leasing connection for schema fetch")
	}
	defer release()
	defer p.pool.CloseTask(taskCtx)

	columnsResult, err := conn.Query(taskCtx, columnsSQL, columnsParams, types.DataFormatJSONRows)
	if err != nil {
		return TableSchema{}, errs.Wrap(errs.KindConnection, err, "fetching table columns")
	}
	pkResult, err := conn.Query(taskCtx, pkSQL, pkParams, types.DataFormatJSONRows)
	if err != nil {
		return TableSchema{}, errs.Wrap(errs.KindConnection, err, "fetching primary keys")
	}

	pkSet := make(map[string]bool)
	for _, row := range pkResult.Rows {
		if name, ok := row.Get("column_name"); ok {
			if s, ok := name.(string); ok {
				pkSet[s] = true
			}
		}
	}

	columns := make([]types.ColumnMetadata, 0, len(columnsResult.Rows))
	for _, row := range columnsResult.Rows {
		name, _ := row.Get("column_name")
		dataType, _ := row.Get("data_type")
		nullable, _ := row.Get("is_nullable")
		ordinal, _ := row.Get("ordinal_position")
		nameStr, _ := name.(string)
		columns = append(columns, types.ColumnMetadata{
			Name:            nameStr,
			DataType:        stringOr(dataType, ""),
			Nullable:        boolOr(nullable, true),
			IsPrimaryKey:    pkSet[nameStr],
			OrdinalPosition: intOr(ordinal, 0),
		})
	}

	return TableSchema{
		Catalog:   catalog,
		Schema:    schemaName,
		Table:     table,
		FetchedAt: time.Now(),
		Columns:   columns,
	}, nil
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func intOr(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}
