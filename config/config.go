// Package config builds the immutable, process-wide settings snapshot for
// the gateway. It is the Go analogue of the teacher's config package: a
// package-level singleton published by Init under a mutex and read only
// through Get; a published Config is never mutated (a later Init call
// replaces it wholesale). Unlike the teacher, there is no file/viper
// tier here — spec.md treats environment-variable loading as the only
// recognised configuration source.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	mu     sync.RWMutex
	app    *Config
	inited bool
)

// Config is the complete environment-derived settings snapshot (spec.md §6).
type Config struct {
	// Warehouse connection coordinates. The physical driver is out of
	// scope; these are surfaced so a Driver implementation can read them.
	ServerHostname string
	HTTPPath       string
	Token          string
	Catalog        string
	Schema         string

	DefaultReadLimit int
	MaxReadLimit     int
	MaxBatchSize     int
	MaxTxStatements  int

	QueryTimeout   time.Duration
	ConnPoolSize   int
	SocketTimeout  time.Duration
	SessionTimeout time.Duration
	UseCloudFetch  bool

	RateLimitRequests     int
	RateLimitWindow       time.Duration
	MaxConcurrentQueries  int
	RateLimitCleanupEvery time.Duration

	WarmupEnabled        bool
	WarmupTTL            time.Duration
	WarmupFailureBackoff time.Duration
	WarmupSQL            string

	SchemaCacheTTL time.Duration
	SchemaCacheDir string

	LogLevel  string
	LogFormat string
	LogFile   string

	ManifestPath string

	UILogCapacity int
	ListenAddr    string
}

// Init parses the process environment into a fresh Config and publishes it.
// Safe to call more than once (e.g. in tests); each call rebuilds the
// snapshot from scratch and atomically replaces the published value.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	c := &Config{
		ServerHostname: strings.TrimPrefix(strings.TrimPrefix(firstEnv("DATABRICKS_SERVER_HOSTNAME", "DATABRICKS_HOST"), "https://"), "http://"),
		HTTPPath:       firstEnv("DATABRICKS_HTTP_PATH", "WAREHOUSE_ID"),
		Token:          os.Getenv("DATABRICKS_TOKEN"),
		Catalog:        os.Getenv("DATABRICKS_CATALOG"),
		Schema:         os.Getenv("DATABRICKS_SCHEMA"),

		DefaultReadLimit: envInt("DEFAULT_READ_LIMIT", 1000),
		MaxReadLimit:     envInt("MAX_READ_LIMIT", 10000),
		MaxBatchSize:     envInt("MAX_BATCH_SIZE", 1000),
		MaxTxStatements:  envInt("MAX_TRANSACTION_STATEMENTS", 50),

		QueryTimeout:   envSeconds("QUERY_TIMEOUT_SECONDS", 900),
		ConnPoolSize:   envInt("CONNECTION_POOL_SIZE", 5),
		SocketTimeout:  envSeconds("DB_SOCKET_TIMEOUT", 600),
		SessionTimeout: envSeconds("DB_SESSION_TIMEOUT", 3600),
		UseCloudFetch:  envBool("USE_CLOUD_FETCH", false),

		RateLimitRequests:     envInt("RATE_LIMIT_REQUESTS", 8),
		RateLimitWindow:       envSeconds("RATE_LIMIT_WINDOW_SECONDS", 10),
		MaxConcurrentQueries:  envInt("MAX_CONCURRENT_QUERIES", 20),
		RateLimitCleanupEvery: envSeconds("RATE_LIMIT_CLEANUP_INTERVAL_SECONDS", 300),

		WarmupEnabled:        envBool("WAREHOUSE_WARMUP_ENABLED", true),
		WarmupTTL:            envSeconds("WAREHOUSE_WARMUP_TTL_SECONDS", 600),
		WarmupFailureBackoff: envSeconds("WAREHOUSE_WARMUP_FAILURE_BACKOFF_SECONDS", 30),
		WarmupSQL:            envString("WAREHOUSE_WARMUP_SQL", "SELECT 1"),

		SchemaCacheTTL: envSeconds("SCHEMA_CACHE_TTL_SECONDS", 3600),
		SchemaCacheDir: envString("SCHEMA_CACHE_DIR", "cache/schema"),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT_STYLE", "json"),
		LogFile:   os.Getenv("LOG_FILE"),

		ManifestPath: envString("QUERY_MANIFEST_PATH", "manifest.json"),

		UILogCapacity: envInt("UI_LOG_CAPACITY", 200),
		ListenAddr:    envString("LISTEN_ADDR", ":8080"),
	}

	if c.ServerHostname == "" {
		return errors.New("config: DATABRICKS_SERVER_HOSTNAME or DATABRICKS_HOST is required")
	}
	if c.HTTPPath == "" {
		return errors.New("config: DATABRICKS_HTTP_PATH or WAREHOUSE_ID is required")
	}

	app = c
	inited = true
	return nil
}

// Get returns the published configuration. Panics if Init has not run
// successfully — every entrypoint must call config.Init before touching any
// other package, matching the teacher's "initialise under a lock, publish
// via idempotent getter" design note (spec.md §9).
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if !inited {
		panic("config: Get called before Init")
	}
	return app
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v, ok := os.LookupEnv(n); ok && v != "" {
			return v
		}
	}
	return ""
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envSeconds(name string, defSeconds int) time.Duration {
	n := envInt(name, defSeconds)
	return time.Duration(n) * time.Second
}
