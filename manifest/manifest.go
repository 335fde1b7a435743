// Package manifest implements the named-query engine of spec.md §4.8: a
// startup-loaded manifest.json mapping dotted keys (e.g.
// "schema.list_tables") to a SQL file plus typed parameters, with
// first-use file loading, read-only/injection guards, and call-time
// parameter validation and substitution. Grounded on the teacher's
// config-file-plus-registry loading idiom (config.Init reading a snapshot
// once at startup and publishing it under a lock).
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/types"
	"github.com/databricks-labs/gatewaydb/validate"
)

// Parameter describes one named-query parameter (spec.md §4.8).
type Parameter struct {
	Name        string        `json:"name"`
	Type        types.ParamType `json:"param_type"`
	Required    bool          `json:"required"`
	Default     any           `json:"default,omitempty"`
	Description string        `json:"description,omitempty"`
}

// entry is one manifest.json record before its SQL file has been loaded.
type entry struct {
	File        string      `json:"file"`
	Description string      `json:"description,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	CacheTTL    int         `json:"cache_ttl,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

// Query is one resolved, validated named query ready for execution.
type Query struct {
	Key         string
	SQL         string
	Parameters  []Parameter
	CacheTTL    int
	Tags        []string
}

// Manifest is the startup-loaded, in-memory named-query registry.
type Manifest struct {
	dir     string
	mu      sync.RWMutex
	entries map[string]entry
	loaded  map[string]*Query
}

// Load reads manifestPath (a manifest.json) and returns a Manifest with all
// entries registered but SQL files not yet read (spec.md §4.8: "Each
// referenced SQL file is loaded on first use").
func Load(manifestPath string) (*Manifest, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnection, err, "reading query manifest")
	}
	var entries map[string]entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "parsing query manifest")
	}
	return &Manifest{
		dir:     filepath.Dir(manifestPath),
		entries: entries,
		loaded:  make(map[string]*Query),
	}, nil
}

// Get resolves key to a Query, loading and validating its SQL file on
// first use and caching the result for subsequent calls.
func (m *Manifest) Get(key string) (*Query, error) {
	m.mu.RLock()
	if q, ok := m.loaded[key]; ok {
		m.mu.RUnlock()
		return q, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.loaded[key]; ok {
		return q, nil
	}

	e, ok := m.entries[key]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "unknown named query: %q", key)
	}

	sqlBytes, err := os.ReadFile(filepath.Join(m.dir, e.File))
	if err != nil {
		return nil, errs.Wrap(errs.KindConnection, err, "loading named query file")
	}
	sql := string(sqlBytes)

	if err := validate.ReadOnlyPrefix(sql); err != nil {
		return nil, err
	}
	if err := validate.NoInjectionMarkers(sql); err != nil {
		return nil, err
	}

	q := &Query{Key: key, SQL: sql, Parameters: e.Parameters, CacheTTL: e.CacheTTL, Tags: e.Tags}
	m.loaded[key] = q
	return q, nil
}

// Bind applies defaults, rejects unknown parameters, type-checks supplied
// values, and quotes table_ref parameters as a three-level reference
// before binding (spec.md §4.8: "since identifiers cannot be bound"). It
// returns the final param map ready for the driver and the SQL with any
// table_ref placeholders substituted (identifiers, not bound values).
func (q *Query) Bind(supplied map[string]any) (string, map[string]any, error) {
	known := make(map[string]Parameter, len(q.Parameters))
	for _, p := range q.Parameters {
		known[p.Name] = p
	}
	for name := range supplied {
		if _, ok := known[name]; !ok {
			return "", nil, errs.Newf(errs.KindValidation, "unknown parameter: %q", name)
		}
	}

	sql := q.SQL
	params := make(map[string]any, len(q.Parameters))
	for _, p := range q.Parameters {
		value, present := supplied[p.Name]
		if !present {
			if p.Default != nil {
				value = p.Default
				present = true
			} else if p.Required {
				return "", nil, errs.Newf(errs.KindValidation, "missing required parameter: %q", p.Name)
			} else {
				continue
			}
		}

		typed, err := coerce(p, value)
		if err != nil {
			return "", nil, err
		}

		if p.Type == types.ParamTableRef {
			ref, ok := typed.(string)
			if !ok {
				return "", nil, errs.Newf(errs.KindValidation, "table_ref parameter %q must be a string", p.Name)
			}
			if err := validate.TableRef(ref); err != nil {
				return "", nil, err
			}
			sql = substituteTableRef(sql, p.Name, ref)
			continue
		}
		params[p.Name] = typed
	}
	return sql, params, nil
}

func coerce(p Parameter, value any) (any, error) {
	switch p.Type {
	case types.ParamString, types.ParamTableRef:
		s, ok := value.(string)
		if !ok {
			return nil, errs.Newf(errs.KindValidation, "parameter %q must be a string", p.Name)
		}
		return s, nil
	case types.ParamInteger:
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			return int(v), nil
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, errs.Newf(errs.KindValidation, "parameter %q must be an integer", p.Name)
			}
			return n, nil
		default:
			return nil, errs.Newf(errs.KindValidation, "parameter %q must be an integer", p.Name)
		}
	case types.ParamFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		default:
			return nil, errs.Newf(errs.KindValidation, "parameter %q must be a float", p.Name)
		}
	case types.ParamBool:
		b, ok := value.(bool)
		if !ok {
			return nil, errs.Newf(errs.KindValidation, "parameter %q must be a bool", p.Name)
		}
		return b, nil
	case types.ParamDate:
		s, ok := value.(string)
		if !ok {
			return nil, errs.Newf(errs.KindValidation, "parameter %q must be a date string", p.Name)
		}
		return s, nil
	case types.ParamList:
		list, ok := value.([]any)
		if !ok {
			return nil, errs.Newf(errs.KindValidation, "parameter %q must be a list", p.Name)
		}
		return list, nil
	default:
		return nil, errs.Newf(errs.KindValidation, "unsupported parameter type: %q", p.Type)
	}
}

// substituteTableRef replaces `:name` with the backtick-quoted three-level
// reference, since identifiers cannot be bound as placeholders.
func substituteTableRef(sql, name, ref string) string {
	quoted := quoteTableRef(ref)
	return replaceToken(sql, ":"+name, quoted)
}

func quoteTableRef(ref string) string {
	var out []byte
	for i, part := range splitDots(ref) {
		if i > 0 {
			out = append(out, '.')
		}
		out = append(out, '`')
		out = append(out, part...)
		out = append(out, '`')
	}
	return string(out)
}

func splitDots(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// replaceToken replaces every whole-word occurrence of token in sql. A
// simple byte scan suffices here since token always begins with ':' and
// manifest SQL is a small, trusted, locally-authored file.
func replaceToken(sql, token, replacement string) string {
	result := ""
	rest := sql
	for {
		idx := indexToken(rest, token)
		if idx < 0 {
			return result + rest
		}
		result += rest[:idx] + replacement
		rest = rest[idx+len(token):]
	}
}

func indexToken(s, token string) int {
	for i := 0; i+len(token) <= len(s); i++ {
		if s[i:i+len(token)] != token {
			continue
		}
		end := i + len(token)
		if end < len(s) && isWordByte(s[end]) {
			continue
		}
		return i
	}
	return -1
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
