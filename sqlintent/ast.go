// Package sqlintent is the AST-driven SQL generation engine of spec.md
// §4.2: four typed intent builders (SELECT/INSERT/UPDATE-or-MERGE/DELETE)
// that compile a validated OperationRequest into Spark-flavoured SQL with
// backtick-quoted identifiers and named placeholders, without ever
// concatenating raw caller-supplied strings into the statement text.
// Grounded on the teacher's dsl package (a fluent AST-ish query builder
// over gorm), generalised here into a standalone AST since gorm cannot
// express this spec's MERGE/BETWEEN/multi-shape result requirements.
package sqlintent

import (
	"strconv"
	"strings"

	"github.com/databricks-labs/gatewaydb/types"
)

// node is the common render contract every AST node satisfies: write its
// SQL text into b, recording any placeholder bindings into params.
type node interface {
	write(b *strings.Builder, params map[string]any)
}

// identifier is a single quoted name (column, table segment). It is never
// built from caller text via concatenation; validate.Identifier/TableRef
// must have already approved the raw string before it reaches here.
type identifier string

func (id identifier) write(b *strings.Builder, _ map[string]any) {
	b.WriteByte('`')
	b.WriteString(string(id))
	b.WriteByte('`')
}

// star renders the `*` projection.
type star struct{}

func (star) write(b *strings.Builder, _ map[string]any) { b.WriteByte('*') }

// placeholder renders `:name` and records value under that name. Names are
// de-duplicated by the builder functions (each placeholder name is unique
// within one statement), so last-write-wins here never triggers.
type placeholder struct {
	name  string
	value any
}

func (p placeholder) write(b *strings.Builder, params map[string]any) {
	b.WriteByte(':')
	b.WriteString(p.name)
	params[p.name] = p.value
}

// qualifiedColumn renders `alias`.`column` or bare `column` when alias is
// empty — used by MERGE, which must disambiguate t.col vs s.col.
type qualifiedColumn struct {
	alias  string
	column string
}

func (q qualifiedColumn) write(b *strings.Builder, params map[string]any) {
	if q.alias != "" {
		identifier(q.alias).write(b, params)
		b.WriteByte('.')
	}
	identifier(q.column).write(b, params)
}

// predicate is one WHERE/HAVING condition node.
type predicate interface {
	node
}

// compare renders `<col> <op> <placeholder>`.
type compare struct {
	column identifier
	op     types.FilterOp
	ph     placeholder
}

func (c compare) write(b *strings.Builder, params map[string]any) {
	c.column.write(b, params)
	b.WriteByte(' ')
	b.WriteString(string(c.op))
	b.WriteByte(' ')
	c.ph.write(b, params)
}

// nullCheck renders `<col> IS [NOT] NULL` — no bind.
type nullCheck struct {
	column identifier
	not    bool
}

func (n nullCheck) write(b *strings.Builder, params map[string]any) {
	n.column.write(b, params)
	if n.not {
		b.WriteString(" IS NOT NULL")
	} else {
		b.WriteString(" IS NULL")
	}
}

// alwaysFalse renders a condition that can never match, used to degenerate
// an empty IN/equality list (spec.md §4.2) without ever emitting `IN ()`,
// which several SQL dialects reject outright.
type alwaysFalse struct {
	column identifier
}

func (a alwaysFalse) write(b *strings.Builder, params map[string]any) {
	nullCheck{column: a.column, not: false}.write(b, params)
	b.WriteString(" AND 1 = 0")
}

// inList renders `<col> [NOT ]IN (:p0, :p1, ...)`.
type inList struct {
	column identifier
	not    bool
	phs    []placeholder
}

func (l inList) write(b *strings.Builder, params map[string]any) {
	l.column.write(b, params)
	if l.not {
		b.WriteString(" NOT IN (")
	} else {
		b.WriteString(" IN (")
	}
	for i, ph := range l.phs {
		if i > 0 {
			b.WriteString(", ")
		}
		ph.write(b, params)
	}
	b.WriteByte(')')
}

// between renders `<col> BETWEEN :lo AND :hi`.
type between struct {
	column identifier
	lo, hi placeholder
}

func (bt between) write(b *strings.Builder, params map[string]any) {
	bt.column.write(b, params)
	b.WriteString(" BETWEEN ")
	bt.lo.write(b, params)
	b.WriteString(" AND ")
	bt.hi.write(b, params)
}

// andGroup ANDs its members together, parenthesised when there is more
// than one so ORing andGroups together later stays unambiguous.
type andGroup struct {
	members []predicate
}

func (g andGroup) write(b *strings.Builder, params map[string]any) {
	writeJoined(b, params, g.members, " AND ", len(g.members) > 1)
}

// orGroup ORs andGroups together (used by DELETE's multi-PK-set clause).
type orGroup struct {
	members []predicate
}

func (g orGroup) write(b *strings.Builder, params map[string]any) {
	writeJoined(b, params, g.members, " OR ", len(g.members) > 1)
}

func writeJoined(b *strings.Builder, params map[string]any, members []predicate, sep string, parens bool) {
	if parens {
		b.WriteByte('(')
	}
	for i, m := range members {
		if i > 0 {
			b.WriteString(sep)
		}
		m.write(b, params)
	}
	if parens {
		b.WriteByte(')')
	}
}

// aggregateExpr renders `FUNC(col) [AS alias]`.
type aggregateExpr struct {
	fn     types.AggregateFunc
	column identifier
	alias  string
}

func (a aggregateExpr) write(b *strings.Builder, params map[string]any) {
	b.WriteString(string(a.fn))
	b.WriteByte('(')
	a.column.write(b, params)
	b.WriteByte(')')
	if a.alias != "" {
		b.WriteString(" AS ")
		identifier(a.alias).write(b, params)
	}
}

// orderTerm renders `col ASC|DESC`.
type orderTerm struct {
	column    identifier
	direction types.OrderDirection
}

func (o orderTerm) write(b *strings.Builder, params map[string]any) {
	o.column.write(b, params)
	b.WriteByte(' ')
	b.WriteString(string(o.direction))
}

// render walks root and returns the finished SQL text (placeholders still
// in `:name` form) plus the collected params.
func render(root node) (string, map[string]any) {
	var b strings.Builder
	params := make(map[string]any)
	root.write(&b, params)
	return b.String(), params
}

// normalizePlaceholders rewrites dialect-neutral `:name` placeholders to
// the driver-required `%(name)s` form (spec.md §4.2/§6), skipping `::`
// cast operators so a construct like `col::int` is left untouched.
func normalizePlaceholders(sql string) string {
	var b strings.Builder
	i := 0
	for i < len(sql) {
		c := sql[i]
		if c != ':' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(sql) && sql[i+1] == ':' {
			b.WriteString("::")
			i += 2
			continue
		}
		j := i + 1
		for j < len(sql) && isIdentByte(sql[j]) {
			j++
		}
		if j == i+1 {
			// lone ':' with no following identifier char; pass through.
			b.WriteByte(c)
			i++
			continue
		}
		b.WriteString("%(")
		b.WriteString(sql[i+1 : j])
		b.WriteString(")s")
		i = j
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// placeholderSeq gives each placeholder name in a list a unique numeric
// suffix so repeated calls (e.g. IN-list members) never collide.
func placeholderSeq(prefix string, i int) string {
	return prefix + "_" + strconv.Itoa(i)
}
