package sqlintent

import "strings"

// tableRef renders a validated three-level catalog.schema.table reference
// as `cat`.`schema`.`table`.
type tableRef struct {
	catalog, schema, table string
}

func (t tableRef) write(b *strings.Builder, params map[string]any) {
	identifier(t.catalog).write(b, params)
	b.WriteByte('.')
	identifier(t.schema).write(b, params)
	b.WriteByte('.')
	identifier(t.table).write(b, params)
}

// selectStmt is the SELECT statement AST root (spec.md §4.2).
type selectStmt struct {
	table        tableRef
	wildcard     bool
	columns      []identifier
	aggregations []aggregateExpr
	where        andGroup
	groupBy      []identifier
	having       andGroup
	orderBy      []orderTerm
	limit        int
	offset       *int
}

func (s selectStmt) write(b *strings.Builder, params map[string]any) {
	b.WriteString("SELECT ")
	s.writeProjection(b, params)
	b.WriteString(" FROM ")
	s.table.write(b, params)
	if len(s.where.members) > 0 {
		b.WriteString(" WHERE ")
		s.where.write(b, params)
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, c := range s.groupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b, params)
		}
	}
	if len(s.having.members) > 0 {
		b.WriteString(" HAVING ")
		s.having.write(b, params)
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			o.write(b, params)
		}
	}
	b.WriteString(" LIMIT ")
	b.WriteString(itoa(s.limit))
	if s.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(itoa(*s.offset))
	}
}

func (s selectStmt) writeProjection(b *strings.Builder, params map[string]any) {
	first := true
	writeComma := func() {
		if !first {
			b.WriteString(", ")
		}
		first = false
	}
	if s.wildcard {
		writeComma()
		star{}.write(b, params)
	} else {
		for _, c := range s.columns {
			writeComma()
			c.write(b, params)
		}
	}
	for _, agg := range s.aggregations {
		writeComma()
		agg.write(b, params)
	}
}

// insertStmt: INSERT INTO t (cols...) VALUES (placeholders...).
type insertStmt struct {
	table   tableRef
	columns []identifier
	values  []placeholder
}

func (s insertStmt) write(b *strings.Builder, params map[string]any) {
	b.WriteString("INSERT INTO ")
	s.table.write(b, params)
	b.WriteString(" (")
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		c.write(b, params)
	}
	b.WriteString(") VALUES (")
	for i, v := range s.values {
		if i > 0 {
			b.WriteString(", ")
		}
		v.write(b, params)
	}
	b.WriteByte(')')
}

// setClause is one `col = :ph` assignment in an UPDATE's SET list.
type setClause struct {
	column identifier
	ph     placeholder
}

func (c setClause) write(b *strings.Builder, params map[string]any) {
	c.column.write(b, params)
	b.WriteString(" = ")
	c.ph.write(b, params)
}

// updateStmt: UPDATE t SET c = :s_c, ... WHERE pk = :pk_pk AND old_c = :old_c ...
type updateStmt struct {
	table tableRef
	sets  []setClause
	where andGroup
}

func (s updateStmt) write(b *strings.Builder, params map[string]any) {
	b.WriteString("UPDATE ")
	s.table.write(b, params)
	b.WriteString(" SET ")
	for i, set := range s.sets {
		if i > 0 {
			b.WriteString(", ")
		}
		set.write(b, params)
	}
	if len(s.where.members) > 0 {
		b.WriteString(" WHERE ")
		s.where.write(b, params)
	}
}

// mergeOn is one `t.pk = s.pk` ON-clause term.
type mergeOn struct {
	left, right qualifiedColumn
}

func (m mergeOn) write(b *strings.Builder, params map[string]any) {
	m.left.write(b, params)
	b.WriteString(" = ")
	m.right.write(b, params)
}

// mergeStmt: MERGE INTO t AS t USING (SELECT :m_c AS c ...) AS s ON
// t.pk = s.pk WHEN MATCHED THEN UPDATE SET t.c = s.c ... WHEN NOT MATCHED
// THEN INSERT (cols) VALUES (s.cols) — built entirely as AST nodes
// (spec.md §4.2).
type mergeStmt struct {
	table        tableRef
	usingColumns []identifier // all columns projected by the USING subselect
	usingValues  []placeholder
	onTerms      []mergeOn
	updateCols   []identifier // columns assigned in WHEN MATCHED (excludes pk)
	insertCols   []identifier // columns supplied in WHEN NOT MATCHED (all usingColumns)
}

func (m mergeStmt) write(b *strings.Builder, params map[string]any) {
	b.WriteString("MERGE INTO ")
	m.table.write(b, params)
	b.WriteString(" AS t USING (SELECT ")
	for i, col := range m.usingColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		m.usingValues[i].write(b, params)
		b.WriteString(" AS ")
		col.write(b, params)
	}
	b.WriteString(") AS s ON ")
	for i, on := range m.onTerms {
		if i > 0 {
			b.WriteString(" AND ")
		}
		on.write(b, params)
	}
	if len(m.updateCols) > 0 {
		b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		for i, col := range m.updateCols {
			if i > 0 {
				b.WriteString(", ")
			}
			qualifiedColumn{alias: "t", column: string(col)}.write(b, params)
			b.WriteString(" = ")
			qualifiedColumn{alias: "s", column: string(col)}.write(b, params)
		}
	}
	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	for i, col := range m.insertCols {
		if i > 0 {
			b.WriteString(", ")
		}
		col.write(b, params)
	}
	b.WriteString(") VALUES (")
	for i, col := range m.insertCols {
		if i > 0 {
			b.WriteString(", ")
		}
		qualifiedColumn{alias: "s", column: string(col)}.write(b, params)
	}
	b.WriteByte(')')
}

// deleteStmt: DELETE FROM t WHERE <PK sets OR-combined>.
type deleteStmt struct {
	table tableRef
	where orGroup
}

func (s deleteStmt) write(b *strings.Builder, params map[string]any) {
	b.WriteString("DELETE FROM ")
	s.table.write(b, params)
	b.WriteString(" WHERE ")
	s.where.write(b, params)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
