package sqlintent

import (
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/types"
)

// UpdateStrategy selects which of the two UPDATE-family renderings spec.md
// §4.2 describes: a plain UPDATE, or a MERGE (upsert).
type UpdateStrategy string

const (
	StrategyUpdate UpdateStrategy = "UPDATE"
	StrategyMerge  UpdateStrategy = "MERGE"
)

// SelectIntent is the validated record behind a SELECT render (spec.md §3).
// PKSets holds the request's Where rows (BuildSelect copies them for every
// read, single or batch): each row's columns are AND-combined and the rows
// OR-combined (spec.md §4.9). Where holds FilterClauses (AND-combined) and
// is rendered only when PKSets is empty.
type SelectIntent struct {
	Table        string
	Wildcard     bool
	Columns      []string
	Where        []types.FilterClause
	PKSets       []types.Row
	GroupBy      []string
	Having       []types.FilterClause
	OrderBy      []types.OrderByClause
	Aggregations []types.AggregateColumn
	Limit        int
	LimitCapped  bool
	Offset       *int
}

// BuildSelect builds a SelectIntent from a request, silently capping Limit
// at maxReadLimit (spec.md §9 Open Question resolution: see DESIGN.md) and
// defaulting it to defaultReadLimit when unset. offset > 0 requires a
// limit to already be present per the caller (spec.md §3 invariant); since
// Limit is always defaulted here, that invariant is satisfied by
// construction.
func BuildSelect(req types.OperationRequest, defaultReadLimit, maxReadLimit int) (*SelectIntent, error) {
	if req.Options.Having != nil && len(req.Options.GroupBy) == 0 {
		return nil, errs.New(errs.KindValidation, "HAVING is only permitted together with GROUP BY")
	}

	requested := defaultReadLimit
	if req.Options.Limit != nil {
		requested = *req.Options.Limit
	}
	if requested <= 0 {
		return nil, errs.New(errs.KindValidation, "limit must be > 0")
	}
	if req.Options.Offset != nil && *req.Options.Offset < 0 {
		return nil, errs.New(errs.KindValidation, "offset must be >= 0")
	}

	capped := requested > maxReadLimit
	effective := requested
	if capped {
		effective = maxReadLimit
	}

	return &SelectIntent{
		Table:        req.Table,
		Wildcard:     req.WildcardColumns(),
		Columns:      req.Columns,
		PKSets:       req.Where,
		GroupBy:      req.Options.GroupBy,
		Having:       req.Options.Having,
		OrderBy:      req.Options.OrderBy,
		Aggregations: req.Options.Aggregations,
		Limit:        effective,
		LimitCapped:  capped,
		Offset:       req.Options.Offset,
	}, nil
}

// Render compiles the intent into Spark-flavoured SQL with %(name)s
// placeholders, plus the bound parameter mapping.
func (si *SelectIntent) Render() (string, map[string]any, error) {
	catalog, schema, table := splitTableRef(si.Table)
	namer := newNameAllocator()

	var where andGroup
	var err error
	switch {
	case len(si.PKSets) > 0:
		groups := make([]predicate, 0, len(si.PKSets))
		for _, set := range si.PKSets {
			groups = append(groups, rowAsAndGroup(set, "pk", namer))
		}
		where = andGroup{members: []predicate{orGroup{members: groups}}}
	default:
		where, err = compileFilters(si.Where, namer)
		if err != nil {
			return "", nil, err
		}
	}
	having, err := compileFilters(si.Having, namer)
	if err != nil {
		return "", nil, err
	}

	stmt := selectStmt{
		table:    tableRef{catalog, schema, table},
		wildcard: si.Wildcard,
		where:    where,
		having:   having,
		limit:    si.Limit,
		offset:   si.Offset,
	}
	if !si.Wildcard {
		stmt.columns = toIdentifiers(si.Columns)
	}
	for _, agg := range si.Aggregations {
		stmt.aggregations = append(stmt.aggregations, aggregateExpr{fn: agg.Function, column: identifier(agg.Column), alias: agg.Alias})
	}
	for _, c := range si.GroupBy {
		stmt.groupBy = append(stmt.groupBy, identifier(c))
	}
	for _, o := range si.OrderBy {
		stmt.orderBy = append(stmt.orderBy, orderTerm{column: identifier(o.Column), direction: o.Direction})
	}

	sql, params := render(stmt)
	return normalizePlaceholders(sql), params, nil
}

// InsertIntent is the validated record behind an INSERT render.
type InsertIntent struct {
	Table string
	Rows  []types.Row // single: len 1; batch: len N, must share the same column set
}

// BuildInsert builds an InsertIntent from a SINGLE or BATCH payload.
func BuildInsert(req types.OperationRequest) (*InsertIntent, error) {
	if len(req.Payload) == 0 {
		return nil, errs.New(errs.KindValidation, "insert payload must not be empty")
	}
	return &InsertIntent{Table: req.Table, Rows: req.Payload}, nil
}

// Render compiles a single-row INSERT template from Rows[0]'s column shape,
// with Rows[0]'s values as params. Batch callers (spec.md §4.9 WriteBatch)
// render once and bind each row's params separately via RowParams.
func (ii *InsertIntent) Render() (string, map[string]any, error) {
	if len(ii.Rows) == 0 {
		return "", nil, errs.New(errs.KindValidation, "insert has no rows")
	}
	catalog, schema, table := splitTableRef(ii.Table)
	cols := ii.Rows[0].Columns()

	values := make([]placeholder, len(cols))
	params := make(map[string]any, len(cols))
	for i, kv := range ii.Rows[0] {
		values[i] = placeholder{name: sanitizeName(kv.Column), value: kv.Value}
	}

	stmt := insertStmt{
		table:   tableRef{catalog, schema, table},
		columns: toIdentifiers(cols),
		values:  values,
	}
	sql, _ := render(stmt)
	for _, v := range values {
		params[v.name] = v.value
	}
	return normalizePlaceholders(sql), params, nil
}

// RowParams returns the placeholder->value binding for one batch row,
// matching the column order the template's Render used.
func (ii *InsertIntent) RowParams(row types.Row) map[string]any {
	params := make(map[string]any, len(row))
	for _, kv := range row {
		params[sanitizeName(kv.Column)] = kv.Value
	}
	return params
}

// UpdateIntent is the validated record behind an UPDATE or MERGE render.
type UpdateIntent struct {
	Table     string
	Strategy  UpdateStrategy
	Updates   types.Row
	PKValues  types.Row
	OldValues types.Row
}

// BuildUpdate builds an UpdateIntent, enforcing spec.md §3's disjointness
// invariant between Updates/OldValues and PKValues.
func BuildUpdate(table string, strategy UpdateStrategy, updates, pkValues, oldValues types.Row) (*UpdateIntent, error) {
	if len(updates) == 0 {
		return nil, errs.New(errs.KindValidation, "update must set at least one column")
	}
	if updates.Intersects(pkValues) {
		return nil, errs.New(errs.KindValidation, "updates must not overlap primary key columns")
	}
	if oldValues.Intersects(pkValues) {
		return nil, errs.New(errs.KindValidation, "old_values must not overlap primary key columns")
	}
	return &UpdateIntent{Table: table, Strategy: strategy, Updates: updates, PKValues: pkValues, OldValues: oldValues}, nil
}

// Render compiles the intent per its Strategy.
func (ui *UpdateIntent) Render() (string, map[string]any, error) {
	if ui.Strategy == StrategyMerge {
		return ui.renderMerge()
	}
	return ui.renderUpdate()
}

func (ui *UpdateIntent) renderUpdate() (string, map[string]any, error) {
	catalog, schema, table := splitTableRef(ui.Table)
	namer := newNameAllocator()

	sets := make([]setClause, 0, len(ui.Updates))
	for _, kv := range ui.Updates {
		ph := placeholder{name: namer.next("s_" + kv.Column), value: kv.Value}
		sets = append(sets, setClause{column: identifier(kv.Column), ph: ph})
	}

	where := rowAsAndGroup(ui.PKValues, "pk", namer)
	if len(ui.OldValues) > 0 {
		oldGroup := rowAsAndGroup(ui.OldValues, "old", namer)
		where.members = append(where.members, oldGroup.members...)
	}

	stmt := updateStmt{table: tableRef{catalog, schema, table}, sets: sets, where: where}
	sql, params := render(stmt)
	return normalizePlaceholders(sql), params, nil
}

func (ui *UpdateIntent) renderMerge() (string, map[string]any, error) {
	catalog, schema, table := splitTableRef(ui.Table)

	// USING projects PK + update columns, in declared order: PK columns
	// first (so the ON clause can reference s.<pk>), then update columns.
	var usingCols []identifier
	var usingVals []placeholder
	seen := make(map[string]bool)
	add := func(kv types.KV) {
		if seen[kv.Column] {
			return
		}
		seen[kv.Column] = true
		usingCols = append(usingCols, identifier(kv.Column))
		usingVals = append(usingVals, placeholder{name: "m_" + sanitizeName(kv.Column), value: kv.Value})
	}
	for _, kv := range ui.PKValues {
		add(kv)
	}
	for _, kv := range ui.Updates {
		add(kv)
	}

	onTerms := make([]mergeOn, 0, len(ui.PKValues))
	for _, kv := range ui.PKValues {
		onTerms = append(onTerms, mergeOn{
			left:  qualifiedColumn{alias: "t", column: kv.Column},
			right: qualifiedColumn{alias: "s", column: kv.Column},
		})
	}

	updateCols := make([]identifier, 0, len(ui.Updates))
	for _, kv := range ui.Updates {
		updateCols = append(updateCols, identifier(kv.Column))
	}

	stmt := mergeStmt{
		table:        tableRef{catalog, schema, table},
		usingColumns: usingCols,
		usingValues:  usingVals,
		onTerms:      onTerms,
		updateCols:   updateCols,
		insertCols:   usingCols,
	}
	sql, params := render(stmt)
	return normalizePlaceholders(sql), params, nil
}

// DeleteIntent is the validated record behind a DELETE render.
type DeleteIntent struct {
	Table        string
	PKValueSets  []types.Row // OR-combined; each set's columns are AND-combined
}

// BuildDelete builds a DeleteIntent, normalising pkValueSets to a
// non-empty sequence (spec.md §3: "DeleteIntent.pk_values is normalised to
// a non-empty sequence").
func BuildDelete(table string, pkValueSets []types.Row) (*DeleteIntent, error) {
	if len(pkValueSets) == 0 {
		return nil, errs.New(errs.KindValidation, "delete requires at least one primary-key value set")
	}
	return &DeleteIntent{Table: table, PKValueSets: pkValueSets}, nil
}

// Render compiles the intent.
func (di *DeleteIntent) Render() (string, map[string]any, error) {
	catalog, schema, table := splitTableRef(di.Table)
	namer := newNameAllocator()

	groups := make([]predicate, 0, len(di.PKValueSets))
	for _, set := range di.PKValueSets {
		groups = append(groups, rowAsAndGroup(set, "pk", namer))
	}

	stmt := deleteStmt{table: tableRef{catalog, schema, table}, where: orGroup{members: groups}}
	sql, params := render(stmt)
	return normalizePlaceholders(sql), params, nil
}

func toIdentifiers(cols []string) []identifier {
	ids := make([]identifier, len(cols))
	for i, c := range cols {
		ids[i] = identifier(c)
	}
	return ids
}

func splitTableRef(ref string) (catalog, schema, table string) {
	parts := splitN3(ref)
	return parts[0], parts[1], parts[2]
}

func splitN3(ref string) [3]string {
	var out [3]string
	start, part := 0, 0
	for i := 0; i <= len(ref) && part < 2; i++ {
		if i == len(ref) || ref[i] == '.' {
			out[part] = ref[start:i]
			start = i + 1
			part++
		}
	}
	out[2] = ref[start:]
	return out
}
