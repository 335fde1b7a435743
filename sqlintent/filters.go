package sqlintent

import (
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/types"
)

// compileFilter turns one FilterClause into a predicate node, allocating
// placeholder names from namer (so repeated calls across a WHERE/HAVING
// list never collide). An empty IN/NOT-IN/equality list degenerates to
// alwaysFalse rather than emitting `IN ()` (spec.md §4.2).
func compileFilter(f types.FilterClause, namer *nameAllocator) (predicate, error) {
	col := identifier(f.Column)

	switch f.Op {
	case types.OpIsNull:
		return nullCheck{column: col, not: false}, nil
	case types.OpIsNotNull:
		return nullCheck{column: col, not: true}, nil

	case types.OpIn, types.OpNotIn:
		values, ok := f.Value.([]any)
		if !ok {
			return nil, errs.Newf(errs.KindValidation, "filter %q requires a list value", f.Op)
		}
		if len(values) == 0 {
			return alwaysFalse{column: col}, nil
		}
		phs := make([]placeholder, len(values))
		for i, v := range values {
			phs[i] = placeholder{name: namer.next("w_" + f.Column), value: v}
		}
		return inList{column: col, not: f.Op == types.OpNotIn, phs: phs}, nil

	case types.OpBetween:
		pair, ok := f.Value.([]any)
		if !ok || len(pair) != 2 {
			return nil, errs.Newf(errs.KindValidation, "BETWEEN filter on %q requires exactly two values", f.Column)
		}
		lo := placeholder{name: namer.next("w_" + f.Column + "_lo"), value: pair[0]}
		hi := placeholder{name: namer.next("w_" + f.Column + "_hi"), value: pair[1]}
		return between{column: col, lo: lo, hi: hi}, nil

	case types.OpEq, types.OpNeq, types.OpNeqAlt, types.OpLt, types.OpLte, types.OpGt, types.OpGte, types.OpLike, types.OpNotLike:
		if f.Op == types.OpEq {
			if values, ok := f.Value.([]any); ok && len(values) == 0 {
				return alwaysFalse{column: col}, nil
			}
		}
		ph := placeholder{name: namer.next("w_" + f.Column), value: f.Value}
		return compare{column: col, op: f.Op, ph: ph}, nil

	default:
		return nil, errs.Newf(errs.KindValidation, "unsupported filter operator: %q", f.Op)
	}
}

func compileFilters(filters []types.FilterClause, namer *nameAllocator) (andGroup, error) {
	members := make([]predicate, 0, len(filters))
	for _, f := range filters {
		p, err := compileFilter(f, namer)
		if err != nil {
			return andGroup{}, err
		}
		members = append(members, p)
	}
	return andGroup{members: members}, nil
}

// rowAsAndGroup ANDs a row's columns together as equality predicates,
// allocating one uniquely-named placeholder per column. Used for PK WHERE
// clauses and the optimistic-concurrency old_values additions.
func rowAsAndGroup(row types.Row, prefix string, namer *nameAllocator) andGroup {
	members := make([]predicate, 0, len(row))
	for _, kv := range row {
		ph := placeholder{name: namer.next(prefix + "_" + kv.Column), value: kv.Value}
		members = append(members, compare{column: identifier(kv.Column), op: types.OpEq, ph: ph})
	}
	return andGroup{members: members}
}

// nameAllocator hands out unique placeholder names derived from a base,
// suffixing with an incrementing counter whenever a base repeats.
type nameAllocator struct {
	seen map[string]int
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{seen: make(map[string]int)}
}

func (n *nameAllocator) next(base string) string {
	sanitized := sanitizeName(base)
	count := n.seen[sanitized]
	n.seen[sanitized] = count + 1
	if count == 0 {
		return sanitized
	}
	return placeholderSeq(sanitized, count)
}

// sanitizeName maps a column/prefix name (already identifier-validated
// upstream) into a placeholder-safe token; only `.`  needs folding since
// table-qualified columns are not used in this position.
func sanitizeName(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isIdentByte(c) {
			out[i] = c
		} else {
			out[i] = '_'
		}
	}
	return string(out)
}
