// Package validate implements the VALIDATE phase's structural checks from
// spec.md §3/§4.1: identifier and three-level table-ref shape, the
// read-only SQL prefix guard for named queries, and the mutation-safety
// invariants (UPDATE/MERGE disjointness, batch/transaction bounds).
// Grounded on the teacher's validator tag conventions (struct validation
// via regex/required tags), reimplemented as plain functions since the
// pack's validator libraries (go-playground/validator et al.) were not
// retrieved as a teacher dependency.
package validate

import (
	"regexp"
	"strings"

	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/types"
)

// identifierPattern matches a single identifier; tableRefPattern below
// matches a three-level table reference (spec.md §3 invariant).
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var tableRefPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){2}$`)

// readOnlyPrefixes are the statement prefixes a named query is permitted to
// start with (after trimming leading whitespace; leading comments are not
// skipped), case-insensitive.
var readOnlyPrefixes = []string{"select", "with", "show", "describe", "explain"}

// injectionPattern rejects named-query SQL containing a statement
// separator or common comment-based injection markers.
var injectionPattern = regexp.MustCompile(`(?i)(;|--|/\*|\*/|\bxp_cmdshell\b)`)

// Identifier validates a single column/identifier name.
func Identifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return errs.Newf(errs.KindValidation, "invalid identifier: %q", name)
	}
	return nil
}

// TableRef validates a three-level catalog.schema.table reference.
func TableRef(ref string) error {
	if !tableRefPattern.MatchString(ref) {
		return errs.Newf(errs.KindValidation, "invalid table reference: %q", ref)
	}
	return nil
}

// Column validates a column identifier, permitting "*" as a wildcard.
func Column(name string) error {
	if name == "*" {
		return nil
	}
	return Identifier(name)
}

// ReadOnlyPrefix checks that sql begins (after trimming whitespace) with a
// read-only statement keyword, per the named-query safety guard (spec.md
// §4.8: "must pass ... the read-only-prefix check").
func ReadOnlyPrefix(sql string) error {
	trimmed := strings.ToLower(strings.TrimSpace(sql))
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return nil
		}
	}
	return errs.Newf(errs.KindSecurity, "named query does not start with a read-only statement: %q", truncate(sql, 80))
}

// NoInjectionMarkers rejects SQL containing a statement separator or
// comment-based injection marker.
func NoInjectionMarkers(sql string) error {
	if injectionPattern.MatchString(sql) {
		return errs.Newf(errs.KindSecurity, "named query contains disallowed SQL markers: %q", truncate(sql, 80))
	}
	return nil
}

// BatchSize enforces |payload| <= maxBatchSize (spec.md §8 invariant 2).
func BatchSize(n, maxBatchSize int) error {
	if n > maxBatchSize {
		return errs.Newf(errs.KindValidation, "batch size %d exceeds maximum %d", n, maxBatchSize)
	}
	return nil
}

// TransactionDepth enforces |operations| <= maxTransactionStatements.
func TransactionDepth(n, maxTransactionStatements int) error {
	if n > maxTransactionStatements {
		return errs.Newf(errs.KindValidation, "transaction has %d statements, exceeds maximum %d", n, maxTransactionStatements)
	}
	return nil
}

// UpdateDisjoint enforces spec.md §8 invariant 4: keys(updates) and
// keys(old_values) must each be disjoint from keys(pk_values).
func UpdateDisjoint(updates, oldValues, pkValues types.Row) error {
	for _, kv := range updates {
		if pkValues.Has(kv.Column) {
			return errs.Newf(errs.KindValidation, "update column %q collides with a primary key column", kv.Column)
		}
	}
	for _, kv := range oldValues {
		if pkValues.Has(kv.Column) {
			return errs.Newf(errs.KindValidation, "old_values column %q collides with a primary key column", kv.Column)
		}
	}
	return nil
}

// NonEmptyRow rejects an empty row where the caller requires at least one
// column (e.g. UpdateIntent.updates, DeleteIntent.pk_values).
func NonEmptyRow(row types.Row, what string) error {
	if len(row) == 0 {
		return errs.Newf(errs.KindValidation, "%s must not be empty", what)
	}
	return nil
}

// BatchWhereSymmetry enforces that a batch UPDATE/MERGE supplies no WHERE
// rows, one WHERE row shared by every payload row, or exactly one per
// payload row.
func BatchWhereSymmetry(payloadLen, whereLen int) error {
	if whereLen != 0 && whereLen != 1 && whereLen != payloadLen {
		return errs.Newf(errs.KindValidation, "where has %d records but payload has %d; must be 0, 1 (shared), or match", whereLen, payloadLen)
	}
	return nil
}

// TransactionMode rejects a nested TRANSACTION or a batch-mode sub-request
// inside a TRANSACTION (spec.md §3 invariant).
func TransactionMode(sub types.OperationRequest) error {
	if sub.Operation == types.OpTransaction {
		return errs.New(errs.KindValidation, "a transaction may not contain a nested transaction")
	}
	if sub.Mode != types.ModeSingle {
		return errs.Newf(errs.KindValidation, "transaction sub-operations must use SINGLE mode, got %q", sub.Mode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
