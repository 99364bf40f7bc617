package dialect

import (
	"context"
	"log/slog"
	"strings"
)

// querier is the slice of Conn the permission probe needs.
type querier interface {
	ExecuteQuery(ctx context.Context, text string, params map[string]any) (*Result, error)
}

// DefaultSelectProbe is the trivial catalog read used when no custom SELECT
// is supplied.
func DefaultSelectProbe(d Name) string {
	switch d {
	case MSSQLName:
		return "SELECT TOP 1 1 FROM INFORMATION_SCHEMA.TABLES"
	case OracleName:
		return "SELECT 1 FROM user_tables WHERE rownum = 1"
	default:
		return "SELECT 1 FROM information_schema.tables LIMIT 1"
	}
}

// TestStatement is the liveness query used by connection tests.
func TestStatement(d Name) string {
	if d == OracleName {
		return "SELECT 1 FROM dual"
	}
	return "SELECT 1"
}

// runProbe performs the SELECT, INSERT and DELETE attempts.
func runProbe(ctx context.Context, q querier, d Name, spec *TestSpec) Report {
	var rep Report

	selectSQL := DefaultSelectProbe(d)
	if spec != nil && strings.TrimSpace(spec.SelectSQL) != "" {
		selectSQL = spec.SelectSQL
	}
	if _, err := q.ExecuteQuery(ctx, selectSQL, nil); err != nil {
		rep.SelectError = probeFailure(ctx, d, "select", selectSQL, err)
	} else {
		rep.Select = true
	}

	if !spec.writable() {
		return rep
	}

	rep.InsertQuery = buildProbeInsert(spec)
	if _, err := q.ExecuteQuery(ctx, rep.InsertQuery, nil); err != nil {
		rep.InsertError = probeFailure(ctx, d, "insert", rep.InsertQuery, err)
	} else {
		rep.Insert = true
	}

	// The INSERT was issued, so the DELETE runs whatever its outcome.
	rep.DeleteQuery = buildProbeDelete(spec)
	if _, err := q.ExecuteQuery(ctx, rep.DeleteQuery, nil); err != nil {
		rep.DeleteError = probeFailure(ctx, d, "delete", rep.DeleteQuery, err)
	} else {
		rep.Delete = true
	}

	return rep
}

func probeFailure(ctx context.Context, d Name, op, sql string, err error) string {
	perr := &ProbeError{Op: op, SQL: sql, Err: err}
	slog.DebugContext(ctx, "permission probe failed", "dialect", d, "op", op, "error", err)
	return errText(perr)
}

// buildProbeInsert renders the probe INSERT with literal values. Values are
// inlined on purpose: the probe measures raw grant behaviour.
func buildProbeInsert(spec *TestSpec) string {
	vals := make([]string, len(spec.Values))
	for i, v := range spec.Values {
		vals[i] = probeLiteral(v)
	}
	return "INSERT INTO " + spec.Table +
		" (" + strings.Join(spec.Columns, ", ") + ")" +
		" VALUES (" + strings.Join(vals, ", ") + ")"
}

// buildProbeDelete matches on every supplied column so only the probe row
// is removed.
func buildProbeDelete(spec *TestSpec) string {
	conds := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		if isNullLiteral(spec.Values[i]) {
			conds[i] = c + " IS NULL"
			continue
		}
		conds[i] = c + " = " + quoteLiteral(spec.Values[i])
	}
	return "DELETE FROM " + spec.Table + " WHERE " + strings.Join(conds, " AND ")
}

func probeLiteral(v string) string {
	if isNullLiteral(v) {
		return "NULL"
	}
	return quoteLiteral(v)
}

func isNullLiteral(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "null")
}
