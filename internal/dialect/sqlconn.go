package dialect

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrNotConnected is returned by operations on a connection that has not
// been opened or has already been closed.
var ErrNotConnected = errors.New("not connected")

// sqlBase implements Conn on top of database/sql. The SQL Server, MySQL and
// Oracle variants embed it and add their catalog lookups.
type sqlBase struct {
	name   Name
	driver string
	cfg    Config
	dsn    func(Config) (string, error)

	// open defaults to sql.Open; tests swap in a mock database.
	open func(driver, dsn string) (*sql.DB, error)

	db *sql.DB
}

func (b *sqlBase) Dialect() Name { return b.name }

func (b *sqlBase) Connect(ctx context.Context) error {
	if b.db != nil {
		return nil
	}

	dsn, err := b.dsn(b.cfg)
	if err != nil {
		return &ConfigError{Dialect: string(b.name), Message: err.Error()}
	}

	open := b.open
	if open == nil {
		open = sql.Open
	}
	db, err := open(b.driver, dsn)
	if err != nil {
		return newConnectionError(b.name, err)
	}

	// One session per endpoint; no pooling across units of work.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, b.cfg.connectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return newConnectionError(b.name, err)
	}

	b.db = db
	return nil
}

func (b *sqlBase) Disconnect(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *sqlBase) ExecuteQuery(ctx context.Context, text string, params map[string]any) (*Result, error) {
	if b.db == nil {
		return nil, ErrNotConnected
	}

	query, args := Translate(b.name, text, params)

	ctx, cancel := context.WithTimeout(ctx, b.cfg.requestTimeout())
	defer cancel()

	if !returnsRows(b.name, query) {
		res, err := b.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		return &Result{RowCount: n}, nil
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// A batch may open with statements that produce no columns; the first
	// set that has columns is the result.
	for {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			return scanRows(rows, cols)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (b *sqlBase) CheckPermissions(ctx context.Context, spec *TestSpec) Report {
	return runProbe(ctx, b, b.name, spec)
}

// stringColumn runs a catalog query and returns its first column.
func (b *sqlBase) stringColumn(ctx context.Context, query string, params map[string]any) ([]string, error) {
	res, err := b.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return firstColumn(res), nil
}

func scanRows(rows *sql.Rows, cols []string) (*Result, error) {
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if raw, ok := vals[i].([]byte); ok {
				row[c] = string(raw)
				continue
			}
			row[c] = vals[i]
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res.RowCount = int64(len(res.Rows))
	return res, nil
}

func firstColumn(res *Result) []string {
	if res == nil || len(res.Columns) == 0 {
		return nil
	}
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if v, ok := row[res.Columns[0]].(string); ok {
			out = append(out, v)
		}
	}
	return out
}

// rowKeywords start statements that produce a result set.
var rowKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "SHOW": true, "DESCRIBE": true, "DESC": true,
	"EXPLAIN": true, "VALUES": true, "EXEC": true, "EXECUTE": true, "CALL": true,
	"TABLE": true,
}

// dmlKeywords start data changes that only return rows through a result
// clause (OUTPUT on SQL Server, RETURNING on MariaDB and PostgreSQL).
var dmlKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "REPLACE": true,
}

// procKeywords start procedural statements that a batch uses to set up a
// later query, as in SET NOCOUNT ON; SELECT ...
var procKeywords = map[string]bool{
	"SET": true, "DECLARE": true, "IF": true, "BEGIN": true, "USE": true, "WHILE": true,
}

// returnsRows reports whether any statement of a batch yields a result set.
// Words inside literals, quoted identifiers and comments are ignored.
func returnsRows(d Name, query string) bool {
	for _, stmt := range statementWords(d, query) {
		if len(stmt) == 0 {
			continue
		}
		lead := stmt[0]
		switch {
		case rowKeywords[lead]:
			return true
		case dmlKeywords[lead]:
			for _, w := range stmt[1:] {
				if (w == "OUTPUT" && d == MSSQLName) || (w == "RETURNING" && (d == MySQLName || d == PostgresName)) {
					return true
				}
			}
		case procKeywords[lead] && d == MSSQLName:
			// T-SQL batches need no semicolons, so a SELECT or EXEC
			// anywhere after a SET or DECLARE may be a new statement.
			for _, w := range stmt[1:] {
				if w == "SELECT" || w == "EXEC" || w == "EXECUTE" {
					return true
				}
			}
		}
	}
	return false
}

// statementWords splits query on top-level semicolons and returns the
// upper-cased bare words of each statement.
func statementWords(d Name, query string) [][]string {
	var (
		out  [][]string
		stmt []string
	)
	n := len(query)
	for i := 0; i < n; {
		if end, ok := skipSpan(d, query, i); ok {
			i = end
			continue
		}
		c := query[i]
		switch {
		case c == ';':
			out = append(out, stmt)
			stmt = nil
			i++
		case isIdentStart(c) && (i == 0 || !isWordChar(query[i-1])):
			j := i + 1
			for j < n && isIdentChar(query[j]) {
				j++
			}
			stmt = append(stmt, strings.ToUpper(query[i:j]))
			i = j
		default:
			i++
		}
	}
	return append(out, stmt)
}

// isWordChar also counts sigils, so @select and :returning are not words.
func isWordChar(c byte) bool {
	return isIdentChar(c) || c == '@' || c == ':' || c == '$' || c == '#' || c == '.'
}
