package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// DatabaseResolver looks up a named database's dialect and connection
// settings. config.Databases is the production implementation.
type DatabaseResolver interface {
	Resolve(name string) (dialectName string, cfg dialect.Config, err error)
}

// Importer loads mapped sources into destination tables.
type Importer struct {
	Connector   Connector
	Databases   DatabaseResolver
	Loader      DataLoader
	ErrorMaxLen int
}

// Run imports every mapping. Mappings are grouped by database so each
// database gets one connection, opened before its first mapping and closed
// after its last. Groups run in order of first appearance.
func (im *Importer) Run(ctx context.Context, mappings []ImportMapping) []ImportResult {
	var order []string
	groups := make(map[string][]ImportMapping)
	for _, m := range mappings {
		if _, ok := groups[m.Database]; !ok {
			order = append(order, m.Database)
		}
		groups[m.Database] = append(groups[m.Database], m)
	}

	results := make([]ImportResult, 0, len(mappings))
	for _, db := range order {
		if ctx.Err() != nil {
			break
		}
		results = append(results, im.runGroup(ctx, db, groups[db])...)
	}
	return results
}

func (im *Importer) runGroup(ctx context.Context, db string, mappings []ImportMapping) []ImportResult {
	failAll := func(err error) []ImportResult {
		slog.WarnContext(ctx, "import group failed", "database", db, "error", err)
		out := make([]ImportResult, len(mappings))
		for i, m := range mappings {
			out[i] = ImportResult{Mapping: m, FirstError: im.truncate(err.Error())}
		}
		return out
	}

	name, cfg, err := im.Databases.Resolve(db)
	if err != nil {
		return failAll(err)
	}
	conn, err := im.Connector.Create(name, cfg)
	if err != nil {
		return failAll(err)
	}
	if err := conn.Connect(ctx); err != nil {
		return failAll(err)
	}
	defer func() {
		if err := conn.Disconnect(context.WithoutCancel(ctx)); err != nil {
			slog.DebugContext(ctx, "disconnect failed", "database", db, "error", err)
		}
	}()

	out := make([]ImportResult, 0, len(mappings))
	for _, m := range mappings {
		res := im.importOne(ctx, conn, m)
		if !res.Success {
			slog.WarnContext(ctx, "import mapping failed",
				"database", m.Database,
				"table", m.Table,
				"attempted", res.Attempted,
				"inserted", res.Inserted,
				"error", res.FirstError,
			)
		} else {
			slog.InfoContext(ctx, "import mapping completed",
				"database", m.Database,
				"table", m.Table,
				"inserted", res.Inserted,
			)
		}
		out = append(out, res)
	}
	return out
}

// importOne loads one mapping over an open connection.
func (im *Importer) importOne(ctx context.Context, conn dialect.Conn, m ImportMapping) ImportResult {
	res := ImportResult{Mapping: m}
	d := conn.Dialect()

	t, err := im.Loader.Load(ctx, m.Source)
	if err != nil {
		res.FirstError = im.truncate(err.Error())
		return res
	}

	cols := SanitizeColumns(d, t.Header)
	if cols.Len() == 0 {
		res.FirstError = (&ImportError{Database: m.Database, Table: m.Table, Message: "source has no usable columns"}).Error()
		return res
	}

	cols, err = ExcludeGenerated(ctx, conn, m.Table, cols)
	if err != nil {
		res.FirstError = im.truncate(err.Error())
		return res
	}
	if cols.Len() == 0 {
		res.FirstError = (&ImportError{Database: m.Database, Table: m.Table, Message: ErrAllColumnsExcluded.Error()}).Error()
		return res
	}

	query := BuildInsertQuery(d, m.Table, cols.Quoted, cols.BindKeys)
	res.GeneratedSQL = dialect.Render(d, query, cols.BindKeys)

	for i, rec := range t.Records {
		if ctx.Err() != nil {
			break
		}
		params := make(map[string]any, cols.Len())
		for j, key := range cols.BindKeys {
			params[key] = CoerceValue(rec[cols.Sources[j]], cols.Identifiers[j])
		}

		res.Attempted++
		if _, err := conn.ExecuteQuery(ctx, query, params); err != nil {
			if res.FirstError == "" {
				res.FirstError = im.truncate((&ImportError{Database: m.Database, Table: m.Table, Row: i + 1, Message: "insert failed", Err: err}).Error())
			}
			continue
		}
		res.Inserted++
	}

	res.Success = res.FirstError == "" && res.Inserted == res.Attempted
	return res
}

// ErrAllColumnsExcluded is reported when identity and computed columns
// account for every source column.
var ErrAllColumnsExcluded = errors.New("all columns excluded (identity or computed)")

// ExcludeGenerated drops identity and computed columns of table from cols
// when conn can report them.
func ExcludeGenerated(ctx context.Context, conn dialect.Conn, table string, cols ColumnSet) (ColumnSet, error) {
	var generated []string
	if ic, ok := conn.(dialect.IdentityColumner); ok {
		ids, err := ic.IdentityColumns(ctx, table)
		if err != nil {
			return cols, fmt.Errorf("identity columns of %s: %w", table, err)
		}
		generated = append(generated, ids...)
	}
	if cc, ok := conn.(dialect.ComputedColumner); ok {
		comp, err := cc.ComputedColumns(ctx, table)
		if err != nil {
			return cols, fmt.Errorf("computed columns of %s: %w", table, err)
		}
		generated = append(generated, comp...)
	}
	if len(generated) > 0 {
		slog.DebugContext(ctx, "excluding generated columns", "table", table, "columns", generated)
	}
	return cols.Exclude(generated), nil
}

func (im *Importer) truncate(s string) string {
	n := im.ErrorMaxLen
	if n <= 0 {
		n = dialect.MaxErrorLen
	}
	return dialect.Truncate(s, n)
}

// Mapping input columns.
var (
	ColMapDatabase = Column{Name: "db_name", Aliases: []string{"database_name"}}
	ColMapTable    = Column{Name: "table_name"}
	ColMapSource   = Column{Name: "csv_filepath", Aliases: []string{"source_data_path"}}
)

// ParseMappings converts mapping input to ImportMappings. Rows missing any
// of the three values are skipped.
func ParseMappings(t *Table) ([]ImportMapping, error) {
	if _, err := ValidateHeaders(t.Header, []Column{ColMapDatabase, ColMapTable, ColMapSource}); err != nil {
		return nil, err
	}

	var out []ImportMapping
	for i, rec := range t.Records {
		m := ImportMapping{
			Database: recordValue(t.Header, rec, ColMapDatabase),
			Table:    recordValue(t.Header, rec, ColMapTable),
			Source:   recordValue(t.Header, rec, ColMapSource),
		}
		if m.Database == "" || m.Table == "" || m.Source == "" {
			slog.Warn("skipping incomplete mapping row", "row", i+1)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
