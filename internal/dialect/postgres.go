package dialect

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres is the PostgreSQL variant, built on a single pgx connection.
// @key tokens become $n numbered by first occurrence.
type Postgres struct {
	cfg  Config
	conn *pgx.Conn
}

// NewPostgres returns an unconnected PostgreSQL connection for cfg.
func NewPostgres(cfg Config) *Postgres {
	return &Postgres{cfg: cfg}
}

func (p *Postgres) Dialect() Name { return PostgresName }

func postgresURL(cfg Config) string {
	q := url.Values{}
	q.Set("sslmode", cfg.option("sslmode", "prefer"))
	q.Set("connect_timeout", strconv.Itoa(int(cfg.connectTimeout().Seconds())))
	q.Set("application_name", cfg.option("appName", "dbfleet"))

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strings.TrimSpace(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (p *Postgres) Connect(ctx context.Context) error {
	if p.conn != nil {
		return nil
	}

	pcfg, err := pgx.ParseConfig(postgresURL(p.cfg))
	if err != nil {
		return &ConfigError{Dialect: string(PostgresName), Message: err.Error()}
	}
	pcfg.ConnectTimeout = p.cfg.connectTimeout()

	connectCtx, cancel := context.WithTimeout(ctx, p.cfg.connectTimeout())
	defer cancel()

	conn, err := pgx.ConnectConfig(connectCtx, pcfg)
	if err != nil {
		return newConnectionError(PostgresName, err)
	}
	p.conn = conn
	return nil
}

func (p *Postgres) Disconnect(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close(ctx)
	p.conn = nil
	return err
}

func (p *Postgres) ExecuteQuery(ctx context.Context, text string, params map[string]any) (*Result, error) {
	if p.conn == nil {
		return nil, ErrNotConnected
	}

	query, args := Translate(PostgresName, text, params)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.requestTimeout())
	defer cancel()

	rows, err := p.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &Result{Columns: make([]string, len(fields))}
	for i, f := range fields {
		res.Columns[i] = f.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(vals))
		for i, v := range vals {
			row[res.Columns[i]] = pgValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		res.RowCount = rows.CommandTag().RowsAffected()
	} else {
		res.RowCount = int64(len(res.Rows))
	}
	return res, nil
}

// pgValue flattens pgx decoded values that do not print well.
func pgValue(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case driver.Valuer:
		if dv, err := x.Value(); err == nil {
			return dv
		}
	}
	return v
}

func (p *Postgres) CheckPermissions(ctx context.Context, spec *TestSpec) Report {
	return runProbe(ctx, p, PostgresName, spec)
}

const postgresColumnsSQL = `SELECT column_name::text
FROM information_schema.columns
WHERE table_schema = {schema}
  AND table_name = @tab_name
  AND ({filter})
ORDER BY ordinal_position`

// IdentityColumns lists identity and serial columns. Unqualified names
// resolve in current_schema().
func (p *Postgres) IdentityColumns(ctx context.Context, table string) ([]string, error) {
	return p.columnsWhere(ctx, table, "is_identity = 'YES' OR column_default LIKE 'nextval(%'")
}

// ComputedColumns lists GENERATED ALWAYS AS columns.
func (p *Postgres) ComputedColumns(ctx context.Context, table string) ([]string, error) {
	return p.columnsWhere(ctx, table, "is_generated = 'ALWAYS'")
}

func (p *Postgres) columnsWhere(ctx context.Context, table, filter string) ([]string, error) {
	query, params := postgresColumnsQuery(table, filter)
	res, err := p.ExecuteQuery(ctx, query, params)
	if missingCatalogColumn(err) {
		// is_generated is absent before PostgreSQL 12.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return firstColumn(res), nil
}

// postgresColumnsQuery folds names to lower case the way PostgreSQL stores
// unquoted identifiers.
func postgresColumnsQuery(table, filter string) (string, map[string]any) {
	schema, name := SplitTable(table)
	params := map[string]any{"tab_name": strings.ToLower(name)}

	schemaExpr := "current_schema()"
	if schema != "" {
		schemaExpr = "@tab_owner"
		params["tab_owner"] = strings.ToLower(schema)
	}

	query := strings.NewReplacer("{schema}", schemaExpr, "{filter}", filter).Replace(postgresColumnsSQL)
	return query, params
}

// missingCatalogColumn reports an undefined column or table in a catalog
// query, which older servers raise for views they do not carry.
func missingCatalogColumn(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42703" || pgErr.Code == "42P01"
}
