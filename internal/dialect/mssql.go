package dialect

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
)

// MSSQL is the SQL Server family variant. Parameters stay as @key and are
// bound by name.
type MSSQL struct {
	sqlBase
}

// NewMSSQL returns an unconnected SQL Server connection for cfg.
func NewMSSQL(cfg Config) *MSSQL {
	return &MSSQL{sqlBase{
		name:   MSSQLName,
		driver: "sqlserver",
		cfg:    cfg,
		dsn:    mssqlDSN,
	}}
}

func mssqlDSN(cfg Config) (string, error) {
	q := url.Values{}
	q.Set("database", cfg.Database)
	q.Set("connection timeout", strconv.Itoa(int(cfg.connectTimeout().Seconds())))
	q.Set("dial timeout", strconv.Itoa(int(cfg.connectTimeout().Seconds())))
	q.Set("encrypt", cfg.option("encrypt", "false"))
	q.Set("TrustServerCertificate", cfg.option("trustServerCertificate", "true"))
	q.Set("app name", cfg.option("appName", "dbfleet"))

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strings.TrimSpace(cfg.Port)),
		RawQuery: q.Encode(),
	}
	if inst := cfg.option("instanceName", ""); inst != "" {
		u.Path = inst
	}
	return u.String(), nil
}

const mssqlColumnFlagSQL = `SELECT c.name
FROM sys.columns AS c
JOIN sys.objects AS o ON c.object_id = o.object_id
JOIN sys.schemas AS s ON o.schema_id = s.schema_id
WHERE o.type = 'U'
  AND o.name = @tab_name
  AND s.name = {schema}
  AND c.{flag} = 1
ORDER BY c.column_id`

// IdentityColumns lists IDENTITY columns. Unqualified names resolve in the
// session's default schema.
func (m *MSSQL) IdentityColumns(ctx context.Context, table string) ([]string, error) {
	return m.flaggedColumns(ctx, table, "is_identity")
}

// ComputedColumns lists computed columns.
func (m *MSSQL) ComputedColumns(ctx context.Context, table string) ([]string, error) {
	return m.flaggedColumns(ctx, table, "is_computed")
}

func (m *MSSQL) flaggedColumns(ctx context.Context, table, flag string) ([]string, error) {
	query, params := mssqlColumnFlagQuery(table, flag)
	return m.stringColumn(ctx, query, params)
}

func mssqlColumnFlagQuery(table, flag string) (string, map[string]any) {
	schema, name := SplitTable(table)
	params := map[string]any{"tab_name": name}

	schemaExpr := "SCHEMA_NAME()"
	if schema != "" {
		schemaExpr = "@tab_owner"
		params["tab_owner"] = schema
	}

	query := strings.NewReplacer("{schema}", schemaExpr, "{flag}", flag).Replace(mssqlColumnFlagSQL)
	return query, params
}
