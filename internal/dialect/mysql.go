package dialect

import (
	"context"
	"net"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
)

// MySQL covers MySQL and MariaDB. Every @key occurrence becomes a positional
// '?' with its own argument.
type MySQL struct {
	sqlBase
}

// NewMySQL returns an unconnected MySQL connection for cfg.
func NewMySQL(cfg Config) *MySQL {
	return &MySQL{sqlBase{
		name:   MySQLName,
		driver: "mysql",
		cfg:    cfg,
		dsn:    mysqlDSN,
	}}
}

func mysqlDSN(cfg Config) (string, error) {
	mc := mysqldrv.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strings.TrimSpace(cfg.Port))
	mc.DBName = cfg.Database
	mc.Timeout = cfg.connectTimeout()
	mc.ReadTimeout = cfg.requestTimeout()
	mc.WriteTimeout = cfg.requestTimeout()
	mc.ParseTime = true
	if tls := cfg.option("tls", ""); tls != "" {
		mc.TLSConfig = tls
	}
	return mc.FormatDSN(), nil
}

const mysqlColumnsSQL = `SELECT COLUMN_NAME
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = {schema}
  AND TABLE_NAME = @tab_name
  AND ({filter})
ORDER BY ORDINAL_POSITION`

// IdentityColumns lists AUTO_INCREMENT columns. Unqualified names resolve in
// the current database.
func (m *MySQL) IdentityColumns(ctx context.Context, table string) ([]string, error) {
	return m.columnsWhere(ctx, table, "EXTRA LIKE '%auto_increment%'")
}

// ComputedColumns lists generated columns. DEFAULT_GENERATED, which MySQL 8
// reports for plain defaults, is not a generated column.
func (m *MySQL) ComputedColumns(ctx context.Context, table string) ([]string, error) {
	return m.columnsWhere(ctx, table,
		"EXTRA LIKE '%VIRTUAL%' OR EXTRA LIKE '%STORED%' OR EXTRA LIKE '%PERSISTENT%'")
}

func (m *MySQL) columnsWhere(ctx context.Context, table, filter string) ([]string, error) {
	schema, name := SplitTable(table)
	params := map[string]any{"tab_name": name}

	schemaExpr := "DATABASE()"
	if schema != "" {
		schemaExpr = "@tab_owner"
		params["tab_owner"] = schema
	}

	query := strings.NewReplacer("{schema}", schemaExpr, "{filter}", filter).Replace(mysqlColumnsSQL)
	return m.stringColumn(ctx, query, params)
}
