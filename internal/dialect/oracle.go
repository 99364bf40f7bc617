package dialect

import (
	"context"
	"strconv"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"
)

// Oracle is the Oracle Database variant. @key becomes :key and values are
// bound by name. Config.Database is the service name.
type Oracle struct {
	sqlBase
}

// NewOracle returns an unconnected Oracle connection for cfg.
func NewOracle(cfg Config) *Oracle {
	return &Oracle{sqlBase{
		name:   OracleName,
		driver: "oracle",
		cfg:    cfg,
		dsn:    oracleDSN,
	}}
}

func oracleDSN(cfg Config) (string, error) {
	port, err := ParsePort(cfg.Port)
	if err != nil {
		return "", err
	}
	opts := map[string]string{
		"TIMEOUT": strconv.Itoa(int(cfg.connectTimeout().Seconds())),
	}
	if sid := cfg.option("sid", ""); sid != "" {
		opts["SID"] = sid
	}
	return go_ora.BuildUrl(cfg.Host, port, cfg.Database, cfg.User, cfg.Password, opts), nil
}

// Oracle stores unquoted names in upper case, hence UPPER() on the binds.
const (
	oracleIdentityUserSQL = `SELECT column_name FROM user_tab_identity_cols
WHERE table_name = UPPER(@tab_name) ORDER BY column_name`
	oracleIdentityAllSQL = `SELECT column_name FROM all_tab_identity_cols
WHERE owner = UPPER(@tab_owner) AND table_name = UPPER(@tab_name) ORDER BY column_name`
	oracleVirtualUserSQL = `SELECT column_name FROM user_tab_cols
WHERE table_name = UPPER(@tab_name) AND virtual_column = 'YES' AND hidden_column = 'NO'
ORDER BY column_id`
	oracleVirtualAllSQL = `SELECT column_name FROM all_tab_cols
WHERE owner = UPPER(@tab_owner) AND table_name = UPPER(@tab_name)
  AND virtual_column = 'YES' AND hidden_column = 'NO'
ORDER BY column_id`
)

// IdentityColumns lists identity columns (12c and later).
func (o *Oracle) IdentityColumns(ctx context.Context, table string) ([]string, error) {
	return o.catalogColumns(ctx, table, oracleIdentityUserSQL, oracleIdentityAllSQL)
}

// ComputedColumns lists virtual columns.
func (o *Oracle) ComputedColumns(ctx context.Context, table string) ([]string, error) {
	return o.catalogColumns(ctx, table, oracleVirtualUserSQL, oracleVirtualAllSQL)
}

func (o *Oracle) catalogColumns(ctx context.Context, table, userSQL, allSQL string) ([]string, error) {
	query, params := oracleCatalogQuery(table, userSQL, allSQL)
	cols, err := o.stringColumn(ctx, query, params)
	if err != nil && ErrorCode(err) == oracleNoSuchView {
		// Identity views arrived in 12c; older engines have none to list.
		return nil, nil
	}
	return cols, err
}

// oracleNoSuchView is "table or view does not exist".
const oracleNoSuchView = "ORA-00942"

// oracleCatalogQuery picks the user_ view for unqualified names and the
// all_ view with an owner bind for schema.table.
func oracleCatalogQuery(table, userSQL, allSQL string) (string, map[string]any) {
	schema, name := SplitTable(table)
	if strings.TrimSpace(schema) == "" {
		return userSQL, map[string]any{"tab_name": name}
	}
	return allSQL, map[string]any{"tab_name": name, "tab_owner": schema}
}
