package dialect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
)

func validConfig() Config {
	return Config{Host: "10.0.0.5", Port: "1433", Database: "app", User: "sa", Password: "pw"}
}

// ----------------------------------------------------------------------------
// Normalize / Create
// ----------------------------------------------------------------------------

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"mssql", MSSQLName, false},
		{"SQLServer", MSSQLName, false},
		{"mysql", MySQLName, false},
		{"MariaDB", MySQLName, false},
		{"postgres", PostgresName, false},
		{"PostgreSQL", PostgresName, false},
		{" oracle ", OracleName, false},
		{"db2", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if err != nil {
				var ce *ConfigError
				if !errors.As(err, &ce) {
					t.Errorf("error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestCreate_ReturnsVariant(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{"sqlserver", "*dialect.MSSQL"},
		{"mariadb", "*dialect.MySQL"},
		{"postgres", "*dialect.Postgres"},
		{"oracle", "*dialect.Oracle"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			conn, err := Create(tt.dialect, validConfig())
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if got := fmt.Sprintf("%T", conn); got != tt.want {
				t.Errorf("Create(%q) type = %s, want %s", tt.dialect, got, tt.want)
			}
		})
	}
}

func TestCreate_CapabilitiesDetectable(t *testing.T) {
	for _, d := range Names() {
		conn, err := Create(string(d), validConfig())
		if err != nil {
			t.Fatalf("Create(%s) error = %v", d, err)
		}
		if _, ok := conn.(IdentityColumner); !ok {
			t.Errorf("%s does not implement IdentityColumner", d)
		}
		if _, ok := conn.(ComputedColumner); !ok {
			t.Errorf("%s does not implement ComputedColumner", d)
		}
		if conn.Dialect() != d {
			t.Errorf("Dialect() = %s, want %s", conn.Dialect(), d)
		}
	}
}

// ----------------------------------------------------------------------------
// Validate
// ----------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantMissing []string
		wantErrText string
	}{
		{"valid", func(*Config) {}, nil, ""},
		{"missing host and password", func(c *Config) { c.Host = ""; c.Password = "" }, []string{"host", "password"}, "missing required fields"},
		{"missing everything", func(c *Config) { *c = Config{} }, []string{"host", "port", "database", "user", "password"}, "missing"},
		{"non numeric port", func(c *Config) { c.Port = "abc" }, nil, "invalid port"},
		{"port zero", func(c *Config) { c.Port = "0" }, nil, "out of range"},
		{"port too high", func(c *Config) { c.Port = "65536" }, nil, "out of range"},
		{"port upper bound", func(c *Config) { c.Port = "65535" }, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate("mssql", cfg)
			if tt.wantErrText == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error = %v, want *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErrText) {
				t.Errorf("error %q does not contain %q", err, tt.wantErrText)
			}
			if tt.wantMissing != nil && strings.Join(ce.Missing, ",") != strings.Join(tt.wantMissing, ",") {
				t.Errorf("Missing = %v, want %v", ce.Missing, tt.wantMissing)
			}
		})
	}
}

func TestValidate_UnsupportedDialect(t *testing.T) {
	err := Validate("sybase", validConfig())
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Validate() error = %v, want *ConfigError", err)
	}
}

// ----------------------------------------------------------------------------
// Quoting
// ----------------------------------------------------------------------------

func TestQuoteTable(t *testing.T) {
	tests := []struct {
		dialect Name
		table   string
		want    string
	}{
		{MSSQLName, "dbo.Orders", "[dbo].[Orders]"},
		{MSSQLName, "[dbo].[Or]]ders]", "[dbo].[Orders]"},
		{MySQLName, "shop.orders", "`shop`.`orders`"},
		{PostgresName, "Public.Orders", `"public"."orders"`},
		{OracleName, "hr.employees", `"HR"."EMPLOYEES"`},
		{MSSQLName, "weird]name", "[weirdname]"},
	}
	for _, tt := range tests {
		if got := QuoteTable(tt.dialect, tt.table); got != tt.want {
			t.Errorf("QuoteTable(%s, %q) = %q, want %q", tt.dialect, tt.table, got, tt.want)
		}
	}
}

func TestQuoteIdent_EscapesQuoteChar(t *testing.T) {
	if got := QuoteIdent(MSSQLName, "a]b"); got != "[a]]b]" {
		t.Errorf("mssql = %q", got)
	}
	if got := QuoteIdent(MySQLName, "a`b"); got != "`a``b`" {
		t.Errorf("mysql = %q", got)
	}
	if got := QuoteIdent(PostgresName, `a"b`); got != `"a""b"` {
		t.Errorf("postgres = %q", got)
	}
}

func TestSplitTable(t *testing.T) {
	tests := []struct {
		in, schema, name string
	}{
		{"orders", "", "orders"},
		{"dbo.orders", "dbo", "orders"},
		{"[sales].[orders]", "sales", "orders"},
		{" db.sch.tbl ", "db.sch", "tbl"},
	}
	for _, tt := range tests {
		s, n := SplitTable(tt.in)
		if s != tt.schema || n != tt.name {
			t.Errorf("SplitTable(%q) = (%q, %q), want (%q, %q)", tt.in, s, n, tt.schema, tt.name)
		}
	}
}

// ----------------------------------------------------------------------------
// Error classification
// ----------------------------------------------------------------------------

func TestNetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "ECONNREFUSED"},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), "ETIMEDOUT"},
		{"dns", &net.DNSError{Err: "no such host", Name: "db.invalid"}, "ENOTFOUND"},
		{"plain", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NetErrorCode(tt.err); got != tt.want {
				t.Errorf("NetErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorCode_FallbackIsNonEmpty(t *testing.T) {
	if got := ErrorCode(errors.New("something odd")); got == "" {
		t.Error("ErrorCode() returned empty code for non-nil error")
	}
	if got := ErrorCode(nil); got != "" {
		t.Errorf("ErrorCode(nil) = %q, want empty", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	if got := Truncate("hello", 3); got != "hel" {
		t.Errorf("Truncate = %q, want hel", got)
	}
	// "é" is two bytes; cutting at 1 must not split it.
	if got := Truncate("é", 1); got != "" {
		t.Errorf("Truncate split a rune: %q", got)
	}
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		dialect Name
		query   string
		want    bool
	}{
		{MySQLName, "SELECT 1", true},
		{MySQLName, "  select * from t", true},
		{MySQLName, "WITH x AS (SELECT 1) SELECT * FROM x", true},
		{MySQLName, "(SELECT 1)", true},
		{MySQLName, "-- note\nSELECT 1", true},
		{MSSQLName, "/* c */ EXEC sp_who", true},
		{MySQLName, "INSERT INTO t VALUES (1)", false},
		{MySQLName, "INSERT INTO t SELECT * FROM s", false},
		{MySQLName, "DELETE FROM t", false},
		{MySQLName, "UPDATE t SET a = 1", false},
		{MySQLName, "", false},
		{MSSQLName, "SET NOCOUNT ON; SELECT name FROM sys.databases", true},
		{MSSQLName, "SET NOCOUNT ON\nSELECT name FROM sys.databases", true},
		{MSSQLName, "DECLARE @x int = 1; SELECT @x AS x", true},
		{MSSQLName, "INSERT INTO t (a) OUTPUT inserted.id VALUES (1)", true},
		{MSSQLName, "INSERT INTO t (a) VALUES ('OUTPUT')", false},
		{MSSQLName, "SET LOCK_TIMEOUT 100", false},
		{MySQLName, "INSERT INTO t (a) VALUES (1) RETURNING id", true},
		{MySQLName, "DELETE FROM t WHERE a = 1 RETURNING a", true},
		{MySQLName, "UPDATE t SET note = 'select'", false},
		{MySQLName, "SET @a = 1; SELECT @a", true},
		{OracleName, "INSERT INTO t (a) VALUES (1) RETURNING id INTO :id", false},
		{OracleName, "UPDATE t SET a = 1 -- then SELECT", false},
	}
	for _, tt := range tests {
		if got := returnsRows(tt.dialect, tt.query); got != tt.want {
			t.Errorf("returnsRows(%s, %q) = %v, want %v", tt.dialect, tt.query, got, tt.want)
		}
	}
}
