package dialect

import (
	"context"
	"time"
)

// Name identifies one supported SQL dialect.
type Name string

const (
	MSSQLName    Name = "mssql"
	MySQLName    Name = "mysql"
	PostgresName Name = "postgresql"
	OracleName   Name = "oracle"
)

// Default timeouts applied when a Config leaves them unset.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultRequestTimeout = 5 * time.Minute
)

// Config describes one endpoint. It is owned by the connection created for
// it and discarded when that connection is closed.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// Options carries driver specific settings such as encrypt or sslmode.
	Options map[string]string
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (c Config) requestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return DefaultRequestTimeout
}

func (c Config) option(key, fallback string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Result is the outcome of one ExecuteQuery call.
// RowCount is len(Rows) for statements that return a row set and the
// affected-row count otherwise.
type Result struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int64
}

// Conn is the uniform contract every dialect variant implements.
type Conn interface {
	Dialect() Name

	// Connect opens the session. Failures are returned as *ConnectionError.
	Connect(ctx context.Context) error

	// Disconnect releases the session. Calling it on a closed or never
	// opened connection is a no-op.
	Disconnect(ctx context.Context) error

	// ExecuteQuery rewrites @key tokens into native placeholders and runs text.
	ExecuteQuery(ctx context.Context, text string, params map[string]any) (*Result, error)

	// CheckPermissions runs the live SELECT/INSERT/DELETE probe.
	CheckPermissions(ctx context.Context, spec *TestSpec) Report
}

// IdentityColumner is implemented by variants that can list auto-generated
// columns. table may be schema qualified.
type IdentityColumner interface {
	IdentityColumns(ctx context.Context, table string) ([]string, error)
}

// ComputedColumner is implemented by variants that can list computed or
// generated columns. table may be schema qualified.
type ComputedColumner interface {
	ComputedColumns(ctx context.Context, table string) ([]string, error)
}

// TestSpec narrows what the permission probe attempts.
// The INSERT and DELETE probes only run when Table, Columns and Values are
// all present and Columns and Values have the same non-zero length.
type TestSpec struct {
	SelectSQL string
	Table     string
	Columns   []string
	Values    []string
}

// writable reports whether the INSERT/DELETE part of the probe applies.
func (s *TestSpec) writable() bool {
	if s == nil || s.Table == "" {
		return false
	}
	return len(s.Columns) > 0 && len(s.Columns) == len(s.Values)
}

// Report is the immutable outcome of one permission probe.
type Report struct {
	Select      bool   `json:"select"`
	Insert      bool   `json:"insert"`
	Delete      bool   `json:"delete"`
	InsertQuery string `json:"insert_query,omitempty"`
	DeleteQuery string `json:"delete_query,omitempty"`
	SelectError string `json:"select_error,omitempty"`
	InsertError string `json:"insert_error,omitempty"`
	DeleteError string `json:"delete_error,omitempty"`
}
