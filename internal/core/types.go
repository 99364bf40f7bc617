package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// AutoDialect asks the checker to use each row's declared dialect.
const AutoDialect = "auto"

// Connector builds dialect connections. dialect.Factory is the production
// implementation; tests supply fakes.
type Connector interface {
	Create(dialectName string, cfg dialect.Config) (dialect.Conn, error)
}

// Endpoint is one row of endpoint-check input.
type Endpoint struct {
	Row      int // 1-based data row number in the source
	Database string
	Address  string
	Port     string
	User     string
	Password string
	Dialect  string // declared dialect, "auto" or empty

	// Test is the optional inline probe specification.
	Test *dialect.TestSpec
}

// Addr returns address:port for display.
func (e Endpoint) Addr() string {
	return e.Address + ":" + e.Port
}

// CheckResult is the outcome of checking one endpoint.
type CheckResult struct {
	Timestamp   time.Time      `json:"timestamp"`
	Endpoint    string         `json:"endpoint"`
	Port        string         `json:"port"`
	Database    string         `json:"database"`
	Dialect     dialect.Name   `json:"dialect"`
	Username    string         `json:"username"`
	Success     bool           `json:"success"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_msg,omitempty"`
	Elapsed     time.Duration  `json:"elapsed"`
	Permissions dialect.Report `json:"permissions"`
}

// QueryResultGroup holds what one parameter row produced.
// Groups are ordered by input row and never modified once appended.
type QueryResultGroup struct {
	Parameters map[string]any   `json:"parameters"`
	Columns    []string         `json:"columns,omitempty"`
	Rows       []map[string]any `json:"rows,omitempty"`
	RowCount   int64            `json:"row_count"`
	Error      string           `json:"error,omitempty"`
}

// QueryRun aggregates one template executed over many parameter rows.
type QueryRun struct {
	Template   string             `json:"template"`
	Groups     []QueryResultGroup `json:"groups"`
	TotalRows  int64              `json:"total_rows"`
	ErrorCount int                `json:"error_count"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// ImportMapping pairs a source data file with a destination table.
type ImportMapping struct {
	Database string `json:"database"`
	Table    string `json:"table"`
	Source   string `json:"source"`
}

// ImportResult is the outcome of one mapping.
// Success is true only when every attempted row was inserted.
type ImportResult struct {
	Mapping      ImportMapping `json:"mapping"`
	Attempted    int           `json:"rows_attempted"`
	Inserted     int           `json:"rows_inserted"`
	GeneratedSQL string        `json:"generated_sql,omitempty"`
	FirstError   string        `json:"first_error,omitempty"`
	Success      bool          `json:"success"`
}

// DataLoader reads the tabular source named by an ImportMapping.
type DataLoader interface {
	Load(ctx context.Context, source string) (*Table, error)
}

// Table is fully buffered tabular input. Header order is preserved; each
// record maps header to cell.
type Table struct {
	Header  []string
	Records []map[string]string
}
