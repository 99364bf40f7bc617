package core

// validation.go checks tabular input before any connection is opened.
//
// Validation happens at two levels:
//  1. Header validation: required columns (or one of their aliases) must be
//     present. Failure here rejects the whole input.
//  2. Row validation: address and port format. Failure here skips the row
//     and is reported alongside the results.

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// ValidationError describes malformed input.
type ValidationError struct {
	Row     int    // 1-based data row, 0 for header or file level problems
	Field   string // column name
	Value   string // offending value
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Message)
	if e.Value != "" {
		fmt.Fprintf(&b, " (%q)", e.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ImportError is a mapping or row level import failure.
type ImportError struct {
	Database string
	Table    string
	Row      int // 0 when the whole mapping failed
	Message  string
	Err      error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("import %s.%s", e.Database, e.Table)
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error { return e.Err }

// Column is a logical input column and the header names that satisfy it.
type Column struct {
	Name    string
	Aliases []string
}

func (c Column) names() []string {
	return append([]string{c.Name}, c.Aliases...)
}

// Endpoint input columns.
var (
	ColDatabase    = Column{Name: "database_name", Aliases: []string{"db_name"}}
	ColAddress     = Column{Name: "server_address", Aliases: []string{"server_ip", "host"}}
	ColPort        = Column{Name: "port"}
	ColUser        = Column{Name: "username", Aliases: []string{"user"}}
	ColPassword    = Column{Name: "password"}
	ColDialect     = Column{Name: "dialect", Aliases: []string{"db_type"}}
	ColSelectSQL   = Column{Name: "select_sql"}
	ColTestTable   = Column{Name: "test_table"}
	ColTestColumns = Column{Name: "test_columns"}
	ColTestValues  = Column{Name: "test_values"}
)

// EndpointRequiredColumns must be present in endpoint input.
var EndpointRequiredColumns = []Column{ColDatabase, ColAddress, ColPort}

var (
	ipv4Regex = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	portRegex = regexp.MustCompile(`^[0-9]+$`)
)

// ValidateHeaders checks that every required column, or an alias of it, is in
// headers. The returned index resolves columns by any of their names.
func ValidateHeaders(headers []string, required []Column) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string
	for _, c := range required {
		if _, ok := idx.Lookup(c.names()...); !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Message: "missing required columns: " + strings.Join(missing, ", ")}
	}
	return idx, nil
}

// ValidAddress reports whether addr is a dotted IPv4 address or localhost.
func ValidAddress(addr string) bool {
	return strings.EqualFold(addr, "localhost") || ipv4Regex.MatchString(addr)
}

// ValidPort reports whether port is all digits.
func ValidPort(port string) bool {
	return portRegex.MatchString(port)
}

// ValidateEndpoint checks addressing only; credentials and port range are
// left to dialect.Validate so they surface as a per-endpoint failure.
func ValidateEndpoint(e Endpoint) error {
	if !ValidAddress(e.Address) {
		return &ValidationError{Row: e.Row, Field: ColAddress.Name, Value: e.Address, Message: "invalid server address"}
	}
	if !ValidPort(e.Port) {
		return &ValidationError{Row: e.Row, Field: ColPort.Name, Value: e.Port, Message: "invalid port"}
	}
	return nil
}

// Credentials fill in endpoints that carry none of their own.
type Credentials struct {
	User     string
	Password string
}

// ParseEndpoints converts endpoint input to Endpoints. A header problem is
// returned as error; rows with a bad address or port are returned in skipped.
func ParseEndpoints(t *Table, defaults Credentials) (endpoints []Endpoint, skipped []*ValidationError, err error) {
	if _, err := ValidateHeaders(t.Header, EndpointRequiredColumns); err != nil {
		return nil, nil, err
	}

	for i, rec := range t.Records {
		get := func(c Column) string { return recordValue(t.Header, rec, c) }

		ep := Endpoint{
			Row:      i + 1,
			Database: get(ColDatabase),
			Address:  get(ColAddress),
			Port:     get(ColPort),
			User:     get(ColUser),
			Password: get(ColPassword),
			Dialect:  get(ColDialect),
		}
		if ep.User == "" && ep.Password == "" {
			ep.User, ep.Password = defaults.User, defaults.Password
		}
		if sel, tbl := get(ColSelectSQL), get(ColTestTable); sel != "" || tbl != "" {
			ep.Test = &dialect.TestSpec{
				SelectSQL: sel,
				Table:     tbl,
				Columns:   splitList(get(ColTestColumns)),
				Values:    splitList(get(ColTestValues)),
			}
		}

		if verr := ValidateEndpoint(ep); verr != nil {
			skipped = append(skipped, verr.(*ValidationError))
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, skipped, nil
}

// recordValue returns the trimmed value for c, matching headers
// case-insensitively and trying aliases in order.
func recordValue(header []string, rec map[string]string, c Column) string {
	for _, name := range c.names() {
		for _, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return strings.TrimSpace(rec[h])
			}
		}
	}
	return ""
}

// splitList splits a '|' separated cell. Empty input yields nil.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
