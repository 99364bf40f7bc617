package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// aliases maps every accepted spelling to its canonical dialect.
var aliases = map[string]Name{
	"mssql":      MSSQLName,
	"sqlserver":  MSSQLName,
	"mysql":      MySQLName,
	"mariadb":    MySQLName,
	"postgres":   PostgresName,
	"postgresql": PostgresName,
	"pg":         PostgresName,
	"oracle":     OracleName,
}

var defaultPorts = map[Name]int{
	MSSQLName:    1433,
	MySQLName:    3306,
	PostgresName: 5432,
	OracleName:   1521,
}

// Names lists the canonical dialects in a stable order.
func Names() []Name {
	return []Name{MSSQLName, MySQLName, PostgresName, OracleName}
}

// Normalize resolves a case-insensitive dialect name or alias.
func Normalize(dialect string) (Name, error) {
	n, ok := aliases[strings.ToLower(strings.TrimSpace(dialect))]
	if !ok {
		return "", &ConfigError{Dialect: dialect, Message: fmt.Sprintf("unsupported dialect %q", dialect)}
	}
	return n, nil
}

// DefaultPort returns the conventional listener port for a dialect.
func DefaultPort(n Name) int {
	return defaultPorts[n]
}

// Validate checks that cfg names host, port, database, user and password and
// that the port is an integer in [1, 65535].
func Validate(dialect string, cfg Config) error {
	n, err := Normalize(dialect)
	if err != nil {
		return err
	}

	var missing []string
	if strings.TrimSpace(cfg.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		missing = append(missing, "port")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		missing = append(missing, "database")
	}
	if cfg.User == "" {
		missing = append(missing, "user")
	}
	if cfg.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ConfigError{Dialect: string(n), Missing: missing}
	}

	if _, err := ParsePort(cfg.Port); err != nil {
		return &ConfigError{Dialect: string(n), Message: err.Error()}
	}
	return nil
}

// ParsePort parses a TCP port and enforces the [1, 65535] range.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}

// Create validates cfg and builds the variant for dialect. The returned
// connection is not yet connected.
func Create(dialect string, cfg Config) (Conn, error) {
	if err := Validate(dialect, cfg); err != nil {
		return nil, err
	}
	n, _ := Normalize(dialect)

	switch n {
	case MSSQLName:
		return NewMSSQL(cfg), nil
	case MySQLName:
		return NewMySQL(cfg), nil
	case PostgresName:
		return NewPostgres(cfg), nil
	case OracleName:
		return NewOracle(cfg), nil
	}
	return nil, &ConfigError{Dialect: dialect, Message: "unsupported dialect"}
}

// Factory adapts the package level constructors to an injectable value.
type Factory struct{}

// Create implements the connector contract used by the batch components.
func (Factory) Create(dialect string, cfg Config) (Conn, error) {
	return Create(dialect, cfg)
}
