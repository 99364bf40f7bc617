// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Fleet    FleetConfig
	Runs     RunConfig
	ExecLog  ExecLogConfig
	Schedule ScheduleConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response. Fleet runs
	// can be long, so the default is 0 (no limit).
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds a single API request, including the run it starts (default: 30m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30m"`
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, tees output to a size-rotated log file
	File string `env:"LOG_FILE"`

	MaxSizeMB  int `env:"LOG_MAX_SIZE_MB" default:"50"`
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"30"`
}

// FleetConfig holds settings shared by every fleet operation.
type FleetConfig struct {
	// DBInfoPath is the named-database registry file (JSON or YAML)
	DBInfoPath string `env:"DBINFO_PATH" default:"config/dbinfo.json"`

	// ConnectTimeout bounds establishing one database connection (default: 30s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"30s"`

	// RequestTimeout bounds one statement (default: 5m)
	RequestTimeout time.Duration `env:"DB_REQUEST_TIMEOUT" default:"5m"`

	// MaxRows caps data rows in endpoint and parameter input (default: 500)
	MaxRows int `env:"CHECK_MAX_ROWS" default:"500"`

	// MaxBytes caps endpoint and parameter input size (default: 200KB)
	MaxBytes int64 `env:"CHECK_MAX_BYTES" default:"204800"`

	// ErrorMaxLen truncates error text stored in results (default: 500)
	ErrorMaxLen int `env:"ERROR_MAX_LEN" default:"500"`

	// DefaultUser and DefaultPassword fill endpoint rows without credentials
	DefaultUser     string `env:"CHECK_DB_USER"`
	DefaultPassword string `env:"CHECK_DB_PASSWORD"`

	// ReportDir receives report files (default: results)
	ReportDir string `env:"REPORT_DIR" default:"results"`

	// InputEncoding is the charset label of input files (default: utf-8)
	InputEncoding string `env:"INPUT_ENCODING" default:"utf-8"`

	// APIURL is the collector that receives check and port check records.
	// Forwarding is off when empty.
	APIURL string `env:"API_URL"`
}

// RunConfig bounds HTTP-triggered runs.
type RunConfig struct {
	// MaxConcurrent is the number of runs allowed at once (default: 4)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a request waits for a run slot (default: 30s)
	MaxWait time.Duration `env:"RUN_MAX_WAIT" default:"30s"`

	// HistoryLimit is the number of runs kept in memory (default: 100)
	HistoryLimit int `env:"RUN_HISTORY_LIMIT" default:"100"`
}

// ExecLogConfig locates the optional MySQL execution log.
// The store is disabled when Host is empty.
type ExecLogConfig struct {
	Host     string `env:"LOCALDB_HOST"`
	Port     int    `env:"LOCALDB_PORT" default:"3306"`
	User     string `env:"LOCALDB_USER"`
	Password string `env:"LOCALDB_PASSWORD"`
	Database string `env:"LOCALDB_DATABASE" default:"dbfleet"`
}

// Enabled reports whether an execution log is configured.
func (c *ExecLogConfig) Enabled() bool {
	return c.Host != ""
}

// ScheduleConfig holds the optional recurring fleet check.
type ScheduleConfig struct {
	// Cron is a 5-field cron expression or descriptor such as @hourly
	Cron string `env:"SCHEDULE_CHECK_CRON"`

	// File is the endpoint input checked on every tick
	File string `env:"SCHEDULE_CHECK_FILE"`
}

// Enabled reports whether both schedule settings are present.
func (c *ScheduleConfig) Enabled() bool {
	return c.Cron != "" && c.File != ""
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
