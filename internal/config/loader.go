package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the process environment, applies the
// default tags and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	err := eachSetting(reflect.ValueOf(cfg).Elem(), func(s setting) error {
		raw := strings.TrimSpace(getenv(s.env))
		if raw == "" {
			raw = s.def
		}
		if raw == "" {
			return nil
		}
		if err := s.assign(raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", s.env, raw, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// setting is one env-tagged leaf of the config tree.
type setting struct {
	env   string
	def   string
	value reflect.Value
}

// eachSetting walks nested groups depth first and calls fn for every field
// carrying an env tag.
func eachSetting(v reflect.Value, fn func(setting) error) error {
	t := v.Type()
	for i := range t.NumField() {
		f, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			if err := eachSetting(fv, fn); err != nil {
				return err
			}
			continue
		}
		if env := f.Tag.Get("env"); env != "" {
			if err := fn(setting{env: env, def: f.Tag.Get("default"), value: fv}); err != nil {
				return err
			}
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func (s setting) assign(raw string) error {
	v := s.value
	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		v.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		v.SetBool(b)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", v.Type())
		}
		v.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type: %s", v.Type())
	}
	return nil
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// Validation
// ----------------------------------------------------------------------------

// problems collects every validation failure so they are reported together.
type problems []string

func (p *problems) require(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate checks every group and returns one error listing all failures.
func (c *Config) Validate() error {
	var p problems
	c.Server.validate(&p)
	c.Fleet.validate(&p)
	c.Runs.validate(&p)
	c.ExecLog.validate(&p)
	c.Schedule.validate(&p)
	c.Security.validate(&p)
	c.Logging.validate(&p)

	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
}

func validPort(n int) bool { return n > 0 && n <= 65535 }

func (c *ServerConfig) validate(p *problems) {
	p.require(validPort(c.Port), "SERVER_PORT (%d) must be 1-65535", c.Port)
	p.require(c.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.require(c.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
}

func (c *FleetConfig) validate(p *problems) {
	p.require(c.ConnectTimeout > 0, "DB_CONNECT_TIMEOUT must be positive")
	p.require(c.RequestTimeout > 0, "DB_REQUEST_TIMEOUT must be positive")
	p.require(c.MaxRows > 0, "CHECK_MAX_ROWS must be positive")
	p.require(c.MaxBytes > 0, "CHECK_MAX_BYTES must be positive")
	p.require(c.ErrorMaxLen > 0, "ERROR_MAX_LEN must be positive")
	p.require(c.ReportDir != "", "REPORT_DIR must not be empty")

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		p.require(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
			"API_URL (%q) must be an absolute http or https URL", c.APIURL)
	}
}

func (c *RunConfig) validate(p *problems) {
	p.require(c.MaxConcurrent > 0, "RUN_MAX_CONCURRENT must be positive")
	p.require(c.MaxWait > 0, "RUN_MAX_WAIT must be positive")
	p.require(c.HistoryLimit > 0, "RUN_HISTORY_LIMIT must be positive")
}

func (c *ExecLogConfig) validate(p *problems) {
	if c.Enabled() {
		p.require(validPort(c.Port), "LOCALDB_PORT (%d) must be 1-65535", c.Port)
	}
}

func (c *ScheduleConfig) validate(p *problems) {
	p.require((c.Cron == "") == (c.File == ""), "SCHEDULE_CHECK_CRON and SCHEDULE_CHECK_FILE must be set together")
}

func (c *SecurityConfig) validate(p *problems) {
	p.require(!c.RequireAPIKey || len(c.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c *LoggingConfig) validate(p *problems) {
	p.require(oneOf(c.Level, logLevels), "LOG_LEVEL (%q) must be one of: %s", c.Level, strings.Join(logLevels, ", "))
	p.require(oneOf(c.Format, logFormats), "LOG_FORMAT (%q) must be one of: %s", c.Format, strings.Join(logFormats, ", "))
	p.require(c.File == "" || c.MaxSizeMB > 0, "LOG_MAX_SIZE_MB must be positive when LOG_FILE is set")
}

// ----------------------------------------------------------------------------
// Display
// ----------------------------------------------------------------------------

// String renders the config for logging with passwords and keys masked.
func (c *Config) String() string {
	groups := []string{
		fmt.Sprintf("Server: {Host: %q, Port: %d}", c.Server.Host, c.Server.Port),
		fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d}", c.Security.RequireAPIKey, len(c.Security.APIKeys)),
		fmt.Sprintf("Fleet: {DBInfoPath: %q, ConnectTimeout: %s, RequestTimeout: %s, MaxRows: %d, DefaultUser: %q, DefaultPassword: %s, APIURL: %q}",
			c.Fleet.DBInfoPath, c.Fleet.ConnectTimeout, c.Fleet.RequestTimeout, c.Fleet.MaxRows,
			c.Fleet.DefaultUser, mask(c.Fleet.DefaultPassword), c.Fleet.APIURL),
		fmt.Sprintf("Runs: {MaxConcurrent: %d, HistoryLimit: %d}", c.Runs.MaxConcurrent, c.Runs.HistoryLimit),
		fmt.Sprintf("ExecLog: {Host: %q, User: %q, Password: %s}", c.ExecLog.Host, c.ExecLog.User, mask(c.ExecLog.Password)),
		fmt.Sprintf("Logging: {Level: %q, Format: %q, File: %q}", c.Logging.Level, c.Logging.Format, c.Logging.File),
	}
	return "Config{" + strings.Join(groups, ", ") + "}"
}

func mask(secret string) string {
	if secret == "" {
		return "[EMPTY]"
	}
	return "[MASKED]"
}
