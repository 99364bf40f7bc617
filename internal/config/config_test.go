package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func envMap(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Fleet.DBInfoPath != "config/dbinfo.json" {
		t.Errorf("Fleet.DBInfoPath = %q", cfg.Fleet.DBInfoPath)
	}
	if cfg.Fleet.ConnectTimeout != 30*time.Second {
		t.Errorf("Fleet.ConnectTimeout = %v", cfg.Fleet.ConnectTimeout)
	}
	if cfg.Fleet.RequestTimeout != 5*time.Minute {
		t.Errorf("Fleet.RequestTimeout = %v", cfg.Fleet.RequestTimeout)
	}
	if cfg.Fleet.MaxRows != 500 || cfg.Fleet.MaxBytes != 204800 {
		t.Errorf("Fleet limits = %d rows, %d bytes", cfg.Fleet.MaxRows, cfg.Fleet.MaxBytes)
	}
	if cfg.Fleet.ErrorMaxLen != 500 {
		t.Errorf("Fleet.ErrorMaxLen = %d", cfg.Fleet.ErrorMaxLen)
	}
	if cfg.Runs.MaxConcurrent != 4 || cfg.Runs.HistoryLimit != 100 {
		t.Errorf("Runs = %+v", cfg.Runs)
	}
	if cfg.ExecLog.Enabled() {
		t.Error("exec log enabled without LOCALDB_HOST")
	}
	if cfg.Schedule.Enabled() {
		t.Error("schedule enabled by default")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"SERVER_PORT":        "9090",
		"RUN_MAX_CONCURRENT": "10",
		"LOG_LEVEL":          "debug",
		"CHECK_DB_USER":      "monitor",
		"LOCALDB_HOST":       "127.0.0.1",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Runs.MaxConcurrent != 10 {
		t.Errorf("Runs.MaxConcurrent = %d, want %d", cfg.Runs.MaxConcurrent, 10)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Fleet.DefaultUser != "monitor" {
		t.Errorf("Fleet.DefaultUser = %q", cfg.Fleet.DefaultUser)
	}
	if !cfg.ExecLog.Enabled() || cfg.ExecLog.Port != 3306 {
		t.Errorf("ExecLog = %+v", cfg.ExecLog)
	}
}

func TestLoad_UsesProcessEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}

func TestLoad_Duration(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"SERVER_READ_TIMEOUT": "45s",
		"RUN_MAX_WAIT":        "1m30s",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Runs.MaxWait != 90*time.Second {
		t.Errorf("Runs.MaxWait = %v, want %v", cfg.Runs.MaxWait, 90*time.Second)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	_, err := LoadFrom(envMap(map[string]string{"DB_CONNECT_TIMEOUT": "soon"}))
	if err == nil || !strings.Contains(err.Error(), "DB_CONNECT_TIMEOUT") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"REQUIRE_API_KEY": "true",
		"API_KEYS":        "alpha, beta , ,gamma",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	expected := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(cfg.Security.APIKeys, expected) {
		t.Errorf("APIKeys = %v, want %v", cfg.Security.APIKeys, expected)
	}
}

func TestLoad_APIURL(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{"API_URL": " http://10.0.0.2:4000/api "}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Fleet.APIURL != "http://10.0.0.2:4000/api" {
		t.Errorf("Fleet.APIURL = %q", cfg.Fleet.APIURL)
	}
}

func TestSettingAssign(t *testing.T) {
	var target struct {
		Count  int
		Ratio  float64
		Limit  time.Duration
		Hosts  []string
		Widths []int
	}
	v := reflect.ValueOf(&target).Elem()
	field := func(name string) setting { return setting{env: name, value: v.FieldByName(name)} }

	if err := field("Count").assign("12"); err != nil || target.Count != 12 {
		t.Errorf("Count = %d, err = %v", target.Count, err)
	}
	if err := field("Limit").assign("2m"); err != nil || target.Limit != 2*time.Minute {
		t.Errorf("Limit = %v, err = %v", target.Limit, err)
	}
	if err := field("Hosts").assign(",a,, b ,"); err != nil || !reflect.DeepEqual(target.Hosts, []string{"a", "b"}) {
		t.Errorf("Hosts = %v, err = %v", target.Hosts, err)
	}
	if err := field("Count").assign("many"); err == nil {
		t.Error("non-numeric integer accepted")
	}
	if err := field("Ratio").assign("0.5"); err == nil {
		t.Error("float field should be unsupported")
	}
	if err := field("Widths").assign("1,2"); err == nil {
		t.Error("int slice should be unsupported")
	}
}

// ----------------------------------------------------------------------------
// Validate
// ----------------------------------------------------------------------------

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Fleet: FleetConfig{
			ConnectTimeout: time.Second, RequestTimeout: time.Second,
			MaxRows: 1, MaxBytes: 1, ErrorMaxLen: 1, ReportDir: "results",
		},
		Runs:    RunConfig{MaxConcurrent: 1, MaxWait: time.Second, HistoryLimit: 1},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"zero connect timeout", func(c *Config) { c.Fleet.ConnectTimeout = 0 }, "DB_CONNECT_TIMEOUT"},
		{"zero concurrency", func(c *Config) { c.Runs.MaxConcurrent = 0 }, "RUN_MAX_CONCURRENT"},
		{"api key required but none", func(c *Config) { c.Security.RequireAPIKey = true }, "API_KEYS"},
		{"schedule half set", func(c *Config) { c.Schedule.Cron = "@hourly" }, "SCHEDULE_CHECK_FILE"},
		{"exec log bad port", func(c *Config) { c.ExecLog.Host = "db"; c.ExecLog.Port = 0 }, "LOCALDB_PORT"},
		{"api url", func(c *Config) { c.Fleet.APIURL = "https://collector.local/api" }, ""},
		{"api url without scheme", func(c *Config) { c.Fleet.APIURL = "collector.local/api" }, "API_URL"},
		{"api url wrong scheme", func(c *Config) { c.Fleet.APIURL = "ftp://collector.local" }, "API_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.Addr(); got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Fleet.DefaultPassword = "hunter2"
	cfg.ExecLog.Password = "s3cret"
	cfg.Security.APIKeys = []string{"key-abc"}

	str := cfg.String()
	for _, secret := range []string{"hunter2", "s3cret", "key-abc"} {
		if strings.Contains(str, secret) {
			t.Errorf("String() leaks %q", secret)
		}
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}

// ----------------------------------------------------------------------------
// Database registry
// ----------------------------------------------------------------------------

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDatabases_JSON(t *testing.T) {
	path := writeFile(t, "dbinfo.json", `{
		"crm":   {"type": "mssql", "server": "10.0.0.5", "port": 1433, "database": "crm", "user": "sa", "password": "pw",
		          "options": {"encrypt": "false"}},
		"sales": {"type": "postgresql", "host": "10.0.0.6", "port": "6432", "database": "sales", "user": "u", "password": "p"},
		"erp":   {"type": "Oracle", "host": "10.0.0.7", "database": "ORCL", "user": "u", "password": "p"}
	}`)

	dbs, err := LoadDatabases(path)
	if err != nil {
		t.Fatalf("LoadDatabases: %v", err)
	}

	if got := dbs.Names(); !reflect.DeepEqual(got, []string{"crm", "erp", "sales"}) {
		t.Errorf("Names() = %v", got)
	}
	if got := dbs.Types(); !reflect.DeepEqual(got, []string{"mssql", "oracle", "postgresql"}) {
		t.Errorf("Types() = %v", got)
	}

	name, cfg, err := dbs.Resolve("crm")
	if err != nil {
		t.Fatal(err)
	}
	if name != "mssql" || cfg.Host != "10.0.0.5" || cfg.Port != "1433" || cfg.Options["encrypt"] != "false" {
		t.Errorf("Resolve(crm) = %s %+v", name, cfg)
	}

	if _, cfg, _ := dbs.Resolve("sales"); cfg.Port != "6432" {
		t.Errorf("string port = %q", cfg.Port)
	}
	if _, cfg, _ := dbs.Resolve("erp"); cfg.Port != "1521" {
		t.Errorf("default oracle port = %q", cfg.Port)
	}

	if _, _, err := dbs.Resolve("missing"); err == nil || !strings.Contains(err.Error(), "unknown database") {
		t.Errorf("Resolve(missing) err = %v", err)
	}
}

func TestLoadDatabases_YAML(t *testing.T) {
	path := writeFile(t, "dbinfo.yaml", `
warehouse:
  type: mysql
  host: 10.0.0.9
  database: dw
  user: etl
  password: pw
`)
	dbs, err := LoadDatabases(path)
	if err != nil {
		t.Fatalf("LoadDatabases: %v", err)
	}
	db, ok := dbs.Get("warehouse")
	if !ok || db.Type != "mysql" || db.Address() != "10.0.0.9" {
		t.Errorf("Get(warehouse) = %+v, %v", db, ok)
	}
	if _, cfg, _ := dbs.Resolve("warehouse"); cfg.Port != "3306" {
		t.Errorf("default mysql port = %q", cfg.Port)
	}
}

func TestLoadDatabases_Errors(t *testing.T) {
	if _, err := LoadDatabases(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := LoadDatabases(writeFile(t, "bad.json", `{"x": `)); err == nil {
		t.Error("malformed JSON accepted")
	}
	if _, err := LoadDatabases(writeFile(t, "bad.json", `{"x": {"port": true}}`)); err == nil {
		t.Error("boolean port accepted")
	}
}
