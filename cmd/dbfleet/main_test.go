package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI executes the root command with a clean environment rooted in dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DBINFO_PATH", filepath.Join(dir, "dbinfo.json"))
	t.Setenv("REPORT_DIR", filepath.Join(dir, "results"))
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"check", "run", "querybook", "import", "ping", "portcheck", "databases"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}
	if cmd, _, err := root.Find([]string{"query"}); err != nil || cmd.Name() != "run" {
		t.Errorf("query alias should resolve to run")
	}
}

func TestDatabases(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dbinfo.json"), `{
		"crm": {"type": "mysql", "host": "10.0.0.1", "port": 3306, "database": "crm", "user": "u", "password": "p"},
		"erp": {"type": "oracle", "server": "ora1", "database": "ERP", "user": "u", "password": "p"}
	}`)

	out, err := runCLI(t, dir, "databases")
	if err != nil {
		t.Fatalf("databases: %v", err)
	}
	if !strings.Contains(out, "10.0.0.1:3306") || !strings.Contains(out, "erp") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "password") {
		t.Errorf("credentials printed: %q", out)
	}
}

func TestDatabases_NoRegistry(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "databases"); err == nil {
		t.Fatal("expected error without registry")
	}
}

func TestCheck_WritesReport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "endpoints.csv")
	// Every row fails validation, so no connection is attempted.
	writeFile(t, input, "db_name,server_ip,port,user,password,db_type\napp,not-an-ip,1433,u,p,mssql\n")

	out, err := runCLI(t, dir, "check", input)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 rows skipped") {
		t.Errorf("output = %q", out)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "results", "check_*.csv"))
	if len(matches) != 1 {
		t.Fatalf("reports = %v", matches)
	}
}

func TestCheck_BadDialect(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "endpoints.csv")
	writeFile(t, input, "db_name,server_ip,port\n")

	if _, err := runCLI(t, dir, "check", "--dialect", "db2", input); err == nil {
		t.Fatal("expected unsupported dialect error")
	}
}

func TestRun_RequiresDatabase(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "q.sql")
	writeFile(t, tmpl, "SELECT 1")

	if _, err := runCLI(t, dir, "run", tmpl); err == nil {
		t.Fatal("expected error for missing --db")
	}
}
