package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/config"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) string { return "" })
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	cfg.Fleet.DBInfoPath = filepath.Join(t.TempDir(), "dbinfo.json")
	return cfg
}

func TestNew_MissingRegistry(t *testing.T) {
	cfg := baseConfig(t)

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close()

	if app.Databases != nil {
		t.Error("Databases should be nil without a registry file")
	}
	if app.ExecLog != nil {
		t.Error("ExecLog should be nil without LOCALDB_HOST")
	}

	// A missing registry surfaces per operation, not as a nil-pointer panic.
	res := app.Service.Ping(context.Background(), "crm")
	if res.Success {
		t.Error("Ping succeeded without a registry")
	}
}

func TestNew_LoadsRegistry(t *testing.T) {
	cfg := baseConfig(t)
	data := `{"crm": {"type": "mysql", "host": "10.0.0.1", "port": 3306, "database": "crm", "user": "u", "password": "p"}}`
	if err := os.WriteFile(cfg.Fleet.DBInfoPath, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if app.Databases == nil || len(app.Databases.Names()) != 1 {
		t.Fatalf("Databases = %+v", app.Databases)
	}
}

func TestNew_MalformedRegistry(t *testing.T) {
	cfg := baseConfig(t)
	if err := os.WriteFile(cfg.Fleet.DBInfoPath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for malformed registry")
	}
}

func TestSettings(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Fleet.DefaultUser = "svc"
	cfg.Fleet.ConnectTimeout = 5 * time.Second

	s := Settings(cfg)
	if s.Defaults.User != "svc" || s.ConnectTimeout != 5*time.Second {
		t.Errorf("Settings = %+v", s)
	}
	if s.Limits.MaxRows != 500 || s.Limits.MaxBytes != 204800 {
		t.Errorf("Limits = %+v", s.Limits)
	}
	if s.Charset != "utf-8" {
		t.Errorf("Charset = %q", s.Charset)
	}
}

func TestNew_ForwardsPortCheckToAPIURL(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"insertId": 3}`))
	}))
	defer srv.Close()

	cfg := baseConfig(t)
	cfg.Fleet.APIURL = srv.URL

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The collector's own listener is the port being checked.
	u, _ := url.Parse(srv.URL)
	input := strings.NewReader("server_ip,port\n" + u.Hostname() + "," + u.Port() + "\n")
	run, err := app.Service.PortCheck(context.Background(), "ports.csv", input, time.Second)
	if err != nil {
		t.Fatalf("PortCheck: %v", err)
	}
	if len(run.Ports) != 1 || !run.Ports[0].Connected {
		t.Fatalf("Ports = %+v", run.Ports)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 || paths[0] != "/master" || paths[1] != "/telnet" {
		t.Errorf("collector paths = %v, want [/master /telnet]", paths)
	}
}
