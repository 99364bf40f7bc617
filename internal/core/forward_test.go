package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// collector records every JSON body posted to it, keyed by path.
type collector struct {
	mu       sync.Mutex
	paths    []string
	bodies   []map[string]any
	insertID int64
	status   int
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.bodies = append(c.bodies, body)
	c.mu.Unlock()

	if c.status != 0 {
		w.WriteHeader(c.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/api/master" {
		json.NewEncoder(w).Encode(map[string]any{"insertId": c.insertID})
		return
	}
	w.Write([]byte(`{}`))
}

func newCollector(t *testing.T, c *collector) *HTTPForwarder {
	t.Helper()
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)

	f := NewHTTPForwarder(srv.URL + "/api/")
	f.Origin = "10.0.0.9"
	return f
}

func TestNewHTTPForwarder_EmptyURLDisables(t *testing.T) {
	if f := NewHTTPForwarder("  "); f != nil {
		t.Errorf("NewHTTPForwarder(blank) = %+v, want nil", f)
	}
	var f *HTTPForwarder
	f.Forward(context.Background(), NewRun(RunCheck, "x")) // must not panic
}

func TestService_CheckForwardsResults(t *testing.T) {
	connector := newFakeConnector()
	ok := newFakeConn(dialect.MySQLName)
	ok.report = dialect.Report{Select: true, Insert: true}
	connector.conns["10.1.1.1"] = ok

	c := &collector{insertID: 77}
	svc := newTestService(connector, nil, WithForwarder(newCollector(t, c)))

	input := csvOf(
		"db_name,server_ip,port,user,password,db_type",
		"app,10.1.1.1,3306,u,p,mysql",
	)
	if _, err := svc.Check(context.Background(), "endpoints.csv", input, AutoDialect); err != nil {
		t.Fatalf("Check: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.paths) != 2 || c.paths[0] != "/api/master" || c.paths[1] != "/api/db" {
		t.Fatalf("paths = %v, want [/api/master /api/db]", c.paths)
	}
	if c.bodies[0]["check_method"] != "DB_CONN" || c.bodies[0]["pc_ip"] != "10.0.0.9" {
		t.Errorf("master body = %v", c.bodies[0])
	}

	rec := c.bodies[1]
	if rec["check_unit_id"] != float64(77) {
		t.Errorf("check_unit_id = %v, want 77", rec["check_unit_id"])
	}
	if rec["server_ip"] != "10.1.1.1" || rec["db_name"] != "app" || rec["db_type"] != "mysql" || rec["db_userid"] != "u" {
		t.Errorf("record = %v", rec)
	}
	if rec["result_code"] != true || rec["perm_select"] != true || rec["perm_insert"] != true || rec["perm_delete"] != false {
		t.Errorf("outcome fields = %v", rec)
	}
}

func TestHTTPForwarder_PortCheckRecords(t *testing.T) {
	c := &collector{insertID: 5}
	f := newCollector(t, c)

	run := NewRun(RunPortCheck, "ports.csv")
	run.Ports = []PortResult{
		{Address: "10.0.0.1", Port: "22", Connected: true, Elapsed: 1500 * time.Millisecond},
		{Address: "10.0.0.2", Port: "22", ErrorCode: "ECONNREFUSED", ErrorMsg: "refused"},
	}
	run.Finish(nil)

	f.Forward(context.Background(), run)

	c.mu.Lock()
	defer c.mu.Unlock()
	want := []string{"/api/master", "/api/telnet", "/api/telnet"}
	if len(c.paths) != len(want) {
		t.Fatalf("paths = %v, want %v", c.paths, want)
	}
	for i := range want {
		if c.paths[i] != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, c.paths[i], want[i])
		}
	}
	if c.bodies[0]["check_method"] != "TELNET" {
		t.Errorf("check_method = %v", c.bodies[0]["check_method"])
	}
	if c.bodies[1]["collapsed_time"] != "1.50" {
		t.Errorf("collapsed_time = %v, want 1.50", c.bodies[1]["collapsed_time"])
	}
	if c.bodies[2]["error_code"] != "ECONNREFUSED" || c.bodies[2]["result_code"] != false {
		t.Errorf("failure record = %v", c.bodies[2])
	}
}

func TestHTTPForwarder_SkipsRecords(t *testing.T) {
	tests := []struct {
		name      string
		c         *collector
		run       func() *Run
		wantPaths int
	}{
		{
			name: "collector down",
			c:    &collector{status: http.StatusServiceUnavailable},
			run: func() *Run {
				r := NewRun(RunPortCheck, "p")
				r.Ports = []PortResult{{Address: "10.0.0.1", Port: "22"}}
				r.Finish(nil)
				return r
			},
			wantPaths: 1,
		},
		{
			name: "no unit id",
			c:    &collector{},
			run: func() *Run {
				r := NewRun(RunPortCheck, "p")
				r.Ports = []PortResult{{Address: "10.0.0.1", Port: "22"}}
				r.Finish(nil)
				return r
			},
			wantPaths: 1,
		},
		{
			name: "failed run",
			c:    &collector{insertID: 1},
			run: func() *Run {
				r := NewRun(RunCheck, "c")
				r.Finish(ErrEmptyInput)
				return r
			},
			wantPaths: 0,
		},
		{
			name: "query runs are not forwarded",
			c:    &collector{insertID: 1},
			run: func() *Run {
				r := NewRun(RunQuery, "q")
				r.Finish(nil)
				return r
			},
			wantPaths: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCollector(t, tt.c)
			f.Forward(context.Background(), tt.run())

			tt.c.mu.Lock()
			defer tt.c.mu.Unlock()
			if len(tt.c.paths) != tt.wantPaths {
				t.Errorf("paths = %v, want %d requests", tt.c.paths, tt.wantPaths)
			}
		})
	}
}
