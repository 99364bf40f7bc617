package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// fakeConn is an in-memory dialect.Conn. Queries are matched by exact text.
type fakeConn struct {
	mu sync.Mutex

	name       dialect.Name
	connectErr error
	report     dialect.Report

	// results keyed by query text; errs keyed by the value of param "fail"
	// or by query text.
	results  map[string]*dialect.Result
	errs     map[string]error
	failWhen func(params map[string]any) error

	identity []string
	computed []string

	connects    int
	disconnects int
	executed    []executed
}

type executed struct {
	query  string
	params map[string]any
}

func newFakeConn(name dialect.Name) *fakeConn {
	return &fakeConn{name: name, results: map[string]*dialect.Result{}, errs: map[string]error{}}
}

func (f *fakeConn) Dialect() dialect.Name { return f.name }

func (f *fakeConn) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeConn) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeConn) ExecuteQuery(_ context.Context, text string, params map[string]any) (*dialect.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, executed{query: text, params: params})

	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	if f.failWhen != nil {
		if err := f.failWhen(params); err != nil {
			return nil, err
		}
	}
	if res, ok := f.results[text]; ok {
		return res, nil
	}
	return &dialect.Result{RowCount: 1}, nil
}

func (f *fakeConn) CheckPermissions(context.Context, *dialect.TestSpec) dialect.Report {
	return f.report
}

func (f *fakeConn) IdentityColumns(context.Context, string) ([]string, error) {
	return f.identity, nil
}

func (f *fakeConn) ComputedColumns(context.Context, string) ([]string, error) {
	return f.computed, nil
}

// fakeConnector hands out fakeConns keyed by host or database name.
type fakeConnector struct {
	mu      sync.Mutex
	conns   map[string]*fakeConn
	created []dialect.Config
	names   []string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{conns: map[string]*fakeConn{}}
}

func (c *fakeConnector) Create(name string, cfg dialect.Config) (dialect.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := dialect.Validate(name, cfg); err != nil {
		return nil, err
	}
	c.created = append(c.created, cfg)
	c.names = append(c.names, name)

	for _, key := range []string{cfg.Host, cfg.Database} {
		if fc, ok := c.conns[key]; ok {
			return fc, nil
		}
	}
	n, _ := dialect.Normalize(name)
	return newFakeConn(n), nil
}

// fakeDatabases resolves every name to a fixed dialect and config.
type fakeDatabases map[string]string

func (f fakeDatabases) Resolve(name string) (string, dialect.Config, error) {
	d, ok := f[name]
	if !ok {
		return "", dialect.Config{}, fmt.Errorf("unknown database %q", name)
	}
	return d, dialect.Config{Host: "10.0.0.1", Port: "1433", Database: name, User: "u", Password: "p"}, nil
}

// memLoader serves tables from memory.
type memLoader map[string]*Table

func (m memLoader) Load(_ context.Context, source string) (*Table, error) {
	t, ok := m[source]
	if !ok {
		return nil, errors.New("no such source: " + source)
	}
	return t, nil
}

// tableOf builds a Table from a header and positional rows.
func tableOf(header []string, rows ...[]string) *Table {
	t := &Table{Header: header}
	for _, r := range rows {
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(r) {
				rec[h] = r[i]
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

// csvOf joins lines into CSV text.
func csvOf(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
