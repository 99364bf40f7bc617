package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
	"github.com/JonMunkholm/dbfleet/internal/logging"
)

// ExecLog records run start and end in an external store. Implementations
// must be safe to call when the store is unavailable; errors are logged and
// never fail the run.
type ExecLog interface {
	Begin(ctx context.Context, e ExecEntry) (id int64, err error)
	End(ctx context.Context, id int64, o ExecOutcome) error
}

// ExecEntry is written when a run starts.
type ExecEntry struct {
	RunID   string
	Kind    RunKind
	Name    string
	Content string
}

// ExecOutcome is written when a run ends.
type ExecOutcome struct {
	Count   int
	Code    string
	Message string
	Elapsed time.Duration
}

// Settings tunes a Service. Zero values select package defaults.
type Settings struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	ErrorMaxLen    int
	Limits         Limits
	Charset        string
	Defaults       Credentials
}

// Service wires the fleet operations to their collaborators and records
// every run in History.
type Service struct {
	connector Connector
	databases DatabaseResolver
	loader    DataLoader
	history   *History
	execLog   ExecLog
	forwarder Forwarder
	settings  Settings
}

// Option configures a Service.
type Option func(*Service)

// WithExecLog records runs in log.
func WithExecLog(log ExecLog) Option {
	return func(s *Service) { s.execLog = log }
}

// WithForwarder sends finished check and port check records to f.
func WithForwarder(f Forwarder) Option {
	return func(s *Service) { s.forwarder = f }
}

// WithLoader replaces the filesystem loader used for import sources.
func WithLoader(l DataLoader) Option {
	return func(s *Service) { s.loader = l }
}

// WithHistory replaces the default history.
func WithHistory(h *History) Option {
	return func(s *Service) { s.history = h }
}

// NewService creates a Service. databases may be nil when no named
// databases are configured; query, import and ping then fail per run.
func NewService(connector Connector, databases DatabaseResolver, settings Settings, opts ...Option) *Service {
	s := &Service{
		connector: connector,
		databases: databases,
		settings:  settings,
		history:   NewHistory(DefaultHistoryLimit),
	}
	s.loader = FileLoader{Charset: settings.Charset}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the run history.
func (s *Service) History() *History { return s.history }

// ErrNoDatabases is returned when an operation needs a named database and
// no registry is configured.
var ErrNoDatabases = errors.New("no database registry configured")

// ----------------------------------------------------------------------------
// Endpoint check
// ----------------------------------------------------------------------------

// Check reads endpoint input from r and probes every valid row. Input shape
// problems fail the run before any connection is attempted.
func (s *Service) Check(ctx context.Context, name string, r io.Reader, batchDialect string) (*Run, error) {
	run := NewRun(RunCheck, name)
	err := s.track(ctx, run, name, func(ctx context.Context) error {
		t, err := ReadTable(r, s.settings.Charset, s.settings.Limits)
		if err != nil {
			return err
		}
		endpoints, skipped, err := ParseEndpoints(t, s.settings.Defaults)
		if err != nil {
			return err
		}
		for _, v := range skipped {
			slog.WarnContext(ctx, "skipping endpoint row", "row", v.Row, "field", v.Field, "value", v.Value)
			run.Skipped = append(run.Skipped, v.Error())
		}

		checker := &Checker{
			Connector:      s.connector,
			Dialect:        batchDialect,
			ConnectTimeout: s.settings.ConnectTimeout,
			RequestTimeout: s.settings.RequestTimeout,
			ErrorMaxLen:    s.settings.ErrorMaxLen,
		}
		run.Checks = checker.Run(ctx, endpoints)
		return nil
	})
	return run, err
}

// ----------------------------------------------------------------------------
// Parameterized query
// ----------------------------------------------------------------------------

// Query runs template once per parameter row against the named database.
func (s *Service) Query(ctx context.Context, database, template string, rows []map[string]any) (*Run, error) {
	run := NewRun(RunQuery, database)
	err := s.track(ctx, run, template, func(ctx context.Context) error {
		return s.withDatabase(ctx, database, func(conn dialect.Conn) error {
			exec := &Executor{Conn: conn, ErrorMaxLen: s.settings.ErrorMaxLen}
			q := exec.Execute(ctx, template, rows)
			run.Query = &q
			return nil
		})
	})
	return run, err
}

// QueryBook runs every entry of the query book read from r against the
// named database, writing each result set to its own CSV file.
func (s *Service) QueryBook(ctx context.Context, database string, r io.Reader) (*Run, error) {
	run := NewRun(RunQueryBook, database)
	err := s.track(ctx, run, database, func(ctx context.Context) error {
		t, err := ReadTable(r, s.settings.Charset, Limits{MaxBytes: s.settings.Limits.MaxBytes})
		if err != nil {
			return err
		}
		entries, err := ParseQueryBook(t, time.Now())
		if err != nil {
			return err
		}
		return s.withDatabase(ctx, database, func(conn dialect.Conn) error {
			run.Book = ExecuteQueryBook(ctx, conn, entries)
			return nil
		})
	})
	return run, err
}

// ----------------------------------------------------------------------------
// Import
// ----------------------------------------------------------------------------

// Import reads mapping input from r and loads every mapping.
func (s *Service) Import(ctx context.Context, name string, r io.Reader) (*Run, error) {
	run := NewRun(RunImport, name)
	err := s.track(ctx, run, name, func(ctx context.Context) error {
		if s.databases == nil {
			return ErrNoDatabases
		}
		t, err := ReadTable(r, s.settings.Charset, Limits{MaxBytes: s.settings.Limits.MaxBytes})
		if err != nil {
			return err
		}
		mappings, err := ParseMappings(t)
		if err != nil {
			return err
		}
		im := &Importer{
			Connector:   s.connector,
			Databases:   s.databases,
			Loader:      s.loader,
			ErrorMaxLen: s.settings.ErrorMaxLen,
		}
		run.Imports = im.Run(ctx, mappings)
		return nil
	})
	return run, err
}

// ----------------------------------------------------------------------------
// Port check
// ----------------------------------------------------------------------------

// PortCheck reads server_ip/port input from r and dials every valid row.
func (s *Service) PortCheck(ctx context.Context, name string, r io.Reader, timeout time.Duration) (*Run, error) {
	run := NewRun(RunPortCheck, name)
	err := s.track(ctx, run, name, func(ctx context.Context) error {
		t, err := ReadTable(r, s.settings.Charset, s.settings.Limits)
		if err != nil {
			return err
		}
		targets, skipped, err := ParsePortTargets(t)
		if err != nil {
			return err
		}
		for _, v := range skipped {
			slog.WarnContext(ctx, "skipping port row", "row", v.Row, "field", v.Field, "value", v.Value)
			run.Skipped = append(run.Skipped, v.Error())
		}
		run.Ports = CheckPorts(ctx, targets, timeout)
		return nil
	})
	return run, err
}

// ----------------------------------------------------------------------------
// Ping
// ----------------------------------------------------------------------------

// PingResult is the outcome of a connection test against a named database.
type PingResult struct {
	Database string        `json:"database"`
	Dialect  dialect.Name  `json:"dialect"`
	Success  bool          `json:"success"`
	Code     string        `json:"code,omitempty"`
	Message  string        `json:"message"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Ping connects to the named database and runs the dialect test statement.
func (s *Service) Ping(ctx context.Context, database string) PingResult {
	start := time.Now()
	res := PingResult{Database: database}

	err := s.withDatabase(ctx, database, func(conn dialect.Conn) error {
		res.Dialect = conn.Dialect()
		_, err := conn.ExecuteQuery(ctx, dialect.TestStatement(conn.Dialect()), nil)
		return err
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Code = FailureCode(err)
		res.Message = dialect.Truncate(err.Error(), s.errorMaxLen())
		slog.WarnContext(ctx, "ping failed", "database", database, "error_code", res.Code, "error", res.Message)
		return res
	}
	res.Success = true
	res.Message = "connection successful"
	return res
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// withDatabase opens the named database, calls fn and always disconnects.
func (s *Service) withDatabase(ctx context.Context, database string, fn func(dialect.Conn) error) error {
	if s.databases == nil {
		return ErrNoDatabases
	}
	name, cfg, err := s.databases.Resolve(database)
	if err != nil {
		return err
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = s.settings.ConnectTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = s.settings.RequestTimeout
	}

	conn, err := s.connector.Create(name, cfg)
	if err != nil {
		return err
	}
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := conn.Disconnect(context.WithoutCancel(ctx)); err != nil {
			slog.DebugContext(ctx, "disconnect failed", "database", database, "error", err)
		}
	}()
	return fn(conn)
}

// track records run in history and the exec log around fn.
func (s *Service) track(ctx context.Context, run *Run, content string, fn func(context.Context) error) error {
	log := logging.WithFields(ctx, "run_id", run.ID, "kind", string(run.Kind))
	if ip, ua := ClientFromContext(ctx); ip != "" {
		log = log.With("client_ip", ip, "user_agent", ua)
	}
	log.InfoContext(ctx, "run started", "name", run.Name)
	s.history.Add(run)

	var logID int64
	if s.execLog != nil {
		id, err := s.execLog.Begin(ctx, ExecEntry{RunID: run.ID, Kind: run.Kind, Name: run.Name, Content: content})
		if err != nil {
			log.WarnContext(ctx, "exec log begin failed", "error", err)
		}
		logID = id
	}

	err := fn(ctx)
	run.Finish(err)
	s.history.Add(run)

	units, failures := run.Summary()
	elapsed := run.FinishedAt.Sub(run.StartedAt)
	if err != nil {
		log.WarnContext(ctx, "run failed", "error", err, "duration_ms", elapsed.Milliseconds())
	} else {
		log.InfoContext(ctx, "run completed",
			"units", units,
			"failures", failures,
			"skipped", len(run.Skipped),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	if s.forwarder != nil {
		s.forwarder.Forward(ctx, run)
	}

	if s.execLog != nil && logID != 0 {
		out := ExecOutcome{Count: units, Code: "success", Elapsed: elapsed}
		switch {
		case err != nil:
			out.Code, out.Message = "failure", dialect.Truncate(err.Error(), s.errorMaxLen())
		case failures > 0:
			out.Code, out.Message = "partial", fmt.Sprintf("%d of %d failed", failures, units)
		}
		if lerr := s.execLog.End(context.WithoutCancel(ctx), logID, out); lerr != nil {
			log.WarnContext(ctx, "exec log end failed", "error", lerr)
		}
	}
	return err
}

func (s *Service) errorMaxLen() int {
	if s.settings.ErrorMaxLen > 0 {
		return s.settings.ErrorMaxLen
	}
	return dialect.MaxErrorLen
}

// ParseParams decodes query parameters from CSV (first line header) or, when
// the content starts with '[', a JSON array of objects.
func ParseParams(data []byte, charset string, lim Limits) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		return decodeJSONParams(trimmed)
	}
	t, err := ReadTable(bytes.NewReader(data), charset, lim)
	if err != nil {
		return nil, err
	}
	return ParamRows(t), nil
}

// TemplateName returns a short label for a template, used as run name.
func TemplateName(template string) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(template), "\n", 2)[0])
	return dialect.Truncate(line, 80)
}
