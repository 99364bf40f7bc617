package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dbfleet/internal/core"
	"github.com/JonMunkholm/dbfleet/internal/dialect"
	mw "github.com/JonMunkholm/dbfleet/internal/web/middleware"
)

// multipartMemory is the in-memory part of a multipart upload; the rest
// spills to temp files.
const multipartMemory = 1 << 20

// ----------------------------------------------------------------------------
// Health and status
// ----------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Runs      core.RunLimiterStatus `json:"runs"`
	History   int                   `json:"history"`
	Databases int                   `json:"databases"`
	ExecLog   bool                  `json:"exec_log"`
	Schedule  string                `json:"schedule,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Runs:     s.limiter.Status(),
		History:  s.service.History().Len(),
		ExecLog:  s.cfg.ExecLog.Enabled(),
		Schedule: s.cfg.Schedule.Cron,
	}
	if s.registry != nil {
		resp.Databases = len(s.registry.Names())
	}
	writeJSON(w, http.StatusOK, resp)
}

// ----------------------------------------------------------------------------
// Named databases
// ----------------------------------------------------------------------------

// DatabaseInfo describes a registry entry without its credentials.
type DatabaseInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     string `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.respondError(w, r, core.ErrNoDatabases, http.StatusServiceUnavailable)
		return
	}

	names := s.registry.Names()
	out := make([]DatabaseInfo, 0, len(names))
	for _, name := range names {
		db, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, DatabaseInfo{
			Name:     name,
			Type:     strings.ToLower(db.Type),
			Host:     db.Address(),
			Port:     string(db.Port),
			Database: db.Database,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.registry == nil {
		s.respondError(w, r, core.ErrNoDatabases, http.StatusServiceUnavailable)
		return
	}
	if _, ok := s.registry.Get(name); !ok {
		s.respondError(w, r, fmt.Errorf("unknown database %q", name), http.StatusNotFound)
		return
	}

	var res core.PingResult
	err := s.limiter.Do(r.Context(), func(ctx context.Context) error {
		res = s.service.Ping(ctx, name)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// ----------------------------------------------------------------------------
// Fleet runs
// ----------------------------------------------------------------------------

// handleCheck runs an endpoint check. The body is endpoint CSV, either raw
// or as the multipart field "file". ?dialect= sets the batch dialect.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	batch := r.URL.Query().Get("dialect")
	if batch == "" {
		batch = core.AutoDialect
	}
	if batch != core.AutoDialect {
		if _, err := dialect.Normalize(batch); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	}

	body, filename, err := s.inputBody(w, r)
	if err != nil {
		s.respondError(w, r, err, inputStatus(err))
		return
	}
	defer body.Close()

	s.startRun(w, r, func(ctx context.Context) (*core.Run, error) {
		return s.service.Check(ctx, runName(r, filename, "check"), body, batch)
	})
}

// QueryRequest is the body of POST /api/query. Parameters may be given as a
// JSON array of objects or as CSV text; with neither the template runs once.
type QueryRequest struct {
	Database      string          `json:"database"`
	Template      string          `json:"template"`
	Parameters    json.RawMessage `json:"parameters,omitempty"`
	ParametersCSV string          `json:"parameters_csv,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, &core.ValidationError{Field: "body", Message: "invalid JSON request", Err: err}, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Database) == "" || strings.TrimSpace(req.Template) == "" {
		s.respondError(w, r, &dialect.ConfigError{Missing: missingQueryFields(req), Message: "database and template are required"}, http.StatusBadRequest)
		return
	}

	rows, err := s.queryParams(req)
	if err != nil {
		s.respondError(w, r, err, inputStatus(err))
		return
	}

	s.startRun(w, r, func(ctx context.Context) (*core.Run, error) {
		return s.service.Query(ctx, req.Database, req.Template, rows)
	})
}

func (s *Server) queryParams(req QueryRequest) ([]map[string]any, error) {
	lim := s.limits()
	switch {
	case len(bytes.TrimSpace(req.Parameters)) > 0 && string(bytes.TrimSpace(req.Parameters)) != "null":
		return core.ParseParams(req.Parameters, "", lim)
	case strings.TrimSpace(req.ParametersCSV) != "":
		return core.ParseParams([]byte(req.ParametersCSV), "", lim)
	default:
		return []map[string]any{{}}, nil
	}
}

func missingQueryFields(req QueryRequest) []string {
	var missing []string
	if strings.TrimSpace(req.Database) == "" {
		missing = append(missing, "database")
	}
	if strings.TrimSpace(req.Template) == "" {
		missing = append(missing, "template")
	}
	return missing
}

// handleImport runs an import mapping given as CSV body or multipart "file".
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, filename, err := s.inputBody(w, r)
	if err != nil {
		s.respondError(w, r, err, inputStatus(err))
		return
	}
	defer body.Close()

	s.startRun(w, r, func(ctx context.Context) (*core.Run, error) {
		return s.service.Import(ctx, runName(r, filename, "import"), body)
	})
}

// handlePortCheck probes the host/port rows of the body. ?timeout= is a Go
// duration bounding each dial.
func (s *Server) handlePortCheck(w http.ResponseWriter, r *http.Request) {
	timeout := core.DefaultPortTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.respondError(w, r, &core.ValidationError{Field: "timeout", Value: v, Message: "invalid timeout"}, http.StatusBadRequest)
			return
		}
		timeout = d
	}

	body, filename, err := s.inputBody(w, r)
	if err != nil {
		s.respondError(w, r, err, inputStatus(err))
		return
	}
	defer body.Close()

	s.startRun(w, r, func(ctx context.Context) (*core.Run, error) {
		return s.service.PortCheck(ctx, runName(r, filename, "portcheck"), body, timeout)
	})
}

// startRun executes fn under the run limiter and writes the stored run.
// A failed run is reported with its id so the client can fetch it later.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request, fn func(context.Context) (*core.Run, error)) {
	var run *core.Run
	ctx := core.WithClient(r.Context(), r.RemoteAddr, r.UserAgent())
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		run, err = fn(ctx)
		return err
	})

	runID := ""
	if run != nil {
		runID = run.ID
		w.Header().Set(mw.RunIDHeader, runID)
	}
	if err != nil {
		s.respondRunError(w, r, err, statusFor(err), runID)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ----------------------------------------------------------------------------
// Run history
// ----------------------------------------------------------------------------

// RunSummary is one line of GET /api/runs.
type RunSummary struct {
	ID         string         `json:"id"`
	Kind       core.RunKind   `json:"kind"`
	Name       string         `json:"name,omitempty"`
	Status     core.RunStatus `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Units      int            `json:"units"`
	Failures   int            `json:"failures"`
	Error      string         `json:"error,omitempty"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	kind := core.RunKind(r.URL.Query().Get("kind"))

	runs := s.service.History().List()
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		if kind != "" && run.Kind != kind {
			continue
		}
		units, failures := run.Summary()
		out = append(out, RunSummary{
			ID:         run.ID,
			Kind:       run.Kind,
			Name:       run.Name,
			Status:     run.Status,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Units:      units,
			Failures:   failures,
			Error:      run.Error,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	sink := core.NewCSVSink(&buf)
	if err := core.EmitRunReport(sink, run); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if err := sink.Flush(); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	filename := core.ReportName(string(run.Kind), run.StartedAt, "csv")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Write(buf.Bytes())
}

func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RunPage(run).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*core.Run, bool) {
	run, err := s.service.History().Get(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return nil, false
	}
	return run, true
}

// ----------------------------------------------------------------------------
// Input helpers
// ----------------------------------------------------------------------------

// inputBody returns the tabular input of a request: the multipart field
// "file" when the request is multipart, otherwise the raw body. Size is
// capped at the configured input limit.
func (s *Server) inputBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	limit := s.maxBodyBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "", nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", fmt.Errorf("%w: limit is %d bytes", core.ErrInputTooLarge, s.cfg.Fleet.MaxBytes)
		}
		return nil, "", &core.ValidationError{Field: "body", Message: "invalid multipart form", Err: err}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", &core.ValidationError{Field: "file", Message: "missing required file field", Err: err}
	}
	return file, header.Filename, nil
}

// maxBodyBytes leaves headroom over the data limit for multipart framing;
// ReadTable enforces the exact limit.
func (s *Server) maxBodyBytes() int64 {
	if s.cfg.Fleet.MaxBytes <= 0 {
		return 64 << 20
	}
	return s.cfg.Fleet.MaxBytes + multipartMemory
}

func (s *Server) limits() core.Limits {
	return core.Limits{MaxRows: s.cfg.Fleet.MaxRows, MaxBytes: s.cfg.Fleet.MaxBytes}
}

// inputStatus is statusFor with unmapped input problems reported as 400.
func inputStatus(err error) int {
	if status := statusFor(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadRequest
}

// runName prefers ?name=, then the uploaded file name, then fallback.
func runName(r *http.Request, filename, fallback string) string {
	if n := strings.TrimSpace(r.URL.Query().Get("name")); n != "" {
		return n
	}
	if filename != "" {
		return filename
	}
	return fallback
}
