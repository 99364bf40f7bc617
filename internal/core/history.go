package core

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunKind identifies what a run did.
type RunKind string

const (
	RunCheck     RunKind = "check"
	RunQuery     RunKind = "query"
	RunImport    RunKind = "import"
	RunQueryBook RunKind = "querybook"
	RunPortCheck RunKind = "portcheck"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned for unknown or evicted run ids.
var ErrRunNotFound = errors.New("run not found")

// DefaultHistoryLimit is the number of runs kept when no limit is configured.
const DefaultHistoryLimit = 100

// Run is one invocation of a fleet operation and everything it produced.
// Only the field matching Kind is populated.
type Run struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	Name       string     `json:"name,omitempty"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`

	// Skipped lists rows rejected by validation before any connection.
	Skipped []string `json:"skipped,omitempty"`

	Checks  []CheckResult  `json:"checks,omitempty"`
	Query   *QueryRun      `json:"query,omitempty"`
	Imports []ImportResult `json:"imports,omitempty"`
	Book    []BookResult   `json:"book,omitempty"`
	Ports   []PortResult   `json:"ports,omitempty"`
}

// NewRun returns a running Run with a fresh id.
func NewRun(kind RunKind, name string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Name:      name,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
}

// Finish marks r completed, or failed when err is non-nil.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.FinishedAt = &now
	r.Status = StatusCompleted
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// Summary returns the unit count and failure count for the run.
func (r *Run) Summary() (units, failures int) {
	switch r.Kind {
	case RunCheck:
		for _, c := range r.Checks {
			units++
			if !c.Success {
				failures++
			}
		}
	case RunQuery:
		if r.Query != nil {
			units, failures = len(r.Query.Groups), r.Query.ErrorCount
		}
	case RunImport:
		for _, im := range r.Imports {
			units++
			if !im.Success {
				failures++
			}
		}
	case RunQueryBook:
		for _, b := range r.Book {
			units++
			if b.Error != "" {
				failures++
			}
		}
	case RunPortCheck:
		for _, p := range r.Ports {
			units++
			if !p.Connected {
				failures++
			}
		}
	}
	return units, failures
}

// History keeps the most recent runs in memory, newest first.
type History struct {
	mu    sync.RWMutex
	limit int
	order []string
	runs  map[string]*Run
}

// NewHistory creates a history holding at most limit runs.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, runs: make(map[string]*Run)}
}

// Add stores a snapshot of r, replacing any earlier snapshot with the same
// id and evicting the oldest run when full.
func (h *History) Add(r *Run) {
	snap := *r

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.runs[r.ID]; !exists {
		h.order = append([]string{r.ID}, h.order...)
	}
	h.runs[r.ID] = &snap

	for len(h.order) > h.limit {
		oldest := h.order[len(h.order)-1]
		h.order = h.order[:len(h.order)-1]
		delete(h.runs, oldest)
	}
}

// Get returns the run with id.
func (h *History) Get(id string) (*Run, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r, nil
}

// List returns runs newest first.
func (h *History) List() []*Run {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Run, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.runs[id])
	}
	return out
}

// Len returns the number of stored runs.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}
