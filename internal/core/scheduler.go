package core

// scheduler.go runs fleet checks on a cron schedule.
//
// Each tick reads the endpoint file fresh, so edits take effect on the next
// run. A tick that starts while the previous one is still running is
// skipped. Failures are logged; the scheduler keeps going.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduledCheck describes one recurring endpoint check.
type ScheduledCheck struct {
	Spec      string // standard 5-field cron expression or @every/@daily descriptor
	File      string // endpoint input
	ReportDir string
	Dialect   string
}

// StartScheduler registers jobs and starts the cron loop. The loop stops when
// ctx is cancelled; the returned channel closes once running jobs finish.
func (s *Service) StartScheduler(ctx context.Context, jobs ...ScheduledCheck) (<-chan struct{}, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.Spec, func() { s.runScheduledCheck(ctx, job) }); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", job.Spec, err)
		}
		slog.Info("scheduled check registered", "spec", job.Spec, "file", job.File)
	}

	c.Start()
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("scheduler stopped")
		close(done)
	}()
	return done, nil
}

func (s *Service) runScheduledCheck(ctx context.Context, job ScheduledCheck) {
	f, err := os.Open(job.File)
	if err != nil {
		slog.Error("scheduled check: open input", "file", job.File, "error", err)
		return
	}
	defer f.Close()

	run, err := s.Check(ctx, "scheduled:"+filepath.Base(job.File), f, job.Dialect)
	if err != nil {
		slog.Error("scheduled check failed", "run_id", run.ID, "error", err)
		return
	}

	path, err := WriteRunReport(job.ReportDir, run)
	if err != nil {
		slog.Error("scheduled check: write report", "run_id", run.ID, "error", err)
		return
	}
	slog.Info("scheduled check report written", "run_id", run.ID, "path", path)
}

// WriteRunReport writes run's CSV report into dir and returns its path.
func WriteRunReport(dir string, run *Run) (string, error) {
	ts := run.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(dir, ReportName(string(run.Kind), ts, "csv"))
	if err := WriteCSVFile(path, func(sink Sink) error { return EmitRunReport(sink, run) }); err != nil {
		return "", err
	}
	return path, nil
}

// EmitRunReport writes the report matching run.Kind.
func EmitRunReport(sink Sink, run *Run) error {
	switch run.Kind {
	case RunCheck:
		return EmitCheckReport(sink, run.Checks)
	case RunImport:
		return EmitImportReport(sink, run.Imports)
	case RunPortCheck:
		return EmitPortReport(sink, run.Ports)
	case RunQuery:
		if run.Query == nil {
			return EmitQueryReport(sink, QueryRun{})
		}
		return EmitQueryReport(sink, *run.Query)
	case RunQueryBook:
		if err := sink.Emit([]string{"sql", "result_filepath", "row_count", "error"}); err != nil {
			return err
		}
		for _, b := range run.Book {
			if err := sink.Emit([]string{b.Entry.SQL, b.Entry.ResultPath, fmt.Sprint(b.RowCount), b.Error}); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown run kind %q", run.Kind)
}
