package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// BookEntry is one statement of a query book and where its rows go.
type BookEntry struct {
	SQL          string `json:"sql"`
	ResultPath   string `json:"result_filepath"`
	OriginalPath string `json:"original_filepath,omitempty"`
}

// BookResult is the outcome of one BookEntry.
type BookResult struct {
	Entry    BookEntry     `json:"entry"`
	RowCount int64         `json:"row_count"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

var (
	ColBookSQL  = Column{Name: "sql"}
	ColBookPath = Column{Name: "result_filepath"}
)

// ParseQueryBook reads SQL/result_filepath rows. Result paths have their
// ${DATE:fmt} variables expanded against now. Rows missing either value are
// skipped.
func ParseQueryBook(t *Table, now time.Time) ([]BookEntry, error) {
	if _, err := ValidateHeaders(t.Header, []Column{ColBookSQL, ColBookPath}); err != nil {
		return nil, err
	}
	var out []BookEntry
	for _, rec := range t.Records {
		sql := recordValue(t.Header, rec, ColBookSQL)
		path := recordValue(t.Header, rec, ColBookPath)
		if sql == "" || path == "" {
			continue
		}
		out = append(out, BookEntry{SQL: sql, ResultPath: ExpandPathVars(path, now), OriginalPath: path})
	}
	return out, nil
}

// ExecuteQueryBook executes each entry on conn and writes its rows as CSV to the
// entry's result path. A failing entry is recorded and the book continues.
func ExecuteQueryBook(ctx context.Context, conn dialect.Conn, entries []BookEntry) []BookResult {
	out := make([]BookResult, 0, len(entries))
	for i, e := range entries {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		r := BookResult{Entry: e}

		res, err := conn.ExecuteQuery(ctx, e.SQL, nil)
		if err == nil {
			r.RowCount = res.RowCount
			err = WriteCSVFile(e.ResultPath, func(s Sink) error {
				return EmitRows(s, res.Columns, res.Rows)
			})
		}
		r.Elapsed = time.Since(start)
		if err != nil {
			r.Error = dialect.Truncate(err.Error(), dialect.MaxErrorLen)
			slog.WarnContext(ctx, "query book entry failed", "entry", i+1, "error", r.Error)
		} else {
			slog.InfoContext(ctx, "query book entry written", "entry", i+1, "rows", r.RowCount, "path", e.ResultPath)
		}
		out = append(out, r)
	}
	return out
}
