package core

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// Executor runs one @key template once per parameter row on an open
// connection. The caller owns connect and disconnect.
type Executor struct {
	Conn        dialect.Conn
	ErrorMaxLen int
}

// Execute runs template for each row in order. A failing row is recorded in
// its group and execution continues with the next row.
func (e *Executor) Execute(ctx context.Context, template string, rows []map[string]any) QueryRun {
	start := time.Now()
	run := QueryRun{Template: template, Groups: make([]QueryResultGroup, 0, len(rows))}

	maxLen := e.ErrorMaxLen
	if maxLen <= 0 {
		maxLen = dialect.MaxErrorLen
	}

	for i, params := range rows {
		group := QueryResultGroup{Parameters: params}

		res, err := e.Conn.ExecuteQuery(ctx, template, params)
		if err != nil {
			group.Error = dialect.Truncate(err.Error(), maxLen)
			run.ErrorCount++
			slog.WarnContext(ctx, "parameter row failed", "row", i+1, "error", group.Error)
		} else {
			group.Columns = res.Columns
			group.Rows = res.Rows
			group.RowCount = res.RowCount
			run.TotalRows += res.RowCount
		}
		run.Groups = append(run.Groups, group)
	}

	run.Elapsed = time.Since(start)
	slog.InfoContext(ctx, "template executed",
		"parameter_rows", len(rows),
		"total_rows", run.TotalRows,
		"errors", run.ErrorCount,
		"duration_ms", run.Elapsed.Milliseconds(),
	)
	return run
}

// ParamRows converts tabular input to parameter rows keyed by sanitized
// header. Cell text is passed through unchanged so values such as "007"
// keep their leading zeros.
func ParamRows(t *Table) []map[string]any {
	out := make([]map[string]any, 0, len(t.Records))
	for _, rec := range t.Records {
		row := make(map[string]any, len(t.Header))
		for _, h := range t.Header {
			if h == "" {
				continue
			}
			row[SanitizeIdentifier(h)] = rec[h]
		}
		out = append(out, row)
	}
	return out
}

// decodeJSONParams decodes a JSON array of flat objects. Whole numbers
// become int64 and other numbers float64.
func decodeJSONParams(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ValidationError{Message: "invalid JSON parameters", Err: err}
	}
	for _, row := range raw {
		for k, v := range row {
			n, ok := v.(json.Number)
			if !ok {
				continue
			}
			if i, err := n.Int64(); err == nil {
				row[k] = i
			} else if f, err := n.Float64(); err == nil {
				row[k] = f
			}
		}
	}
	return raw, nil
}
