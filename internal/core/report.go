package core

// report.go flattens results into tabular records for any Sink.
//
// Column sets:
//   - CheckReportHeader: one row per probed endpoint
//   - ImportReportHeader: one row per mapping
//   - QueryReportHeader: one row per parameter group (summary only; the full
//     result rows go to the JSON log written by WriteQueryLog)

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Sink receives report records. The first record is always the header.
type Sink interface {
	Emit(record []string) error
}

// CSVSink writes records as CSV.
type CSVSink struct {
	w *csv.Writer
}

// NewCSVSink wraps w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Emit writes one record.
func (s *CSVSink) Emit(record []string) error {
	return s.w.Write(record)
}

// Flush flushes buffered records and returns any write error.
func (s *CSVSink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

// MemorySink collects records in memory.
type MemorySink struct {
	Records [][]string
}

// Emit appends a copy of record.
func (s *MemorySink) Emit(record []string) error {
	s.Records = append(s.Records, append([]string(nil), record...))
	return nil
}

var CheckReportHeader = []string{
	"timestamp", "endpoint", "port", "database", "dialect", "username", "outcome",
	"error_code", "error_msg", "elapsed_seconds", "select_ok", "insert_ok", "delete_ok",
	"insert_query", "delete_query",
}

var ImportReportHeader = []string{
	"mapping_database", "mapping_table", "rows_attempted", "rows_inserted", "generated_sql", "first_error",
}

var QueryReportHeader = []string{
	"row", "parameters", "row_count", "error",
}

// Outcome values used in reports.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CheckRecord flattens one CheckResult.
func CheckRecord(r CheckResult) []string {
	outcome := OutcomeFailure
	if r.Success {
		outcome = OutcomeSuccess
	}
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.Endpoint,
		r.Port,
		r.Database,
		string(r.Dialect),
		r.Username,
		outcome,
		r.ErrorCode,
		r.ErrorMsg,
		strconv.FormatFloat(r.Elapsed.Seconds(), 'f', 3, 64),
		strconv.FormatBool(r.Permissions.Select),
		strconv.FormatBool(r.Permissions.Insert),
		strconv.FormatBool(r.Permissions.Delete),
		r.Permissions.InsertQuery,
		r.Permissions.DeleteQuery,
	}
}

// ImportRecord flattens one ImportResult.
func ImportRecord(r ImportResult) []string {
	return []string{
		r.Mapping.Database,
		r.Mapping.Table,
		strconv.Itoa(r.Attempted),
		strconv.Itoa(r.Inserted),
		r.GeneratedSQL,
		r.FirstError,
	}
}

// QueryRecord flattens one QueryResultGroup; row is 1-based.
func QueryRecord(row int, g QueryResultGroup) []string {
	params, err := json.Marshal(g.Parameters)
	if err != nil {
		params = []byte(fmt.Sprint(g.Parameters))
	}
	return []string{strconv.Itoa(row), string(params), strconv.FormatInt(g.RowCount, 10), g.Error}
}

// EmitCheckReport writes the header and one record per result.
func EmitCheckReport(s Sink, results []CheckResult) error {
	if err := s.Emit(CheckReportHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := s.Emit(CheckRecord(r)); err != nil {
			return err
		}
	}
	return nil
}

// EmitImportReport writes the header and one record per result.
func EmitImportReport(s Sink, results []ImportResult) error {
	if err := s.Emit(ImportReportHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := s.Emit(ImportRecord(r)); err != nil {
			return err
		}
	}
	return nil
}

// EmitQueryReport writes the header and one record per group.
func EmitQueryReport(s Sink, run QueryRun) error {
	if err := s.Emit(QueryReportHeader); err != nil {
		return err
	}
	for i, g := range run.Groups {
		if err := s.Emit(QueryRecord(i+1, g)); err != nil {
			return err
		}
	}
	return nil
}

// EmitRows writes a plain result set: columns, then one record per row.
func EmitRows(s Sink, columns []string, rows []map[string]any) error {
	if err := s.Emit(columns); err != nil {
		return err
	}
	rec := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			rec[i] = CellString(row[c])
		}
		if err := s.Emit(rec); err != nil {
			return err
		}
	}
	return nil
}

// CellString renders a result value for CSV output. NULL becomes empty.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSVFile creates path (and its directory) and fills it via emit.
func WriteCSVFile(path string, emit func(Sink) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	sink := NewCSVSink(f)
	if err := emit(sink); err != nil {
		return err
	}
	if err := sink.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

// WriteQueryLog writes run as indented JSON to w.
func WriteQueryLog(w io.Writer, run QueryRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// ReportName returns a timestamped file name such as check_20240115_103000.csv.
func ReportName(kind string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", kind, t.Format("20060102_150405"), ext)
}
