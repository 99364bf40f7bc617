package core

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// DefaultPortTimeout bounds a single TCP reachability check.
const DefaultPortTimeout = 3 * time.Second

// PortResult is the outcome of one TCP reachability check.
type PortResult struct {
	Timestamp time.Time     `json:"timestamp"`
	Address   string        `json:"server_ip"`
	Port      string        `json:"port"`
	Hostname  string        `json:"hostname,omitempty"`
	Connected bool          `json:"connected"`
	ErrorCode string        `json:"error_code,omitempty"`
	ErrorMsg  string        `json:"error_msg,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ProbePort dials host:port over TCP and closes the connection at once.
func ProbePort(ctx context.Context, host, port string, timeout time.Duration) PortResult {
	if timeout <= 0 {
		timeout = DefaultPortTimeout
	}
	res := PortResult{Timestamp: time.Now(), Address: host, Port: port}
	start := time.Now()

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	res.Elapsed = time.Since(start)
	if err != nil {
		res.ErrorCode = dialect.NetErrorCode(err)
		if res.ErrorCode == "" {
			res.ErrorCode = "ERROR"
		}
		res.ErrorMsg = dialect.Truncate(err.Error(), dialect.MaxErrorLen)
		if res.ErrorCode == "ETIMEDOUT" {
			res.ErrorMsg = fmt.Sprintf("connection timed out in %dms", timeout.Milliseconds())
		}
		return res
	}
	conn.Close()
	res.Connected = true
	return res
}

// PortTarget is one row of port check input.
type PortTarget struct {
	Row      int
	Address  string
	Port     string
	Hostname string
}

var ColHostname = Column{Name: "hostname"}

// ParsePortTargets reads server_ip/port rows. Rows with a bad address or
// port are returned in skipped.
func ParsePortTargets(t *Table) (targets []PortTarget, skipped []*ValidationError, err error) {
	if _, err := ValidateHeaders(t.Header, []Column{ColAddress, ColPort}); err != nil {
		return nil, nil, err
	}
	for i, rec := range t.Records {
		pt := PortTarget{
			Row:      i + 1,
			Address:  recordValue(t.Header, rec, ColAddress),
			Port:     recordValue(t.Header, rec, ColPort),
			Hostname: recordValue(t.Header, rec, ColHostname),
		}
		if verr := ValidateEndpoint(Endpoint{Row: pt.Row, Address: pt.Address, Port: pt.Port}); verr != nil {
			skipped = append(skipped, verr.(*ValidationError))
			continue
		}
		targets = append(targets, pt)
	}
	return targets, skipped, nil
}

// CheckPorts probes each target in order.
func CheckPorts(ctx context.Context, targets []PortTarget, timeout time.Duration) []PortResult {
	out := make([]PortResult, 0, len(targets))
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		r := ProbePort(ctx, t.Address, t.Port, timeout)
		r.Hostname = t.Hostname
		if !r.Connected {
			slog.WarnContext(ctx, "port unreachable", "endpoint", net.JoinHostPort(t.Address, t.Port), "error_code", r.ErrorCode)
		}
		out = append(out, r)
	}
	return out
}

var PortReportHeader = []string{
	"timestamp", "server_ip", "port", "hostname", "outcome", "error_code", "error_msg", "elapsed_seconds",
}

// PortRecord flattens one PortResult.
func PortRecord(r PortResult) []string {
	outcome := OutcomeFailure
	if r.Connected {
		outcome = OutcomeSuccess
	}
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.Address,
		r.Port,
		r.Hostname,
		outcome,
		r.ErrorCode,
		r.ErrorMsg,
		strconv.FormatFloat(r.Elapsed.Seconds(), 'f', 3, 64),
	}
}

// EmitPortReport writes the header and one record per result.
func EmitPortReport(s Sink, results []PortResult) error {
	if err := s.Emit(PortReportHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := s.Emit(PortRecord(r)); err != nil {
			return err
		}
	}
	return nil
}
