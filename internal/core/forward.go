package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultForwardTimeout bounds one POST to the collector.
const DefaultForwardTimeout = 3 * time.Second

// Forwarder receives the records of a finished check or port check run.
// Implementations log their own failures; a run never fails because of them.
type Forwarder interface {
	Forward(ctx context.Context, run *Run)
}

// HTTPForwarder posts run records to a collector API. A batch is registered
// with POST {BaseURL}/master, whose insertId response becomes the
// check_unit_id of every record. Records go to /db for endpoint checks and
// /telnet for port checks. Without a unit id no records are sent.
type HTTPForwarder struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration

	// Origin is reported as pc_ip. Empty selects the first non-loopback
	// IPv4 address of this host.
	Origin string
}

// NewHTTPForwarder returns a forwarder for baseURL, or nil when baseURL is
// empty.
func NewHTTPForwarder(baseURL string) *HTTPForwarder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	return &HTTPForwarder{BaseURL: baseURL, Client: &http.Client{}, Timeout: DefaultForwardTimeout}
}

type masterBody struct {
	CheckMethod string `json:"check_method"`
	PCIP        string `json:"pc_ip"`
}

type dbBody struct {
	CheckUnitID   int64  `json:"check_unit_id"`
	ServerIP      string `json:"server_ip"`
	Port          string `json:"port"`
	DBName        string `json:"db_name"`
	DBType        string `json:"db_type"`
	DBUserID      string `json:"db_userid"`
	ResultCode    bool   `json:"result_code"`
	ErrorCode     string `json:"error_code"`
	ErrorMsg      string `json:"error_msg"`
	CollapsedTime string `json:"collapsed_time"`
	PermSelect    bool   `json:"perm_select"`
	PermInsert    bool   `json:"perm_insert"`
	PermDelete    bool   `json:"perm_delete"`
}

type telnetBody struct {
	CheckUnitID   int64  `json:"check_unit_id"`
	ServerIP      string `json:"server_ip"`
	Port          string `json:"port"`
	ResultCode    bool   `json:"result_code"`
	ErrorCode     string `json:"error_code"`
	ErrorMsg      string `json:"error_msg"`
	CollapsedTime string `json:"collapsed_time"`
}

// Forward implements Forwarder. Runs of other kinds, failed runs and runs
// without records are ignored.
func (f *HTTPForwarder) Forward(ctx context.Context, run *Run) {
	if f == nil || run == nil || run.Status != StatusCompleted {
		return
	}

	var method, path string
	var bodies []any
	switch run.Kind {
	case RunCheck:
		method, path = "DB_CONN", "/db"
		for _, c := range run.Checks {
			bodies = append(bodies, &dbBody{
				ServerIP:      c.Endpoint,
				Port:          c.Port,
				DBName:        c.Database,
				DBType:        string(c.Dialect),
				DBUserID:      c.Username,
				ResultCode:    c.Success,
				ErrorCode:     c.ErrorCode,
				ErrorMsg:      c.ErrorMsg,
				CollapsedTime: seconds(c.Elapsed),
				PermSelect:    c.Permissions.Select,
				PermInsert:    c.Permissions.Insert,
				PermDelete:    c.Permissions.Delete,
			})
		}
	case RunPortCheck:
		method, path = "TELNET", "/telnet"
		for _, p := range run.Ports {
			bodies = append(bodies, &telnetBody{
				ServerIP:      p.Address,
				Port:          p.Port,
				ResultCode:    p.Connected,
				ErrorCode:     p.ErrorCode,
				ErrorMsg:      p.ErrorMsg,
				CollapsedTime: seconds(p.Elapsed),
			})
		}
	default:
		return
	}
	if len(bodies) == 0 {
		return
	}

	log := slog.With("run_id", run.ID, "collector", f.BaseURL)

	var master struct {
		InsertID int64 `json:"insertId"`
	}
	if err := f.post(ctx, "/master", masterBody{CheckMethod: method, PCIP: f.origin()}, &master); err != nil {
		log.WarnContext(ctx, "result forward failed", "path", "/master", "error", err)
		return
	}
	if master.InsertID == 0 {
		log.WarnContext(ctx, "collector returned no check unit id")
		return
	}

	failed := 0
	for _, b := range bodies {
		switch v := b.(type) {
		case *dbBody:
			v.CheckUnitID = master.InsertID
		case *telnetBody:
			v.CheckUnitID = master.InsertID
		}
		if err := f.post(ctx, path, b, nil); err != nil {
			failed++
			log.WarnContext(ctx, "result forward failed", "path", path, "error", err)
		}
	}
	log.DebugContext(ctx, "results forwarded", "unit_id", master.InsertID, "sent", len(bodies)-failed, "failed", failed)
}

func (f *HTTPForwarder) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultForwardTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (f *HTTPForwarder) origin() string {
	if f.Origin != "" {
		return f.Origin
	}
	return localIPv4()
}

func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() {
			if ip4 := ipn.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return "unknown"
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}
