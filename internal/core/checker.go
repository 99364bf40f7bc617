package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// Checker probes a list of endpoints one at a time.
type Checker struct {
	Connector      Connector
	Dialect        string // batch dialect; "auto" or empty defers to each row
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	ErrorMaxLen    int
	Now            func() time.Time
}

// ResolveDialect picks the dialect for one endpoint: the row's own declared
// dialect, then the batch dialect, then mssql.
func ResolveDialect(rowDialect, batchDialect string) string {
	for _, d := range []string{rowDialect, batchDialect} {
		d = strings.TrimSpace(d)
		if d != "" && !strings.EqualFold(d, AutoDialect) {
			return d
		}
	}
	return string(dialect.MSSQLName)
}

// Run checks every endpoint in order. A failing endpoint never stops the batch.
func (c *Checker) Run(ctx context.Context, endpoints []Endpoint) []CheckResult {
	results := make([]CheckResult, 0, len(endpoints))
	for _, ep := range endpoints {
		if ctx.Err() != nil {
			break
		}
		results = append(results, c.CheckOne(ctx, ep))
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	slog.InfoContext(ctx, "endpoint check completed", "endpoints", len(results), "failed", failed)
	return results
}

// CheckOne connects to ep, probes permissions and disconnects.
func (c *Checker) CheckOne(ctx context.Context, ep Endpoint) CheckResult {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	start := time.Now()

	name := ResolveDialect(ep.Dialect, c.Dialect)
	res := CheckResult{
		Timestamp: now(),
		Endpoint:  ep.Address,
		Port:      ep.Port,
		Database:  ep.Database,
		Dialect:   dialect.Name(strings.ToLower(name)),
		Username:  ep.User,
	}
	if n, err := dialect.Normalize(name); err == nil {
		res.Dialect = n
	}

	fail := func(err error) CheckResult {
		res.Success = false
		res.ErrorCode = FailureCode(err)
		res.ErrorMsg = dialect.Truncate(err.Error(), c.errorMaxLen())
		res.Elapsed = time.Since(start)
		slog.WarnContext(ctx, "endpoint check failed",
			"endpoint", ep.Addr(),
			"database", ep.Database,
			"error_code", res.ErrorCode,
			"error", res.ErrorMsg,
		)
		return res
	}

	conn, err := c.Connector.Create(name, dialect.Config{
		Host:           ep.Address,
		Port:           ep.Port,
		Database:       ep.Database,
		User:           ep.User,
		Password:       ep.Password,
		ConnectTimeout: c.ConnectTimeout,
		RequestTimeout: c.RequestTimeout,
	})
	if err != nil {
		return fail(err)
	}
	if err := conn.Connect(ctx); err != nil {
		return fail(err)
	}
	defer func() {
		if err := conn.Disconnect(context.WithoutCancel(ctx)); err != nil {
			slog.DebugContext(ctx, "disconnect failed", "endpoint", ep.Addr(), "error", err)
		}
	}()

	res.Permissions = conn.CheckPermissions(ctx, ep.Test)
	res.Success = true
	res.Elapsed = time.Since(start)

	slog.DebugContext(ctx, "endpoint checked",
		"endpoint", ep.Addr(),
		"select", res.Permissions.Select,
		"insert", res.Permissions.Insert,
		"delete", res.Permissions.Delete,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res
}

func (c *Checker) errorMaxLen() int {
	if c.ErrorMaxLen > 0 {
		return c.ErrorMaxLen
	}
	return dialect.MaxErrorLen
}

// FailureCode returns the code recorded for a failed unit. Configuration
// problems get ECONFIG; everything else defers to dialect.ErrorCode.
func FailureCode(err error) string {
	var ce *dialect.ConfigError
	if errors.As(err, &ce) {
		return "ECONFIG"
	}
	return dialect.ErrorCode(err)
}
