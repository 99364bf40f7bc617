package dialect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sijms/go-ora/v2/network"
)

// MaxErrorLen bounds error text stored in reports.
const MaxErrorLen = 500

// ConfigError reports an unsupported dialect or an incomplete endpoint
// configuration. It is fatal to the unit being configured only.
type ConfigError struct {
	Dialect string
	Missing []string
	Message string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s config: missing required fields: %s", e.Dialect, strings.Join(e.Missing, ", "))
	}
	if e.Dialect != "" {
		return fmt.Sprintf("%s config: %s", e.Dialect, e.Message)
	}
	return "config: " + e.Message
}

// ConnectionError is a network or authentication failure reaching one
// endpoint. Code carries the vendor error number or a socket error name.
type ConnectionError struct {
	Dialect Name
	Code    string
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s connect [%s]: %s", e.Dialect, e.Code, e.Message)
	}
	return fmt.Sprintf("%s connect: %s", e.Dialect, e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProbeError is the expected failure of one probe statement. It is a
// measurement, never fatal.
type ProbeError struct {
	Op  string
	SQL string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func newConnectionError(d Name, err error) *ConnectionError {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConnectionError{
		Dialect: d,
		Code:    ErrorCode(err),
		Message: Truncate(err.Error(), MaxErrorLen),
		Err:     err,
	}
}

// ErrorCode extracts a short machine-readable code from a driver or socket
// error. Vendor codes win over socket codes. Returns "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var ce *ConnectionError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return strconv.Itoa(int(msErr.Number))
	}
	var msPtr *mssql.Error
	if errors.As(err, &msPtr) {
		return strconv.Itoa(int(msPtr.Number))
	}

	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return fmt.Sprintf("ORA-%05d", oraErr.ErrCode)
	}

	if code := NetErrorCode(err); code != "" {
		return code
	}
	return "ECONNECT"
}

// NetErrorCode names socket level failures the way operators know them.
// Returns "" when err is not a recognised network error.
func NetErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, syscall.EHOSTUNREACH):
		return "EHOSTUNREACH"
	case errors.Is(err, syscall.ENETUNREACH):
		return "ENETUNREACH"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "ENOTFOUND"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}
	return ""
}

// Truncate shortens s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return Truncate(err.Error(), MaxErrorLen)
}
