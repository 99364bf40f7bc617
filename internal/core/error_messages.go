package core

// error_messages.go maps technical errors to operator-facing messages with
// a short code for support reference.
//
// Typed errors are classified first; anything else falls through to
// case-insensitive substring patterns, first match wins.
//
//	CONN001 - Login failed             (vendor auth codes, "login failed", "access denied")
//	CONN002 - Endpoint unreachable     (ECONNREFUSED, EHOSTUNREACH, ENOTFOUND, ...)
//	CONN003 - Connection timed out     (ETIMEDOUT, "timeout", "deadline exceeded")
//	CONN004 - Connection reset         (ECONNRESET)
//	CFG001  - Unsupported dialect
//	CFG002  - Missing connection fields
//	CFG003  - Invalid port
//	CFG004  - Unknown named database
//	VAL001  - Missing required columns
//	VAL002  - Input too large
//	VAL003  - Too many rows
//	VAL004  - Empty input
//	VAL005  - Malformed CSV
//	VAL006  - Unsupported input encoding
//	VAL007  - Duplicate header column
//	IMP001  - All columns excluded
//	IMP002  - No usable columns
//	PRM001  - Permission denied
//	RUN001  - Too many concurrent runs
//	RUN002  - Run not found
//	RUN003  - Request cancelled
//	ERR000  - Unknown error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// UserMessage provides operator-facing error information.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

var (
	msgLoginFailed = UserMessage{
		Message: "Login failed for the configured user",
		Action:  "Check the username and password for this endpoint",
		Code:    "CONN001",
	}
	msgUnreachable = UserMessage{
		Message: "Database endpoint is unreachable",
		Action:  "Check the address, port and firewall rules",
		Code:    "CONN002",
	}
	msgTimeout = UserMessage{
		Message: "Connection timed out",
		Action:  "Check network reachability or raise DB_CONNECT_TIMEOUT",
		Code:    "CONN003",
	}
	msgReset = UserMessage{
		Message: "Connection was reset by the server",
		Action:  "Please try again",
		Code:    "CONN004",
	}
	msgUnsupportedDialect = UserMessage{
		Message: "Unsupported database type",
		Action:  "Use one of mssql, mysql, postgresql or oracle",
		Code:    "CFG001",
	}
	msgMissingFields = UserMessage{
		Message: "Connection settings are incomplete",
		Action:  "Provide host, port, database, username and password",
		Code:    "CFG002",
	}
	msgInvalidPort = UserMessage{
		Message: "Port is not valid",
		Action:  "Use a number between 1 and 65535",
		Code:    "CFG003",
	}
	msgUnknownDatabase = UserMessage{
		Message: "Named database is not configured",
		Action:  "Add it to the database registry file (DBINFO_PATH)",
		Code:    "CFG004",
	}
	msgMissingColumns = UserMessage{
		Message: "Required columns are missing from the input",
		Action:  "Check the header row against the expected column names",
		Code:    "VAL001",
	}
	msgTooLarge = UserMessage{
		Message: "Input file is too large",
		Action:  "Split the file or raise CHECK_MAX_BYTES",
		Code:    "VAL002",
	}
	msgTooManyRows = UserMessage{
		Message: "Input has too many rows",
		Action:  "Split the file or raise CHECK_MAX_ROWS",
		Code:    "VAL003",
	}
	msgEmptyInput = UserMessage{
		Message: "Input file is empty",
		Action:  "Provide a header row and at least one data row",
		Code:    "VAL004",
	}
	msgMalformedCSV = UserMessage{
		Message: "Input is not valid CSV",
		Action:  "Ensure the file is comma separated with balanced quotes",
		Code:    "VAL005",
	}
	msgEncoding = UserMessage{
		Message: "Input encoding is not supported",
		Action:  "Set INPUT_ENCODING to a known label such as utf-8 or euc-kr",
		Code:    "VAL006",
	}
	msgDuplicateHeader = UserMessage{
		Message: "Input header repeats a column name",
		Action:  "Rename or remove the repeated column",
		Code:    "VAL007",
	}
	msgAllExcluded = UserMessage{
		Message: "Every source column is an identity or computed column",
		Action:  "Remove generated columns from the source or pick another table",
		Code:    "IMP001",
	}
	msgNoColumns = UserMessage{
		Message: "Source file has no usable columns",
		Action:  "Check the header row of the source file",
		Code:    "IMP002",
	}
	msgPermission = UserMessage{
		Message: "Permission denied",
		Action:  "Grant the required privilege to the connecting user",
		Code:    "PRM001",
	}
	msgTooManyRuns = UserMessage{
		Message: "Too many runs in progress",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}
	msgRunNotFound = UserMessage{
		Message: "Run not found",
		Action:  "The run may have been evicted from history",
		Code:    "RUN002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN003",
	}
)

// defaultMessage is returned when nothing matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the server log for details",
	Code:    "ERR000",
}

// loginFailureCodes are vendor codes for rejected credentials.
var loginFailureCodes = map[string]bool{
	"18456":     true, // SQL Server
	"1045":      true, // MySQL
	"28P01":     true, // PostgreSQL
	"28000":     true,
	"ORA-01017": true,
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively in order.
var errorPatterns = []errorPattern{
	{"login failed", msgLoginFailed},
	{"access denied for user", msgLoginFailed},
	{"password authentication failed", msgLoginFailed},
	{"invalid username/password", msgLoginFailed},
	{"unknown database", msgUnknownDatabase},
	{"missing required columns", msgMissingColumns},
	{"all columns excluded", msgAllExcluded},
	{"no usable columns", msgNoColumns},
	{"unsupported dialect", msgUnsupportedDialect},
	{"connection refused", msgUnreachable},
	{"no such host", msgUnreachable},
	{"no route to host", msgUnreachable},
	{"network is unreachable", msgUnreachable},
	{"connection reset", msgReset},
	{"timed out", msgTimeout},
	{"timeout", msgTimeout},
	{"permission denied", msgPermission},
	{"command denied", msgPermission},
	{"insufficient privileges", msgPermission},
	{"too many concurrent runs", msgTooManyRuns},
}

// MapError converts a technical error to an operator-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	switch {
	case errors.Is(err, ErrTooManyRuns):
		return msgTooManyRuns, true
	case errors.Is(err, ErrRunNotFound):
		return msgRunNotFound, true
	case errors.Is(err, ErrAllColumnsExcluded):
		return msgAllExcluded, true
	case errors.Is(err, ErrInputTooLarge):
		return msgTooLarge, true
	case errors.Is(err, ErrTooManyRows):
		return msgTooManyRows, true
	case errors.Is(err, ErrEmptyInput):
		return msgEmptyInput, true
	case errors.Is(err, context.Canceled):
		return msgCancelled, true
	}

	var cfgErr *dialect.ConfigError
	if errors.As(err, &cfgErr) {
		switch {
		case len(cfgErr.Missing) > 0:
			return msgMissingFields, true
		case strings.HasPrefix(cfgErr.Message, "unsupported dialect"):
			return msgUnsupportedDialect, true
		case strings.Contains(cfgErr.Message, "port"):
			return msgInvalidPort, true
		default:
			return msgMissingFields, true
		}
	}

	var connErr *dialect.ConnectionError
	if errors.As(err, &connErr) {
		switch code := connErr.Code; {
		case loginFailureCodes[code]:
			return msgLoginFailed, true
		case code == "ETIMEDOUT":
			return msgTimeout, true
		case code == "ECONNRESET":
			return msgReset, true
		case code == "ECONNREFUSED" || code == "EHOSTUNREACH" || code == "ENETUNREACH" || code == "ENOTFOUND":
			return msgUnreachable, true
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		switch {
		case valErr.Field == "encoding":
			return msgEncoding, true
		case strings.HasPrefix(valErr.Message, "malformed"):
			return msgMalformedCSV, true
		case strings.HasPrefix(valErr.Message, "missing required"):
			return msgMissingColumns, true
		case strings.HasPrefix(valErr.Message, "duplicate column"):
			return msgDuplicateHeader, true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout, true
	}
	return UserMessage{}, false
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
