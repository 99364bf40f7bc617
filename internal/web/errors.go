package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - logged with full technical detail and the request id (server-side)
//   - mapped with core.MapError to an operator-facing message and code
//   - returned as JSON for API routes and as an HTML alert otherwise

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dbfleet/internal/core"
	"github.com/JonMunkholm/dbfleet/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	RunID   string `json:"run_id,omitempty"`
}

// respondError logs err and writes the mapped message with statusCode.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	s.respondRunError(w, r, err, statusCode, "")
}

// respondRunError is respondError for a failed run; the run id is included
// so clients can fetch the stored run.
func (s *Server) respondRunError(w http.ResponseWriter, r *http.Request, err error, statusCode int, runID string) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode, runID)
		return
	}
	respondErrorHTML(w, r, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int, runID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		RunID:   runID,
	})
}

// respondErrorHTML renders the error alert fragment.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	ErrorAlert(msg).Render(r.Context(), w)
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	if errors.Is(err, core.ErrNoDatabases) {
		return http.StatusServiceUnavailable
	}

	switch code := core.MapError(err).Code; {
	case code == "RUN001":
		return http.StatusTooManyRequests
	case code == "RUN002", code == "CFG004":
		return http.StatusNotFound
	case code == "RUN003":
		return http.StatusRequestTimeout
	case code == "VAL002":
		return http.StatusRequestEntityTooLarge
	case strings.HasPrefix(code, "VAL"), strings.HasPrefix(code, "CFG"), strings.HasPrefix(code, "IMP"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "CONN"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
