package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/dbfleet/internal/config"
	"github.com/JonMunkholm/dbfleet/internal/logging"
)

// APIKeyHeader carries the client key on /api requests.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key is not one of cfg.APIKeys.
// It is a no-op unless cfg.RequireAPIKey is set.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			switch {
			case key == "":
				deny(w, r, http.StatusUnauthorized, "AUTH001", "Missing API key")
				return
			case !isValidAPIKey(key, cfg.APIKeys):
				deny(w, r, http.StatusForbidden, "AUTH002", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	logging.FromContext(r.Context()).Warn("auth rejected",
		"code", code,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   msg,
		"message": msg,
		"action":  "Send a configured key in the " + APIKeyHeader + " header.",
		"code":    code,
	})
}

// isValidAPIKey compares against every key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, k := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}
