package observability

import (
	"log/slog"
	"net/http"
)

// Audit logs a security-relevant request event. Attrs never carry
// passwords, token IDs or verify codes, only identifiers.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
