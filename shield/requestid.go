package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/pilote/kit"
)

// RequestID generates a random ID for each request and injects it into the
// context, response headers, and a per-request structured logger. The ID is
// stored under kit.RequestIDKey and the logger under LoggerKey. The client IP
// and "http" transport are stored under the matching kit keys so downstream
// tool handlers see where a call came from.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := make([]byte, 4)
		rand.Read(id)
		reqID := hex.EncodeToString(id)

		ctx := kit.WithRequestID(r.Context(), reqID)
		ctx = kit.WithTransport(ctx, "http")
		ctx = kit.WithRemoteAddr(ctx, ExtractIP(r))
		w.Header().Set("X-Request-ID", reqID)

		logger := slog.Default().With(
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Info("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
