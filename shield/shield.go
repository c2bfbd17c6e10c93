// Package shield provides reusable HTTP hardening middleware for the pilote
// HTTP transport: security headers, request body limits, request IDs with
// per-request loggers, per-IP rate limiting, and bearer token auth.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxBody(1 << 20))
//	r.Use(shield.RequestID)
//	r.Use(shield.NewRateLimiter(shield.Limit{MaxRequests: 60, Window: time.Minute}).Middleware)
//	r.Use(shield.BearerAuth(tokenHash, "/healthz"))
//
// Or apply the default stack in one call:
//
//	for _, mw := range shield.DefaultStack(cfg) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Config configures the default middleware stack.
type Config struct {
	// MaxBodyBytes limits request body size. Default: 1 MiB.
	MaxBodyBytes int64

	// Rate is the per-IP rate limit. Zero MaxRequests disables limiting.
	Rate Limit

	// TokenHash is the bcrypt hash of the bearer token. Empty disables auth.
	TokenHash string

	// Exclude lists path prefixes that bypass rate limiting and auth,
	// e.g. "/healthz".
	Exclude []string
}

// DefaultStack returns the standard middleware stack for the pilote HTTP
// transport. Middleware is ordered: HeadToGet -> SecurityHeaders -> MaxBody ->
// RequestID -> RateLimiter -> BearerAuth.
func DefaultStack(cfg Config) []func(http.Handler) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(cfg.MaxBodyBytes),
		RequestID,
	}
	if cfg.Rate.MaxRequests > 0 {
		stack = append(stack, NewRateLimiter(cfg.Rate, cfg.Exclude...).Middleware)
	}
	if cfg.TokenHash != "" {
		stack = append(stack, BearerAuth(cfg.TokenHash, cfg.Exclude...))
	}
	return stack
}
