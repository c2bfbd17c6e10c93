package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limit defines a fixed-window rate limit.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP rate limiting with in-memory fixed windows.
// Expired buckets are garbage collected by StartGC.
type RateLimiter struct {
	limit   Limit
	buckets sync.Map
	exclude []string // path prefixes excluded from rate limiting
}

// NewRateLimiter creates a rate limiter enforcing limit per client IP.
func NewRateLimiter(limit Limit, excludePrefixes ...string) *RateLimiter {
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		exclude: excludePrefixes,
	}
}

// StartGC starts a background goroutine that drops expired buckets every
// 5 minutes. Stops when done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}) {
	tick := time.NewTicker(5 * time.Minute)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := time.Now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	if rl.limit.MaxRequests <= 0 {
		return true
	}

	now := time.Now()
	val, loaded := rl.buckets.LoadOrStore(ip, &bucket{
		count:   1,
		resetAt: now.Add(rl.limit.Window),
	})
	if !loaded {
		return true
	}

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.After(b.resetAt) {
		b.count = 1
		b.resetAt = now.Add(rl.limit.Window)
		return true
	}

	b.count++
	return b.count <= rl.limit.MaxRequests
}

// Middleware is the HTTP middleware that enforces the rate limit with a
// 429 JSON response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		ip := ExtractIP(r)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)

		w.Header().Set("Retry-After", strconv.Itoa(int(rl.limit.Window.Seconds())))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "rate limit exceeded",
		})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return strings.TrimSpace(xff[:i])
			}
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
