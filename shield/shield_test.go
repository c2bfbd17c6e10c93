package shield

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/pilote/kit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(DefaultHeaders())(okHandler())
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := w.Header().Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'none'") {
		t.Errorf("CSP = %q", got)
	}
}

func TestHeadToGet(t *testing.T) {
	var sawMethod string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawMethod = r.Method
	})
	req := httptest.NewRequest("HEAD", "/", nil)
	w := httptest.NewRecorder()
	HeadToGet(inner).ServeHTTP(w, req)

	if sawMethod != http.MethodGet {
		t.Errorf("inner handler saw %q, want GET", sawMethod)
	}
}

func TestMaxBody(t *testing.T) {
	handler := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		_, err := r.Body.Read(buf)
		if err != nil && !strings.Contains(err.Error(), "EOF") {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 100)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: status %d, want 413", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	var gotID, gotTransport string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = kit.GetRequestID(r.Context())
		gotTransport = kit.GetTransport(r.Context())
	})
	req := httptest.NewRequest("GET", "/mcp", nil)
	w := httptest.NewRecorder()
	RequestID(inner).ServeHTTP(w, req)

	if gotID == "" {
		t.Error("no request ID in context")
	}
	if gotTransport != "http" {
		t.Errorf("transport = %q, want http", gotTransport)
	}
	if hdr := w.Header().Get("X-Request-ID"); hdr != gotID {
		t.Errorf("header %q != context %q", hdr, gotID)
	}
}

func TestRateLimiter_AllowAndBlock(t *testing.T) {
	rl := NewRateLimiter(Limit{MaxRequests: 2, Window: time.Minute})
	handler := rl.Middleware(okHandler())

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/mcp", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
		t.Fatalf("codes = %v, want [200 200 429]", codes)
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(Limit{MaxRequests: 1, Window: time.Minute})
	handler := rl.Middleware(okHandler())

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest("POST", "/mcp", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Errorf("first request from %s: status %d", addr, w.Code)
		}
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(Limit{MaxRequests: 1, Window: 20 * time.Millisecond})
	handler := rl.Middleware(okHandler())

	send := func() int {
		req := httptest.NewRequest("POST", "/mcp", nil)
		req.RemoteAddr = "10.0.0.1:1"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if send() != 200 {
		t.Fatal("first request blocked")
	}
	if send() != 429 {
		t.Fatal("second request not blocked")
	}
	time.Sleep(30 * time.Millisecond)
	if send() != 200 {
		t.Fatal("request after window reset blocked")
	}
}

func TestRateLimiter_ExcludedPath(t *testing.T) {
	rl := NewRateLimiter(Limit{MaxRequests: 1, Window: time.Minute}, "/healthz")
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Fatalf("excluded path blocked on request %d", i)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	handler := BearerAuth(string(hash), "/healthz")(okHandler())

	send := func(path, authz string) int {
		req := httptest.NewRequest("POST", path, nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if got := send("/mcp", "Bearer secret-token"); got != 200 {
		t.Errorf("valid token: status %d", got)
	}
	if got := send("/mcp", "Bearer wrong"); got != 401 {
		t.Errorf("wrong token: status %d", got)
	}
	if got := send("/mcp", ""); got != 401 {
		t.Errorf("missing header: status %d", got)
	}
	if got := send("/mcp", "Basic abc"); got != 401 {
		t.Errorf("non-bearer scheme: status %d", got)
	}
	if got := send("/healthz", ""); got != 200 {
		t.Errorf("excluded path: status %d", got)
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		xff        string
		want       string
	}{
		{"10.0.0.1:5000", "", "10.0.0.1"},
		{"10.0.0.1:5000", "203.0.113.9", "203.0.113.9"},
		{"10.0.0.1:5000", "203.0.113.9, 198.51.100.2", "203.0.113.9"},
		{"badaddr", "", "badaddr"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := ExtractIP(req); got != tt.want {
			t.Errorf("ExtractIP(%q, xff=%q) = %q, want %q", tt.remoteAddr, tt.xff, got, tt.want)
		}
	}
}
