package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/oraculo/internal/auth"
	"github.com/google/uuid"
)

// =============================================================================
// Rate Limiter Tests
// =============================================================================

func newFrozenLimiter(rps float64, burst int) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(rps, burst, time.Minute, newTestLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_Allow_Burst(t *testing.T) {
	rl, _ := newFrozenLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("user:a"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, wait := rl.Allow("user:a")
	if ok {
		t.Fatal("request beyond burst should be blocked")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("wait = %v, want (0, 1s]", wait)
	}
}

func TestRateLimiter_Allow_KeysAreIndependent(t *testing.T) {
	rl, _ := newFrozenLimiter(1, 1)

	if ok, _ := rl.Allow("user:a"); !ok {
		t.Fatal("first key should be allowed")
	}
	if ok, _ := rl.Allow("user:b"); !ok {
		t.Fatal("second key should be allowed")
	}
	if ok, _ := rl.Allow("user:a"); ok {
		t.Fatal("first key should now be blocked")
	}
}

func TestRateLimiter_Allow_Refills(t *testing.T) {
	rl, now := newFrozenLimiter(2, 1)

	rl.Allow("user:a")
	if ok, _ := rl.Allow("user:a"); ok {
		t.Fatal("should be blocked before refill")
	}

	*now = now.Add(600 * time.Millisecond)
	if ok, _ := rl.Allow("user:a"); !ok {
		t.Fatal("should be allowed after refill")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, now := newFrozenLimiter(1, 1)

	rl.Allow("user:old")
	*now = now.Add(2 * time.Minute)
	rl.Allow("user:new")

	if removed := rl.Cleanup(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := rl.entries["user:new"]; !ok {
		t.Error("recent key should survive cleanup")
	}
}

// =============================================================================
// Rate Limit Middleware Tests
// =============================================================================

func TestRateLimitMiddleware_BlocksPerUser(t *testing.T) {
	rl, _ := newFrozenLimiter(1, 1)
	mw := NewRateLimitMiddleware(rl, newTestLogger())

	var called bool
	h := mw.Limit(okHandler(&called))

	alice := &auth.Identity{UserID: uuid.New()}
	bob := &auth.Identity{UserID: uuid.New()}

	send := func(id *auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/dreams", nil)
		req.RemoteAddr = "10.0.0.1:1234" // same proxy for both users
		req = req.WithContext(auth.SetIdentity(req.Context(), id))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(alice); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec := send(alice)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}

	if rec := send(bob); rec.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", rec.Code)
	}
}

func TestRateLimitMiddleware_FallsBackToIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.168.1.9:5555", want: "ip:192.168.1.9"},
		{name: "x-forwarded-for", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, remote: "10.0.0.1:80", want: "ip:203.0.113.5"},
		{name: "x-real-ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.1:80", want: "ip:198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := rateLimitKey(req); got != tt.want {
				t.Errorf("rateLimitKey = %q, want %q", got, tt.want)
			}
		})
	}
}
