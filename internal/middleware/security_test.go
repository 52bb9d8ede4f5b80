package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Security Headers Middleware Tests
// =============================================================================

func serveSecure(isSecure bool, path string) *httptest.ResponseRecorder {
	mw := NewSecurityHeadersMiddleware(isSecure)
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestSecurityHeadersMiddleware_SetsAllHeaders(t *testing.T) {
	rec := serveSecure(false, "/me")

	expected := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	if rec.Code != http.StatusOK {
		t.Errorf("request should pass through, got %d", rec.Code)
	}
}

func TestSecurityHeadersMiddleware_HSTS(t *testing.T) {
	if got := serveSecure(true, "/me").Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=31536000") {
		t.Errorf("HSTS should be set in production, got %q", got)
	}
	if got := serveSecure(false, "/me").Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should not be set in development, got %q", got)
	}
}

func TestSecurityHeadersMiddleware_CSPLocksDownScripts(t *testing.T) {
	csp := serveSecure(false, "/spreads").Header().Get("Content-Security-Policy")

	for _, want := range []string{"default-src 'none'", "frame-ancestors 'none'", "img-src 'self'"} {
		if !strings.Contains(csp, want) {
			t.Errorf("CSP should contain %q: %s", want, csp)
		}
	}
	if strings.Contains(csp, "unsafe-inline") {
		t.Errorf("CSP should not allow inline code: %s", csp)
	}
}

func TestSecurityHeadersMiddleware_CardArtworkIsCacheable(t *testing.T) {
	if got := serveSecure(false, "/files/cards/05.jpg").Header().Get("Cache-Control"); got != "" {
		t.Errorf("artwork should not be marked no-store, got %q", got)
	}
}
