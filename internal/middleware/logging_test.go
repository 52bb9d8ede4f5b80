package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func serveLogged(t *testing.T, req *http.Request, status int) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return buf.String(), rec
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	req := httptest.NewRequest("GET", "/history", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("User-Agent", "oraculo-app/2.1")

	logOutput, _ := serveLogged(t, req, http.StatusOK)

	for _, want := range []string{"GET", "/history", "status=200", "duration_ms", "192.168.1.1", "oraculo-app/2.1", "bytes=11"} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("log should contain %q, got: %s", want, logOutput)
		}
	}
}

func TestRequestLoggingMiddleware_ServerErrorsAtWarn(t *testing.T) {
	req := httptest.NewRequest("POST", "/daily", nil)

	logOutput, _ := serveLogged(t, req, http.StatusInternalServerError)

	if !strings.Contains(logOutput, "level=WARN") {
		t.Errorf("5xx should log at warn, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "status=500") {
		t.Errorf("log should contain status 500, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_RedactsSensitiveQueryParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/history?limit=10&access_token=secrettoken123", nil)

	logOutput, _ := serveLogged(t, req, http.StatusOK)

	if strings.Contains(logOutput, "secrettoken123") {
		t.Errorf("log should NOT contain token value, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "limit=10") {
		t.Errorf("log should keep harmless params, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_RequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		_, rec := serveLogged(t, httptest.NewRequest("GET", "/spreads", nil), http.StatusOK)
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("response should carry a request id")
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/spreads", nil)
		req.Header.Set(RequestIDHeader, "edge-42")
		logOutput, rec := serveLogged(t, req, http.StatusOK)

		if got := rec.Header().Get(RequestIDHeader); got != "edge-42" {
			t.Errorf("request id = %q, want edge-42", got)
		}
		if !strings.Contains(logOutput, "request_id=edge-42") {
			t.Errorf("log should contain request id, got: %s", logOutput)
		}
	})
}

func TestRequestLoggingMiddleware_SkipsNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/files/cards/01.jpg"} {
		t.Run(path, func(t *testing.T) {
			logOutput, rec := serveLogged(t, httptest.NewRequest("GET", path, nil), http.StatusOK)
			if logOutput != "" {
				t.Errorf("%s should not be logged, got: %s", path, logOutput)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("request should still be served, got %d", rec.Code)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path, query, want string
	}{
		{"/history", "", "/history"},
		{"/history", "offset=20", "/history?offset=20"},
		{"/x", "token=abc", "/x?token=[REDACTED]"},
		{"/x", "Password=abc&a=b", "/x?Password=[REDACTED]&a=b"},
		{"/x", "novalue", "/x"},
	}

	for _, tt := range tests {
		if got := sanitizePath(tt.path, tt.query); got != tt.want {
			t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.query, got, tt.want)
		}
	}
}
