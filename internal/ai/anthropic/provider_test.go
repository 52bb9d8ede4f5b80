package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/oraculo/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func TestProvider_Complete(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "prompt", req.Messages[0].Content[0].Text)

		_ = json.NewEncoder(w).Encode(apiResponse{
			Content: []apiContent{{Type: "text", Text: `{"intro": "oi"}`}},
			Usage:   apiUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
		})
	})

	c, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"intro": "oi"}`, c.Text)
	assert.Equal(t, PricingInputCents+PricingOutputCents, c.Usage.CostCents)
}

func TestProvider_MapsStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ai.EAIRateLimit},
		{http.StatusUnauthorized, ai.EAIUnauthorized},
		{http.StatusBadGateway, ai.EAIUnavailable},
		{529, ai.EAIUnavailable},
		{http.StatusGatewayTimeout, ai.EAITimeout},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"x","message":"y"}}`))
			})
			_, err := p.Complete(context.Background(), "prompt")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProvider_NoTextContent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": []}`))
	})
	_, err := p.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ai.EAIBadResponse)
}
