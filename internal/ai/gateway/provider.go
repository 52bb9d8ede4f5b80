// Package gateway talks to the generic text-generation endpoint used in
// production: POST {"prompt": "..."} and receive {"result": "..."} or, on a
// non-2xx status, {"error": "..."}.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/oraculo/internal/ai"
)

// maxResponseBytes caps how much of an answer is read.
const maxResponseBytes = 1 << 20

// Config contains configuration for the gateway provider.
type Config struct {
	URL            string
	Token          string // optional bearer token
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider over the gateway contract.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a gateway provider.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = ai.DefaultTimeout
	}
	return &Provider{
		config: config,
		client: &http.Client{Timeout: config.ProviderConfig.RequestTimeout},
		logger: logger,
	}, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() string { return "gateway" }

type request struct {
	Prompt string `json:"prompt"`
}

type response struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Complete implements ai.Provider.
func (p *Provider) Complete(ctx context.Context, prompt string) (*ai.Completion, error) {

	body, err := json.Marshal(request{Prompt: prompt})
	if err != nil {
		return nil, ai.WrapError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, ai.WrapError("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ai.WrapError("execute request", fmt.Errorf("%w: %v", ai.EAITimeout, err))
		}
		return nil, ai.WrapError("execute request", fmt.Errorf("%w: %v", ai.EAIUnavailable, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, ai.WrapError("read response", err)
	}

	var out response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Debug("Gateway returned error", "status", resp.StatusCode, "error", out.Error)
		return nil, ai.WrapError("execute request", mapStatus(resp.StatusCode, out.Error))
	}
	if decodeErr != nil {
		return nil, ai.WrapError("parse response", fmt.Errorf("%w: %v", ai.EAIBadResponse, decodeErr))
	}
	if out.Result == "" {
		return nil, ai.WrapError("parse response", fmt.Errorf("%w: empty result", ai.EAIBadResponse))
	}

	return &ai.Completion{
		Text:  out.Result,
		Usage: ai.UsageInfo{Model: "gateway"},
	}, nil
}

func mapStatus(status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ai.EAITimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ai.EAIUnavailable
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return fmt.Errorf("gateway error (status %d): %s", status, message)
}
