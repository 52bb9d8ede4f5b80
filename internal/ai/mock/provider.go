package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/oraculo/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	Response string
	Error    error
	Delay    time.Duration

	// Call tracking for testing
	Calls      int
	LastPrompt string
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Name implements ai.Provider.
func (p *Provider) Name() string { return "mock" }

// Complete returns the configured response, or a canned reading.
func (p *Provider) Complete(ctx context.Context, prompt string) (*ai.Completion, error) {
	p.mu.Lock()
	p.Calls++
	p.LastPrompt = prompt
	response, err, delay := p.Response, p.Error, p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if response == "" {
		response = cannedReading
	}

	if p.logger != nil {
		p.logger.Debug("Mock AI completion", "prompt_bytes", len(prompt))
	}

	return &ai.Completion{
		Text: response,
		Usage: ai.UsageInfo{
			Model:        "mock",
			InputTokens:  len(prompt) / 4,
			OutputTokens: len(response) / 4,
		},
	}, nil
}

// CallCount returns the number of Complete calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

// Reset clears all configured responses and call counts
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Response = ""
	p.Error = nil
	p.Delay = 0
	p.Calls = 0
	p.LastPrompt = ""
}

// cannedReading answers both reading and interpretation prompts: the client
// fills individual cards it does not find.
const cannedReading = `{
  "intro": "As cartas mostram um momento de transição e novas oportunidades.",
  "timeline": {
    "past": "Você deixou para trás uma fase de incertezas.",
    "present": "O presente pede atenção aos detalhes e paciência.",
    "future": "Um caminho mais leve se abre nas próximas semanas."
  },
  "individual_cards": [],
  "summary": "Um ciclo se encerra para que outro comece.",
  "advice": "Confie na sua intuição e dê um passo de cada vez.",
  "interpretation": "Hoje é um bom dia para recomeços e conversas sinceras."
}`
