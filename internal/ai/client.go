package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"golang.org/x/text/language"
)

// DefaultTimeout bounds a single AI call.
const DefaultTimeout = 30 * time.Second

// InterpretationKind selects the prompt of a single-text interpretation.
type InterpretationKind string

const (
	KindDream InterpretationKind = "dream"
	KindDaily InterpretationKind = "daily"
)

// ReadingRequest is the input of a spread reading. Cards are in selection order.
type ReadingRequest struct {
	Spread    domain.SpreadDefinition
	Question  string
	Cards     []domain.Card
	Consulter Consulter
}

// InterpretationRequest is the input of the dream and daily flows.
type InterpretationRequest struct {
	Kind      InterpretationKind
	Text      string       // the dream, for KindDream
	Card      *domain.Card // the card of the day, for KindDaily
	Consulter Consulter
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Timeout  time.Duration
	Language string // BCP 47 tag of the answers, e.g. "pt-BR"
}

// Client builds prompts, calls the provider once and parses the answer.
// Its methods never fail: any provider or parsing problem yields a fallback
// result marked with Fallback.
type Client struct {
	provider Provider
	timeout  time.Duration
	language language.Tag
	logger   *slog.Logger
	now      func() time.Time
}

// NewClient creates a Client for provider.
func NewClient(provider Provider, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	return &Client{
		provider: provider,
		timeout:  cfg.Timeout,
		language: tag,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestReading asks for the interpretation of a spread.
func (c *Client) RequestReading(ctx context.Context, req ReadingRequest) domain.ReadingResult {
	prompt := buildReadingPrompt(req, c.language, c.now())

	text, err := c.complete(ctx, "reading", prompt)
	if err == nil {
		var result domain.ReadingResult
		result, err = parseReading(text, req)
		if err == nil {
			return result
		}
		metrics.RecordAIRequest(c.provider.Name(), "reading", "bad_response", 0)
	}

	c.logger.Warn("AI reading failed, returning fallback",
		"provider", c.provider.Name(),
		"spread", req.Spread.ID,
		"cards", len(req.Cards),
		"error", err,
	)
	return fallbackReading(req)
}

// RequestInterpretation asks for a single-text interpretation.
func (c *Client) RequestInterpretation(ctx context.Context, req InterpretationRequest) domain.Interpretation {
	prompt := buildInterpretationPrompt(req, c.language, c.now())

	text, err := c.complete(ctx, string(req.Kind), prompt)
	if err == nil {
		var result domain.Interpretation
		result, err = parseInterpretation(text)
		if err == nil {
			return result
		}
		metrics.RecordAIRequest(c.provider.Name(), string(req.Kind), "bad_response", 0)
	}

	c.logger.Warn("AI interpretation failed, returning fallback",
		"provider", c.provider.Name(),
		"kind", req.Kind,
		"error", err,
	)
	return domain.Interpretation{Interpretation: fallbackInterpretation, Fallback: true}
}

func (c *Client) complete(ctx context.Context, kind, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	completion, err := c.provider.Complete(ctx, prompt)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", EAITimeout, err)
		}
		metrics.RecordAIRequest(c.provider.Name(), kind, ErrorStatus(err), duration)
		return "", err
	}

	metrics.RecordAIRequest(c.provider.Name(), kind, "success", duration)
	metrics.RecordAITokens(c.provider.Name(), completion.Usage.InputTokens, completion.Usage.OutputTokens)
	metrics.RecordAICost(c.provider.Name(), completion.Usage.CostCents)
	c.logger.Debug("AI request completed",
		"provider", c.provider.Name(),
		"kind", kind,
		"model", completion.Usage.Model,
		"input_tokens", completion.Usage.InputTokens,
		"output_tokens", completion.Usage.OutputTokens,
		"cost_cents", completion.Usage.CostCents,
		"duration_ms", duration.Milliseconds(),
	)
	return completion.Text, nil
}

// extractJSON returns the text between the first '{' and the last '}'.
// Models often wrap their JSON in prose or code fences.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

type readingOutput struct {
	Intro    string `json:"intro"`
	Timeline struct {
		Past    string `json:"past"`
		Present string `json:"present"`
		Future  string `json:"future"`
	} `json:"timeline"`
	IndividualCards []cardOutput `json:"individual_cards"`
	Summary         string       `json:"summary"`
	Advice          string       `json:"advice"`
}

type cardOutput struct {
	CardID         int    `json:"card_id"`
	Position       string `json:"position"`
	CardName       string `json:"card_name"`
	Interpretation string `json:"interpretation"`
}

// parseReading decodes the model answer and aligns individual_cards with
// the requested cards: one entry per card, in request order.
func parseReading(text string, req ReadingRequest) (domain.ReadingResult, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return domain.ReadingResult{}, fmt.Errorf("%w: no JSON object in answer", EAIBadResponse)
	}
	var out readingOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.ReadingResult{}, fmt.Errorf("%w: %v", EAIBadResponse, err)
	}
	if strings.TrimSpace(out.Intro) == "" && strings.TrimSpace(out.Summary) == "" && len(out.IndividualCards) == 0 {
		return domain.ReadingResult{}, fmt.Errorf("%w: empty reading", EAIBadResponse)
	}

	byID := make(map[int]cardOutput, len(out.IndividualCards))
	for _, co := range out.IndividualCards {
		if co.CardID > 0 {
			byID[co.CardID] = co
		}
	}

	cards := make([]domain.CardInterpretation, len(req.Cards))
	for i, card := range req.Cards {
		co, found := byID[card.ID]
		if !found && i < len(out.IndividualCards) {
			co = out.IndividualCards[i]
		}
		cards[i] = domain.CardInterpretation{
			CardID:         card.ID,
			Position:       positionLabel(req.Spread, i),
			CardName:       card.Name,
			Interpretation: orDefault(co.Interpretation, fallbackCardText),
		}
	}

	return domain.ReadingResult{
		Intro: orDefault(out.Intro, fallbackIntro),
		Timeline: domain.Timeline{
			Past:    orDefault(out.Timeline.Past, fallbackTimeline),
			Present: orDefault(out.Timeline.Present, fallbackTimeline),
			Future:  orDefault(out.Timeline.Future, fallbackTimeline),
		},
		IndividualCards: cards,
		Summary:         orDefault(out.Summary, fallbackSummary),
		Advice:          orDefault(out.Advice, fallbackAdvice),
	}, nil
}

func parseInterpretation(text string) (domain.Interpretation, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return domain.Interpretation{}, fmt.Errorf("%w: no JSON object in answer", EAIBadResponse)
	}
	var out struct {
		Interpretation string `json:"interpretation"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.Interpretation{}, fmt.Errorf("%w: %v", EAIBadResponse, err)
	}
	if strings.TrimSpace(out.Interpretation) == "" {
		return domain.Interpretation{}, fmt.Errorf("%w: empty interpretation", EAIBadResponse)
	}
	return domain.Interpretation{Interpretation: strings.TrimSpace(out.Interpretation)}, nil
}

func positionLabel(spread domain.SpreadDefinition, i int) string {
	return orDefault(spread.PositionLabel(i), fmt.Sprintf("Carta %d", i+1))
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

const (
	fallbackIntro          = "As energias estão agitadas neste momento e não consegui concluir a sua leitura."
	fallbackTimeline       = "Esta parte da leitura não pôde ser revelada agora."
	fallbackCardText       = "A mensagem desta carta ficou encoberta. Tente novamente em instantes."
	fallbackSummary        = "Sua leitura não foi concluída, mas suas cartas continuam aqui."
	fallbackAdvice         = "Respire fundo e tente novamente em alguns instantes."
	fallbackInterpretation = "Não foi possível interpretar agora. Tente novamente em alguns instantes."
)

// fallbackReading is shown when the AI fails. Every field is populated so the
// result screen renders normally.
func fallbackReading(req ReadingRequest) domain.ReadingResult {
	cards := make([]domain.CardInterpretation, len(req.Cards))
	for i, card := range req.Cards {
		cards[i] = domain.CardInterpretation{
			CardID:         card.ID,
			Position:       positionLabel(req.Spread, i),
			CardName:       card.Name,
			Interpretation: fallbackCardText,
		}
	}
	return domain.ReadingResult{
		Intro: fallbackIntro,
		Timeline: domain.Timeline{
			Past:    fallbackTimeline,
			Present: fallbackTimeline,
			Future:  fallbackTimeline,
		},
		IndividualCards: cards,
		Summary:         fallbackSummary,
		Advice:          fallbackAdvice,
		Fallback:        true,
	}
}
