package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DukeRupert/oraculo/internal/ai"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockQueries(t *testing.T) (*sql.DB, *repository.Queries, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, repository.New(db), mock
}

var userColumns = []string{
	"id", "email", "name", "birth_date", "credits", "subscription_status",
	"subscription_end_date", "stripe_customer_id", "created_at", "updated_at",
}

func userRows(id uuid.UUID, credits int, status string, end *time.Time) *sqlmock.Rows {
	now := time.Now()
	var endValue interface{}
	if end != nil {
		endValue = *end
	}
	return sqlmock.NewRows(userColumns).
		AddRow(id.String(), "ana@example.com", "Ana", "1990-05-01", credits, status, endValue, nil, now, now)
}

var readingColumns = []string{
	"id", "user_id", "reading_type", "input_data", "output_data", "reading_date", "created_at",
}

// =============================================================================
// Fakes
// =============================================================================

type fakeGate struct {
	mu     sync.Mutex
	result domain.CreditResult
	calls  int
}

func allowGate() *fakeGate {
	return &fakeGate{result: domain.AllowCredit(true, 2)}
}

func (g *fakeGate) TryConsumeCredit(ctx context.Context, userID uuid.UUID) domain.CreditResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.result
}

func (g *fakeGate) set(r domain.CreditResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.result = r
}

func (g *fakeGate) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeInterpreter struct {
	mu       sync.Mutex
	readings []domain.ReadingResult // returned in order; the last one repeats
	interp   domain.Interpretation
	block    chan struct{}
	calls    int
	ctxErr   error // ctx.Err() seen by the last RequestReading
	lastReq  ai.ReadingRequest
	lastText ai.InterpretationRequest
}

func successReading() domain.ReadingResult {
	return domain.ReadingResult{Intro: "intro", Summary: "resumo", Advice: "conselho"}
}

func fallbackReading() domain.ReadingResult {
	r := successReading()
	r.Fallback = true
	return r
}

func (f *fakeInterpreter) RequestReading(ctx context.Context, req ai.ReadingRequest) domain.ReadingResult {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErr = ctx.Err()
	f.lastReq = req
	i := min(f.calls, len(f.readings)-1)
	f.calls++
	if i < 0 {
		return successReading()
	}
	return f.readings[i]
}

func (f *fakeInterpreter) RequestInterpretation(ctx context.Context, req ai.InterpretationRequest) domain.Interpretation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastText = req
	return f.interp
}

func (f *fakeInterpreter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHistory struct {
	mu      sync.Mutex
	fail    bool
	records []RecordParams
}

func (h *fakeHistory) RecordReading(ctx context.Context, p RecordParams) (uuid.UUID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return uuid.Nil, false
	}
	h.records = append(h.records, p)
	return uuid.New(), true
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

type fakeProfiles struct {
	profile *domain.Profile
}

func (p *fakeProfiles) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if p.profile == nil {
		return nil, domain.NotFound("profile.get", "profile", userID.String())
	}
	return p.profile, nil
}

func (p *fakeProfiles) UpdateProfile(ctx context.Context, params domain.UpdateProfileParams) (*domain.Profile, error) {
	return p.profile, nil
}
