package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/oraculo/internal/auth"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/service"
)

// asUser stands in for RequireUser and authenticates every request as userID.
func asUser(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.SetIdentity(r.Context(), &auth.Identity{UserID: userID, Email: "ana@example.com"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

func serve(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"code":"`+code+`"`)
}

// =============================================================================
// Fakes
// =============================================================================

type fakeReadingService struct {
	view     domain.SessionView
	err      error
	restored bool

	userID   uuid.UUID
	id       uuid.UUID
	spreadID string
	question string
	slot     int
	ended    bool
	calls    []string
}

func (f *fakeReadingService) record(name string, id, userID uuid.UUID) (domain.SessionView, error) {
	f.calls = append(f.calls, name)
	f.id = id
	f.userID = userID
	return f.view, f.err
}

func (f *fakeReadingService) Spreads() []domain.SpreadDefinition {
	return domain.Spreads()
}

func (f *fakeReadingService) CreateSession(ctx context.Context, userID uuid.UUID, spreadID string) (domain.SessionView, error) {
	f.spreadID = spreadID
	return f.record("create", uuid.Nil, userID)
}

func (f *fakeReadingService) RestoreSession(ctx context.Context, userID uuid.UUID, snap domain.ResumeSnapshot) (domain.SessionView, bool, error) {
	view, err := f.record("restore", uuid.Nil, userID)
	return view, f.restored, err
}

func (f *fakeReadingService) GetSession(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	return f.record("get", id, userID)
}

func (f *fakeReadingService) SetQuestion(ctx context.Context, id, userID uuid.UUID, question string) (domain.SessionView, error) {
	f.question = question
	return f.record("question", id, userID)
}

func (f *fakeReadingService) SelectCard(ctx context.Context, id, userID uuid.UUID, slot int) (domain.SessionView, error) {
	f.slot = slot
	return f.record("select", id, userID)
}

func (f *fakeReadingService) Reveal(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	return f.record("reveal", id, userID)
}

func (f *fakeReadingService) Retry(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	return f.record("retry", id, userID)
}

func (f *fakeReadingService) NewReading(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	return f.record("new", id, userID)
}

func (f *fakeReadingService) EndSession(ctx context.Context, id, userID uuid.UUID) {
	f.ended = true
	f.record("end", id, userID)
}

func (f *fakeReadingService) Close(ctx context.Context) {}

type fakeProfileService struct {
	profile *domain.Profile
	err     error
	updated domain.UpdateProfileParams
}

func (f *fakeProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func (f *fakeProfileService) UpdateProfile(ctx context.Context, params domain.UpdateProfileParams) (*domain.Profile, error) {
	f.updated = params
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakePaymentService struct {
	err error

	purchases     []service.CreditPurchase
	linked        map[uuid.UUID]string
	byUser        map[uuid.UUID]service.SubscriptionChange
	byCustomer    map[string]service.SubscriptionChange
	customerCalls int
}

func newFakePaymentService() *fakePaymentService {
	return &fakePaymentService{
		linked:     make(map[uuid.UUID]string),
		byUser:     make(map[uuid.UUID]service.SubscriptionChange),
		byCustomer: make(map[string]service.SubscriptionChange),
	}
}

func (f *fakePaymentService) ApplyCreditPurchase(ctx context.Context, p service.CreditPurchase) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.purchases = append(f.purchases, p)
	return 10, nil
}

func (f *fakePaymentService) LinkCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	if f.err != nil {
		return f.err
	}
	f.linked[userID] = customerID
	return nil
}

func (f *fakePaymentService) SetSubscription(ctx context.Context, userID uuid.UUID, change service.SubscriptionChange) error {
	if f.err != nil {
		return f.err
	}
	f.byUser[userID] = change
	return nil
}

func (f *fakePaymentService) SetSubscriptionByCustomer(ctx context.Context, customerID string, change service.SubscriptionChange) error {
	f.customerCalls++
	if f.err != nil {
		return f.err
	}
	f.byCustomer[customerID] = change
	return nil
}
