// Package session holds live reading sessions in memory.
//
// A reading session only lives while the user is on the reading screen, so
// nothing here is persisted. Each session has its own lock: a slow mutation
// on one session never blocks another.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/google/uuid"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 2 * time.Hour

type entry struct {
	mu       sync.Mutex
	session  *domain.ReadingSession
	lastSeen time.Time
}

// Store is a concurrency-safe map of reading sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore creates an empty store. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[uuid.UUID]*entry),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Add registers s in the store.
func (st *Store) Add(s *domain.ReadingSession) {
	st.mu.Lock()
	st.sessions[s.ID] = &entry{session: s, lastSeen: st.now()}
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ReadingSessionsActive.Set(float64(n))
}

// Update runs fn with exclusive access to the session id owned by userID.
// A session owned by someone else is reported as not found.
func (st *Store) Update(id, userID uuid.UUID, fn func(*domain.ReadingSession) error) error {
	e, err := st.lookup(id, userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = st.now()
	if err := fn(e.session); err != nil {
		return err
	}
	e.session.UpdatedAt = e.lastSeen
	return nil
}

// View returns a client view of the session.
func (st *Store) View(id, userID uuid.UUID) (domain.SessionView, error) {
	e, err := st.lookup(id, userID)
	if err != nil {
		return domain.SessionView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = st.now()
	return e.session.View(), nil
}

// Delete removes the session. Deleting an unknown session is not an error.
func (st *Store) Delete(id, userID uuid.UUID) {
	st.mu.Lock()
	if e, ok := st.sessions[id]; ok && e.session.UserID == userID {
		delete(st.sessions, id)
	}
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ReadingSessionsActive.Set(float64(n))
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. A session with a request in flight is kept.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	removed := 0
	for id, e := range st.sessions {
		e.mu.Lock()
		expired := e.lastSeen.Before(cutoff) && !e.session.InFlight
		e.mu.Unlock()
		if expired {
			delete(st.sessions, id)
			removed++
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ReadingSessionsActive.Set(float64(n))
	return removed
}

// Run sweeps the store every interval until ctx is cancelled.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.logger.Info("expired reading sessions removed", "count", n)
			}
		}
	}
}

func (st *Store) lookup(id, userID uuid.UUID) (*entry, error) {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()

	// The owner never changes, so it is safe to read without the entry lock.
	if !ok || e.session.UserID != userID {
		return nil, domain.NotFound("session.lookup", "reading session", id.String())
	}
	return e, nil
}
