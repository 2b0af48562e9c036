package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/safedispatch/relay/internal/domain"
)

// CallStore owns every call session record. Nobody touches the underlying
// map directly; all access goes through these operations under one lock.
type CallStore struct {
	mu    sync.RWMutex
	calls map[domain.CallID]*domain.Call
	ttl   time.Duration
}

func NewCallStore(ttl time.Duration) *CallStore {
	return &CallStore{
		calls: make(map[domain.CallID]*domain.Call),
		ttl:   ttl,
	}
}

// Create allocates a call ID and a token pair and stores an active record
// expiring one TTL from now. It never fails.
func (s *CallStore) Create() domain.Call {
	c := &domain.Call{
		ID:             NewCallID(),
		CallerToken:    NewToken(),
		ResponderToken: NewToken(),
		ExpiresAt:      time.Now().Add(s.ttl),
		Active:         true,
	}
	s.mu.Lock()
	s.calls[c.ID] = c
	s.mu.Unlock()
	metricCallsCreated.Inc()
	log.Info().Str("module", "app.callstore").Str("call_id", string(c.ID)).Time("expires_at", c.ExpiresAt).Msg("call created")
	return *c
}

// Get returns a snapshot of the record.
func (s *CallStore) Get(id domain.CallID) (domain.Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[id]
	if !ok {
		return domain.Call{}, false
	}
	return *c, true
}

// Deactivate idempotently flips the call inactive. No-op when absent or
// already inactive. A deactivated call is never resurrected.
func (s *CallStore) Deactivate(id domain.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivateLocked(id)
}

func (s *CallStore) deactivateLocked(id domain.CallID) {
	c, ok := s.calls[id]
	if !ok || !c.Active {
		return
	}
	c.Active = false
	metricCallsEnded.Inc()
	log.Info().Str("module", "app.callstore").Str("call_id", string(id)).Msg("call deactivated")
}

// IsLive is the single authorization gate: exists, active, and not yet
// expired at the given instant.
func (s *CallStore) IsLive(id domain.CallID, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[id]
	return ok && c.Live(now)
}

// LatestActive returns the live call with the greatest ExpiresAt, i.e. the
// most recently created one. Ties break on the lexicographically smallest
// ID so the answer is stable across repeated polls.
func (s *CallStore) LatestActive(now time.Time) (domain.Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *domain.Call
	for _, c := range s.calls {
		if !c.Live(now) {
			continue
		}
		if best == nil ||
			c.ExpiresAt.After(best.ExpiresAt) ||
			(c.ExpiresAt.Equal(best.ExpiresAt) && c.ID < best.ID) {
			best = c
		}
	}
	if best == nil {
		return domain.Call{}, false
	}
	return *best, true
}

// Authorize validates a join atomically: the read and the expiry side effect
// happen under one lock, so no concurrent end-call can be missed. Detecting
// expiry deactivates the record; every other failure mutates nothing.
func (s *CallStore) Authorize(id domain.CallID, role domain.Role, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		metricJoinsRejected.Inc()
		return domain.ErrCallNotFound
	}
	if !c.Active {
		metricJoinsRejected.Inc()
		return domain.ErrCallEnded
	}
	if !now.Before(c.ExpiresAt) {
		s.deactivateLocked(id)
		metricCallsExpired.Inc()
		metricJoinsRejected.Inc()
		return domain.ErrCallExpired
	}
	if !VerifyToken(role, token, c) {
		metricJoinsRejected.Inc()
		return domain.ErrInvalidToken
	}
	metricJoinsAccepted.Inc()
	return nil
}

// Sweep removes records that went stale at least one full TTL ago. Purely
// memory reclamation; IsLive stays the liveness authority. Check and remove
// hold the lock together, so a record under concurrent validation cannot be
// pulled out from under the validator.
func (s *CallStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.calls {
		if c.ExpiresAt.Before(cutoff) {
			delete(s.calls, id)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Str("module", "app.callstore").Int("removed", removed).Msg("swept stale calls")
	}
	return removed
}

// Run sweeps periodically until the context is canceled.
func (s *CallStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}
