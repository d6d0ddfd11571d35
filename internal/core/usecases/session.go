package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/hazard"
)

// outcome is the result of one recomputation, delivered to every caller
// whose update it covers.
type outcome struct {
	version uint64
	route   *domain.Route
	status  domain.SessionStatus
	err     error
}

type waiter struct {
	version uint64
	ch      chan outcome
}

// job is a consistent snapshot of session inputs taken when a search starts.
type job struct {
	ctx      context.Context
	cancel   context.CancelFunc
	version  uint64
	traveler domain.Cell
	hazard   *domain.Cell
	zones    []domain.Cell
}

// session holds the mutable state of one traveler. All fields below mu are
// guarded by it. The hazard field is owned by the recompute loop goroutine.
type session struct {
	id    string
	field *hazard.Field

	mu           sync.Mutex
	status       domain.SessionStatus
	settled      domain.SessionStatus
	version      uint64
	computed     uint64
	blockedAt    uint64
	traveler     domain.Cell
	hazard       *domain.Cell
	zones        []domain.Cell
	route        *domain.Route
	recomputes   int
	createdAt    time.Time
	lastActivity time.Time
	cancelSearch context.CancelFunc
	waiters      []waiter

	kick chan struct{}
	done chan struct{}
}

func newSession(id string, field *hazard.Field, traveler domain.Cell, zones []domain.Cell, now time.Time) *session {
	return &session{
		id:           id,
		field:        field,
		status:       domain.StatusActive,
		settled:      domain.StatusActive,
		version:      1,
		traveler:     traveler,
		zones:        zones,
		createdAt:    now,
		lastActivity: now,
		kick:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// mutate applies fn under the lock, bumps the version, cancels any search
// running for an older version and schedules a new one. The returned channel
// yields the first outcome covering this version.
func (s *session) mutate(now time.Time, fn func()) (<-chan outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusTerminated {
		return nil, false
	}

	fn()
	s.version++
	s.status = domain.StatusActive
	s.lastActivity = now
	if s.cancelSearch != nil {
		s.cancelSearch()
	}

	ch := make(chan outcome, 1)
	s.waiters = append(s.waiters, waiter{version: s.version, ch: ch})

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return ch, true
}

// begin snapshots the latest inputs. It reports false when the session is
// gone or the latest version has already been computed.
func (s *session) begin(timeout time.Duration) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusTerminated || s.computed == s.version {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	s.cancelSearch = cancel
	s.recomputes++

	j := &job{
		ctx:      ctx,
		cancel:   cancel,
		version:  s.version,
		traveler: s.traveler,
		zones:    s.zones,
	}
	if s.hazard != nil {
		h := *s.hazard
		j.hazard = &h
	}
	return j, true
}

// finish records the outcome of j if it is still current and wakes the
// waiters it covers. Superseded results are discarded.
func (s *session) finish(j *job, out outcome) (outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusTerminated || j.version != s.version {
		return outcome{}, false
	}
	s.cancelSearch = nil
	s.computed = j.version

	switch out.status {
	case domain.StatusRouted:
		s.route = out.route
		s.settled = domain.StatusRouted
	case domain.StatusBlocked:
		s.route = nil
		s.settled = domain.StatusBlocked
		s.blockedAt = j.version
		out.err = &domain.UnreachableError{Version: j.version}
	default:
		// Failed search: fall back to the last settled state and keep the old
		// route, which is now reported as stale.
		out.status = s.settled
	}
	s.status = out.status
	out.version = j.version

	pending := s.waiters[:0]
	for _, w := range s.waiters {
		if w.version <= j.version {
			w.ch <- out
			continue
		}
		pending = append(pending, w)
	}
	s.waiters = pending
	return out, true
}

// terminate marks the session closed and releases everything blocked on it.
func (s *session) terminate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusTerminated {
		return false
	}
	s.status = domain.StatusTerminated
	if s.cancelSearch != nil {
		s.cancelSearch()
	}
	for _, w := range s.waiters {
		w.ch <- outcome{version: s.version, status: domain.StatusTerminated, err: domain.ErrSessionNotFound}
	}
	s.waiters = nil
	close(s.done)
	return true
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// snapshot returns a copy of the session safe to hand to callers.
func (s *session) snapshot(center func(domain.Cell) domain.GeoPoint) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &domain.Session{
		ID:             s.id,
		Status:         s.status,
		Version:        s.version,
		Traveler:       center(s.traveler),
		SafeZones:      make([]domain.GeoPoint, len(s.zones)),
		Recomputations: s.recomputes,
		CreatedAt:      s.createdAt,
		LastActivity:   s.lastActivity,
	}
	for i, z := range s.zones {
		snap.SafeZones[i] = center(z)
	}
	if s.hazard != nil {
		h := center(*s.hazard)
		snap.Hazard = &h
	}
	snap.Route = s.currentRoute()
	return snap
}

// currentRoute returns a copy of the stored route flagged stale when it was
// computed for an older version. Callers must hold mu.
func (s *session) currentRoute() *domain.Route {
	if s.route == nil {
		return nil
	}
	r := *s.route
	r.Stale = r.Version != s.version
	return &r
}
