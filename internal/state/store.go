package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

// JobView is the UI's view of the on-demand job being tracked.
type JobView struct {
	JobID      string
	Status     backend.JobState
	Stats      backend.JobStats
	Attempts   int
	TimedOut   bool
	Terminal   bool
	LastPolled time.Time
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Eligibility       *backend.Eligibility
	EligibilityAt     time.Time
	Stale             bool
	Job               *JobView
	LastJobError      error
	ConsecutiveMisses int // eligibility fetches that returned nothing, in a row
}

// HasEligibility reports whether a usable eligibility payload is cached.
func (s Snapshot) HasEligibility() bool {
	return s.Eligibility != nil && !s.Stale
}

// IsOffline returns true when eligibility has been unavailable repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveMisses >= 2
}

// Fetcher loads eligibility. A nil result means no information is available.
type Fetcher func(ctx context.Context) *backend.Eligibility

// Store coordinates concurrent updates to the snapshot. The zero value is
// usable; Refresh needs a Fetcher from NewStore.
type Store struct {
	fetch Fetcher
	group singleflight.Group

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore returns a store that refreshes eligibility through fetch.
func NewStore(fetch Fetcher) *Store {
	return &Store{fetch: fetch}
}

// Refresh fetches eligibility and records it. Concurrent callers share one
// request.
func (s *Store) Refresh(ctx context.Context) {
	if s.fetch == nil {
		return
	}
	_, _, _ = s.group.Do("eligibility", func() (any, error) {
		s.UpdateEligibility(s.fetch(ctx))
		return nil, nil
	})
}

// Invalidate marks the cached eligibility stale until the next successful
// refresh. The data is kept for display.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Stale = true
}

// UpdateEligibility records a fetch result. nil keeps the previous payload but
// counts a miss.
func (s *Store) UpdateEligibility(e *backend.Eligibility) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e == nil {
		s.snapshot.ConsecutiveMisses++
		return
	}
	s.snapshot.Eligibility = cloneEligibility(e)
	s.snapshot.EligibilityAt = time.Now()
	s.snapshot.Stale = false
	s.snapshot.ConsecutiveMisses = 0
}

// Entitlement looks name up in the cached payload. Stale data is not used.
func (s *Store) Entitlement(name string) (backend.EntitlementStatus, quota.Record, bool) {
	status, rec, _, ok := s.EntitlementAt(name)
	return status, rec, ok
}

// EntitlementAt is Entitlement plus the time the payload was recorded.
func (s *Store) EntitlementAt(name string) (backend.EntitlementStatus, quota.Record, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot.Stale {
		return backend.EntitlementStatus{}, quota.Record{}, time.Time{}, false
	}
	status, rec, ok := s.snapshot.Eligibility.Entitlement(name)
	return status, rec, s.snapshot.EligibilityAt, ok
}

// UpdateJob replaces the tracked job. When err is non-nil the previous view is
// kept and the error recorded.
func (s *Store) UpdateJob(view JobView, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastJobError = err
		return
	}
	v := view
	s.snapshot.Job = &v
	s.snapshot.LastJobError = nil
}

// ClearJob forgets the tracked job.
func (s *Store) ClearJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Job = nil
	s.snapshot.LastJobError = nil
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Eligibility = cloneEligibility(s.snapshot.Eligibility)
	if s.snapshot.Job != nil {
		job := *s.snapshot.Job
		snap.Job = &job
	}
	if s.snapshot.LastJobError != nil {
		snap.LastJobError = fmt.Errorf("%w", s.snapshot.LastJobError)
	}
	return snap
}

func cloneEligibility(e *backend.Eligibility) *backend.Eligibility {
	if e == nil {
		return nil
	}
	dup := *e
	if e.Entitlements != nil {
		dup.Entitlements = make(map[string]backend.EntitlementStatus, len(e.Entitlements))
		for k, v := range e.Entitlements {
			dup.Entitlements[k] = cloneStatus(v)
		}
	}
	return &dup
}

func cloneStatus(v backend.EntitlementStatus) backend.EntitlementStatus {
	if v.Remaining != nil {
		n := *v.Remaining
		v.Remaining = &n
	}
	if v.DaysUntilReset != nil {
		n := *v.DaysUntilReset
		v.DaysUntilReset = &n
	}
	return v
}
