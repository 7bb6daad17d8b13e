// Package probelease implements the owner-process Probe Lease
// Coordinator (spec.md §4.5): a single in-memory lease store that
// guarantees at most one attempt drives readiness probing for a given
// conversation, plus a fail-open client wrapper for callers on the
// other side of a possibly-unreliable transport.
package probelease

import "sync"

// Lease is one conversation's current exclusive probing right.
type Lease struct {
	ConversationID string
	AttemptID      string
	ExpiresAtMs    int64
}

// ClaimResult is the CLAIM_RESULT response (spec.md §4.5).
type ClaimResult struct {
	Acquired       bool
	OwnerAttemptID string
	ExpiresAtMs    int64
}

// Store is the owner process's single in-memory lease table. It is
// owned by one process's single-threaded loop (spec.md §5: "no locking
// is required beyond the owner's single-threaded loop"); the mutex here
// only guards against incidental concurrent access from, e.g., the
// hub's HTTP handler goroutines.
type Store struct {
	mu     sync.Mutex
	leases map[string]Lease
}

// NewStore creates an empty lease store.
func NewStore() *Store {
	return &Store{leases: make(map[string]Lease)}
}

// Claim implements CLAIM (spec.md §4.5): acquires if there is no
// record, the current record has expired as of nowMs, or the current
// record's attemptId already equals attemptID (self-refresh).
// Otherwise it returns the current owner unchanged.
func (s *Store) Claim(conversationID, attemptID string, ttlMs, nowMs int64) ClaimResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.leases[conversationID]
	if exists && current.ExpiresAtMs > nowMs && current.AttemptID != attemptID {
		return ClaimResult{
			Acquired:       false,
			OwnerAttemptID: current.AttemptID,
			ExpiresAtMs:    current.ExpiresAtMs,
		}
	}

	expiresAt := nowMs + ttlMs
	s.leases[conversationID] = Lease{
		ConversationID: conversationID,
		AttemptID:      attemptID,
		ExpiresAtMs:    expiresAt,
	}
	return ClaimResult{Acquired: true, OwnerAttemptID: attemptID, ExpiresAtMs: expiresAt}
}

// Release implements RELEASE (spec.md §4.5): succeeds only when
// attemptID matches the current owner.
func (s *Store) Release(conversationID, attemptID string) (released bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.leases[conversationID]
	if !exists || current.AttemptID != attemptID {
		return false
	}
	delete(s.leases, conversationID)
	return true
}

// Lookup returns the current lease for conversationID, if any, without
// mutating the store.
func (s *Store) Lookup(conversationID string) (Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[conversationID]
	return l, ok
}

// Len reports how many conversations currently hold a lease record
// (expired or not) — used by tests and diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leases)
}
