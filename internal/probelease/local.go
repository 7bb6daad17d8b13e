package probelease

import "context"

// LocalTransport implements Transport over an in-process Store, for
// the common case (spec.md §5) where the runner and the lease
// coordinator share the owner process's single-threaded loop and there
// is no real cross-context RPC to make. Grounded on client_test.go's
// workingTransport, promoted to a real production type.
type LocalTransport struct {
	store *Store
	now   func() int64
}

// NewLocalTransport builds a Transport backed directly by store.
func NewLocalTransport(store *Store, now func() int64) LocalTransport {
	return LocalTransport{store: store, now: now}
}

func (t LocalTransport) Claim(ctx context.Context, conversationID, attemptID string, ttlMs int64) (ClaimResult, error) {
	return t.store.Claim(conversationID, attemptID, ttlMs, t.now()), nil
}

func (t LocalTransport) Release(ctx context.Context, conversationID, attemptID string) (bool, error) {
	return t.store.Release(conversationID, attemptID), nil
}
