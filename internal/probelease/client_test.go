package probelease

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type failingTransport struct{}

func (failingTransport) Claim(ctx context.Context, conversationID, attemptID string, ttlMs int64) (ClaimResult, error) {
	return ClaimResult{}, errors.New("transport unavailable")
}

func (failingTransport) Release(ctx context.Context, conversationID, attemptID string) (bool, error) {
	return false, errors.New("transport unavailable")
}

type workingTransport struct {
	store *Store
}

func (t workingTransport) Claim(ctx context.Context, conversationID, attemptID string, ttlMs int64) (ClaimResult, error) {
	return t.store.Claim(conversationID, attemptID, ttlMs, 0), nil
}

func (t workingTransport) Release(ctx context.Context, conversationID, attemptID string) (bool, error) {
	return t.store.Release(conversationID, attemptID), nil
}

func TestClientFailsOpenOnTransportError(t *testing.T) {
	c := NewClient(failingTransport{}, zerolog.Nop(), func() int64 { return 1000 })

	result := c.Claim(context.Background(), "c1", "a1", 5000)
	if !result.Acquired {
		t.Error("Claim should fail open (Acquired=true) on transport error")
	}
	if result.ExpiresAtMs != 6000 {
		t.Errorf("ExpiresAtMs = %d, want 6000", result.ExpiresAtMs)
	}

	if released := c.Release(context.Background(), "c1", "a1"); !released {
		t.Error("Release should fail open (true) on transport error")
	}
}

func TestClientDelegatesToWorkingTransport(t *testing.T) {
	store := NewStore()
	c := NewClient(workingTransport{store: store}, zerolog.Nop(), func() int64 { return 0 })

	r1 := c.Claim(context.Background(), "c1", "a1", 5000)
	if !r1.Acquired {
		t.Fatal("expected first claim to succeed")
	}
	r2 := c.Claim(context.Background(), "c1", "a2", 5000)
	if r2.Acquired {
		t.Error("expected second claim to be denied by the real store, not failed open")
	}
}
