package probelease

import (
	"context"

	"github.com/rs/zerolog"
)

// Transport sends CLAIM/RELEASE RPCs to the owner process (spec.md
// §4.5) across whatever cross-context channel the runner uses.
type Transport interface {
	Claim(ctx context.Context, conversationID, attemptID string, ttlMs int64) (ClaimResult, error)
	Release(ctx context.Context, conversationID, attemptID string) (bool, error)
}

// Client is the runner-side wrapper around Transport that fails open on
// transport error: a failed CLAIM/RELEASE is treated as acquired with a
// client-side TTL, a deliberate availability bias documented in
// spec.md §4.5 and relied upon being safe only because readiness is
// still gated by the SFE's stability window (spec.md §9).
type Client struct {
	transport Transport
	log       zerolog.Logger
	now       func() int64
}

// NewClient builds a Client. now must return the current time in
// milliseconds; it is injected so callers can drive it deterministically
// in tests.
func NewClient(transport Transport, log zerolog.Logger, now func() int64) *Client {
	return &Client{transport: transport, log: log.With().Str("component", "probelease_client").Logger(), now: now}
}

// Claim attempts CLAIM over the transport; on transport error it fails
// open, returning an acquired result with expiresAtMs computed from the
// caller-supplied ttlMs against the client's own clock.
func (c *Client) Claim(ctx context.Context, conversationID, attemptID string, ttlMs int64) ClaimResult {
	result, err := c.transport.Claim(ctx, conversationID, attemptID, ttlMs)
	if err != nil {
		c.log.Warn().Err(err).Str("conversation_id", conversationID).Str("attempt_id", attemptID).
			Msg("probe lease claim failed open after transport error")
		return ClaimResult{
			Acquired:       true,
			OwnerAttemptID: attemptID,
			ExpiresAtMs:    c.now() + ttlMs,
		}
	}
	return result
}

// Release attempts RELEASE over the transport; on transport error it
// fails open by reporting success, since the owner-side lease will
// simply expire and deny no one in the meantime.
func (c *Client) Release(ctx context.Context, conversationID, attemptID string) bool {
	released, err := c.transport.Release(ctx, conversationID, attemptID)
	if err != nil {
		c.log.Warn().Err(err).Str("conversation_id", conversationID).Str("attempt_id", attemptID).
			Msg("probe lease release failed open after transport error")
		return true
	}
	return released
}
