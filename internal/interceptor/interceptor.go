// Package interceptor models the page-context fetch/XHR hooking
// described in spec.md §2 "Interceptor (page context)" (SPEC_FULL.md
// §4.9): it wraps an http.RoundTripper, classifies each request/
// response against the active adapter's APIEndpointPattern, and emits
// protocol.Envelope values (RESPONSE_LIFECYCLE, STREAM_DELTA,
// LLM_CAPTURE_DATA_INTERCEPTED, ATTEMPT_DISPOSED) onto
// a channel the runner consumes — the Go-idiomatic analogue of
// postMessage in a single process.
//
// Grounded on the teacher's pkg/connector/streaming.go (per-turn
// accumulation state that owns nothing beyond one in-flight response)
// and pkg/connector/codex_client.go's non-blocking
// `select { case ch <- v: default: }` event-delivery idiom, used here
// so a stalled runner never blocks an in-flight HTTP round trip.
package interceptor

import (
	"bytes"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/captured/llm-capture/internal/adapter"
	"github.com/captured/llm-capture/internal/protocol"
)

// Hook wraps a base http.RoundTripper, classifying traffic against a
// registry of platform adapters and emitting protocol.Envelope values
// for anything that matches. It owns no state beyond per-request
// bookkeeping: each RoundTrip call is independent (spec.md §2).
type Hook struct {
	base         http.RoundTripper
	registry     *adapter.Registry
	sessionToken string
	events       chan protocol.Envelope
	log          zerolog.Logger
	newAttemptID func(platform string) string
}

// New builds a Hook delegating non-matching traffic to base. events is
// the channel the runner drains; a capacity of 4096 matches the
// teacher's codex_client.go notification channel sizing.
func New(base http.RoundTripper, registry *adapter.Registry, sessionToken string, log zerolog.Logger) *Hook {
	if base == nil {
		base = http.DefaultTransport
	}
	h := &Hook{
		base:         base,
		registry:     registry,
		sessionToken: sessionToken,
		events:       make(chan protocol.Envelope, 4096),
		log:          log.With().Str("component", "interceptor").Logger(),
	}
	h.newAttemptID = func(platform string) string {
		return platform + ":" + uuid.NewString()
	}
	return h
}

// Events returns the channel of emitted envelopes. Callers must drain
// it; emission never blocks (see emit).
func (h *Hook) Events() <-chan protocol.Envelope {
	return h.events
}

// RoundTrip implements http.RoundTripper. Requests that don't match any
// registered adapter's API endpoint pattern pass through untouched.
func (h *Hook) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	a, ok := h.registry.ForURL(url)
	if !ok || !a.APIEndpointPattern().MatchString(url) {
		return h.base.RoundTrip(req)
	}

	attemptID := h.newAttemptID(a.Name())
	h.emitLifecycle(a.Name(), attemptID, protocol.PhasePromptSent, nil)

	resp, err := h.base.RoundTrip(req)
	if err != nil {
		h.emitAttemptDisposed(attemptID, "transport_error")
		return resp, err
	}

	convID, _ := adapter.ExtractConversationIDFromURL(a, url)
	var convIDPtr *string
	if convID != "" {
		convIDPtr = &convID
	}
	h.emitLifecycle(a.Name(), attemptID, protocol.PhaseStreaming, convIDPtr)

	resp.Body = &interceptedBody{
		ReadCloser:     resp.Body,
		hook:           h,
		platform:       a.Name(),
		attemptID:      attemptID,
		conversationID: convIDPtr,
		url:            url,
	}
	return resp, nil
}

// emit delivers env without blocking: if the runner's channel is full,
// the envelope is dropped and logged, matching the teacher's
// codex_client.go `select { case ch<-v: default: }` idiom — a stalled
// consumer must never stall an in-flight HTTP round trip.
func (h *Hook) emit(env protocol.Envelope) {
	select {
	case h.events <- env:
	default:
		h.log.Warn().Str("type", string(env.Type)).Str("attempt_id", env.AttemptID).
			Msg("interceptor event dropped, channel full")
	}
}

func (h *Hook) emitLifecycle(platform, attemptID string, phase protocol.Phase, conversationID *string) {
	h.emit(protocol.Envelope{
		Type:         protocol.TypeLifecycle,
		SessionToken: h.sessionToken,
		AttemptID:    attemptID,
		Lifecycle: &protocol.LifecyclePayload{
			Platform:       platform,
			Phase:          phase,
			ConversationID: conversationID,
		},
	})
}

func (h *Hook) emitStreamDelta(platform, attemptID string, conversationID *string, text string) {
	h.emit(protocol.Envelope{
		Type:         protocol.TypeStreamDelta,
		SessionToken: h.sessionToken,
		AttemptID:    attemptID,
		StreamDelta: &protocol.StreamDeltaPayload{
			Platform:       platform,
			Source:         "fetch",
			ConversationID: conversationID,
			Text:           text,
		},
	})
}

func (h *Hook) emitDataIntercepted(platform, attemptID, url, data string) {
	h.emit(protocol.Envelope{
		Type:         protocol.TypeDataIntercepted,
		SessionToken: h.sessionToken,
		AttemptID:    attemptID,
		DataIntercepted: &protocol.DataInterceptedPayload{
			Platform: platform,
			URL:      url,
			Data:     data,
		},
	})
}

func (h *Hook) emitAttemptDisposed(attemptID, reason string) {
	h.emit(protocol.Envelope{
		Type:            protocol.TypeAttemptDisposed,
		SessionToken:    h.sessionToken,
		AttemptID:       attemptID,
		AttemptDisposed: &protocol.AttemptDisposedPayload{Reason: reason},
	})
}

// interceptedBody tees response body bytes out as STREAM_DELTA
// envelopes while the caller reads it normally, and emits one final
// DATA_INTERCEPTED plus a completed LIFECYCLE when the body is
// exhausted or closed — whichever happens first, and only once.
type interceptedBody struct {
	io.ReadCloser
	hook           *Hook
	platform       string
	attemptID      string
	conversationID *string
	url            string
	buf            bytes.Buffer
	done           bool
}

func (b *interceptedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.buf.Write(p[:n])
		b.hook.emitStreamDelta(b.platform, b.attemptID, b.conversationID, string(p[:n]))
	}
	if err == io.EOF {
		b.finish()
	}
	return n, err
}

func (b *interceptedBody) Close() error {
	b.finish()
	return b.ReadCloser.Close()
}

func (b *interceptedBody) finish() {
	if b.done {
		return
	}
	b.done = true
	b.hook.emitDataIntercepted(b.platform, b.attemptID, b.url, b.buf.String())
	b.hook.emitLifecycle(b.platform, b.attemptID, protocol.PhaseCompleted, b.conversationID)
}
