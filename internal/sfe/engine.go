package sfe

import (
	"sync"

	"github.com/captured/llm-capture/internal/attempt"
	"github.com/captured/llm-capture/internal/model"
)

// Decision is the single monotonic readiness decision the SFE reports
// per (conversation, attempt) (spec.md §4.4).
type Decision string

const (
	DecisionAwaitingPrompt        Decision = "awaiting_prompt"
	DecisionAwaitingStream        Decision = "awaiting_stream"
	DecisionAwaitingStabilization Decision = "awaiting_stabilization"
	DecisionCanonicalReady        Decision = "canonical_ready"
	DecisionDegradedReady         Decision = "degraded_ready"
	DecisionTerminated            Decision = "terminated"
)

// Engine fuses an attempt's lifecycle phase with its Gate result into
// one Decision, and is the unit the runner drives per attempt.
type Engine struct {
	mu    sync.Mutex
	gate  *Gate
	state map[string]Decision // attemptID -> last decision, for monotonic emission
}

// NewEngine creates an Engine with the given gate configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		gate:  New(cfg),
		state: make(map[string]Decision),
	}
}

// IngestLifecycle updates the decision for a newly-observed lifecycle
// phase, before any canonical sample has arrived.
func (e *Engine) IngestLifecycle(a *attempt.Attempt) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	var d Decision
	switch {
	case a.IsSuperseded():
		d = DecisionTerminated
	case a.Phase == attempt.PhaseTerminated:
		d = DecisionTerminated
	case a.Phase == attempt.PhaseIdle || a.Phase == attempt.PhasePromptSent:
		d = DecisionAwaitingPrompt
	case a.Phase == attempt.PhaseStreaming:
		d = DecisionAwaitingStream
	default: // completed, awaiting a canonical sample
		d = DecisionAwaitingStabilization
	}
	e.state[a.ID] = d
	return d
}

// ApplyCanonical folds a canonical sample into the readiness gate and
// returns the resulting Decision for this attempt. A stabilization
// timeout downgrades the decision to degraded_ready rather than
// blocking forever (spec.md §7: "Decision becomes degraded_ready").
func (e *Engine) ApplyCanonical(a *attempt.Attempt, sample CanonicalSample) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := e.gate.ApplyCanonicalSample(a.IsSuperseded(), sample)

	var d Decision
	switch {
	case a.IsSuperseded():
		d = DecisionTerminated
	case result.Ready:
		d = DecisionCanonicalReady
	case result.Blocking == BlockingStabilizationTimeout:
		d = DecisionDegradedReady
	default:
		d = DecisionAwaitingStabilization
	}
	e.state[a.ID] = d
	return d
}

// Forget drops both the engine's last-known decision and the gate's
// sample state for attemptID (e.g. on ATTEMPT_DISPOSED).
func (e *Engine) Forget(attemptID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.state, attemptID)
	e.gate.Forget(attemptID)
}

// Current returns the last decision recorded for attemptID.
func (e *Engine) Current(attemptID string) (Decision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.state[attemptID]
	return d, ok
}

// SampleFromConversation builds a CanonicalSample from a parsed
// Conversation and its adapter-evaluated PlatformReadiness, the shape
// the runner hands to ApplyCanonical after a successful
// Adapter.parseInterceptedData + Adapter.evaluateReadiness pair.
func SampleFromConversation(attemptID, conversationID string, timestampMs int64, conv *model.Conversation, r model.PlatformReadiness) CanonicalSample {
	return CanonicalSample{
		AttemptID:      attemptID,
		ConversationID: conversationID,
		TimestampMs:    timestampMs,
		ContentHash:    r.ContentHash,
		Terminal:       r.Terminal,
		TextLength:     r.LatestAssistantTextLength,
	}
}
