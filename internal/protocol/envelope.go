// Package protocol defines the message envelope exchanged between the
// untrusted page context (fetch/XHR hooks) and the trusted controller
// context, and the origin/token checks that gate it (spec.md §4.1,
// §6.1).
//
// Grounded on the teacher's pkg/connector/envelope.go (a typed message
// envelope keyed by a discriminator) and pkg/matrixevents/matrixevents.go
// (stable, exported constants for every message type the bridge emits).
package protocol

// MessageType discriminates the payload carried by a Message.
type MessageType string

const (
	TypeLifecycle        MessageType = "RESPONSE_LIFECYCLE"
	TypeStreamDelta       MessageType = "STREAM_DELTA"
	TypeDataIntercepted   MessageType = "LLM_CAPTURE_DATA_INTERCEPTED"
	TypeAttemptDisposed   MessageType = "ATTEMPT_DISPOSED"
	TypeStreamDumpConfig  MessageType = "STREAM_DUMP_CONFIG"
	TypeProbeLeaseClaim   MessageType = "PROBE_LEASE_CLAIM"
	TypeProbeLeaseRelease MessageType = "PROBE_LEASE_RELEASE"
	TypeProbeLeaseClaimResult   MessageType = "PROBE_LEASE_CLAIM_RESULT"
	TypeProbeLeaseReleaseResult MessageType = "PROBE_LEASE_RELEASE_RESULT"
)

// Phase is an attempt lifecycle phase as carried on the wire.
type Phase string

const (
	PhasePromptSent Phase = "prompt-sent"
	PhaseStreaming  Phase = "streaming"
	PhaseCompleted  Phase = "completed"
)

// Envelope is the common shape of every page↔controller message. All
// other fields depend on Type, carried in the Payload union below.
type Envelope struct {
	Type           MessageType `json:"type"`
	SessionToken   string      `json:"__sessionToken"`
	AttemptID      string      `json:"attemptId,omitempty"`
	Lifecycle      *LifecyclePayload      `json:"lifecycle,omitempty"`
	StreamDelta    *StreamDeltaPayload    `json:"streamDelta,omitempty"`
	DataIntercepted *DataInterceptedPayload `json:"dataIntercepted,omitempty"`
	AttemptDisposed *AttemptDisposedPayload `json:"attemptDisposed,omitempty"`
	StreamDumpConfig *StreamDumpConfigPayload `json:"streamDumpConfig,omitempty"`
	ProbeLeaseClaim   *ProbeLeaseClaimPayload   `json:"probeLeaseClaim,omitempty"`
	ProbeLeaseRelease *ProbeLeaseReleasePayload `json:"probeLeaseRelease,omitempty"`
}

// LifecyclePayload carries a LIFECYCLE message (spec.md §6.1).
type LifecyclePayload struct {
	Platform       string  `json:"platform"`
	Phase          Phase   `json:"phase"`
	ConversationID *string `json:"conversationId"`
}

// StreamDeltaPayload carries a STREAM_DELTA message.
type StreamDeltaPayload struct {
	Platform       string  `json:"platform"`
	Source         string  `json:"source"`
	ConversationID *string `json:"conversationId"`
	Text           string  `json:"text"`
}

// DataInterceptedPayload carries a DATA_INTERCEPTED message. Data is
// either a raw string (SSE text, batchexecute blob) or an already
// decoded object, matching spec.md §6.1's `string|object` union.
type DataInterceptedPayload struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Data     any    `json:"data"`
}

// AttemptDisposedPayload carries an ATTEMPT_DISPOSED message.
type AttemptDisposedPayload struct {
	Reason string `json:"reason"`
}

// StreamDumpConfigPayload carries a STREAM_DUMP_CONFIG message.
type StreamDumpConfigPayload struct {
	Enabled bool `json:"enabled"`
}

// ProbeLeaseClaimPayload carries a PROBE_LEASE_CLAIM message (spec.md §4.5).
type ProbeLeaseClaimPayload struct {
	ConversationID string `json:"conversationId"`
	TTLMs          int64  `json:"ttlMs"`
}

// ProbeLeaseReleasePayload carries a PROBE_LEASE_RELEASE message.
type ProbeLeaseReleasePayload struct {
	ConversationID string `json:"conversationId"`
}

// HasAttemptID reports whether env carries an attemptId, as required
// for every lifecycle/stream/data message (spec.md §4.1: "legacy
// attempt-less messages are rejected").
func (env Envelope) HasAttemptID() bool {
	return env.AttemptID != ""
}

// RequiresAttemptID reports whether this message type is one of the
// lifecycle/stream/data kinds that must carry an attemptId.
func RequiresAttemptID(t MessageType) bool {
	switch t {
	case TypeLifecycle, TypeStreamDelta, TypeDataIntercepted, TypeAttemptDisposed:
		return true
	default:
		return false
	}
}

// PhasePriority orders lifecycle phases for monotonicity checks
// (spec.md §4.3: "prompt-sent < streaming < completed < terminated").
func PhasePriority(p Phase) int {
	switch p {
	case PhasePromptSent:
		return 1
	case PhaseStreaming:
		return 2
	case PhaseCompleted:
		return 3
	default:
		return 0
	}
}
