package model

// CaptureSource identifies how a Conversation sample was obtained.
type CaptureSource string

const (
	CaptureSourceCanonicalAPI    CaptureSource = "canonical_api"
	CaptureSourceDOMSnapshot     CaptureSource = "dom_snapshot_degraded"
)

// Fidelity describes how trustworthy a sample is.
type Fidelity string

const (
	FidelityHigh     Fidelity = "high"
	FidelityDegraded Fidelity = "degraded"
)

// Completeness describes whether a sample is the whole conversation.
type Completeness string

const (
	CompletenessComplete Completeness = "complete"
	CompletenessPartial  Completeness = "partial"
)

// ExportMeta tags a captured Conversation with provenance (spec.md §3.3).
type ExportMeta struct {
	CaptureSource CaptureSource `json:"captureSource"`
	Fidelity      Fidelity      `json:"fidelity"`
	Completeness  Completeness  `json:"completeness"`
}

// IsCanonicalHighFidelity reports whether m is eligible to short-circuit
// warm-fetch recovery or be ingested as an SFE canonical sample.
func (m ExportMeta) IsCanonicalHighFidelity() bool {
	return m.CaptureSource == CaptureSourceCanonicalAPI && m.Fidelity == FidelityHigh
}

// ShouldIngestAsCanonicalSample implements the SFE ingest predicate
// from spec.md §4.4: shouldIngestAsCanonicalSample(meta) = meta.captureSource
// == "canonical_api" && meta.fidelity == "high".
func ShouldIngestAsCanonicalSample(meta ExportMeta) bool {
	return meta.CaptureSource == CaptureSourceCanonicalAPI && meta.Fidelity == FidelityHigh
}

// ReadinessReason enumerates why an adapter's readiness evaluator did
// or did not declare a conversation ready (spec.md §3.4).
type ReadinessReason string

const (
	ReasonTerminal                          ReadinessReason = "terminal"
	ReasonAssistantMissing                  ReadinessReason = "assistant-missing"
	ReasonAssistantInProgress               ReadinessReason = "assistant-in-progress"
	ReasonAssistantTextMissing              ReadinessReason = "assistant-text-missing"
	ReasonAssistantTextNotTerminalTurn       ReadinessReason = "assistant-text-not-terminal-turn"
	ReasonAssistantLatestTextNotTerminalTurn ReadinessReason = "assistant-latest-text-not-terminal-turn"
)

// PlatformReadiness is the output of an adapter's readiness evaluator
// (spec.md §3.4).
type PlatformReadiness struct {
	Ready                    bool
	Terminal                 bool
	Reason                   ReadinessReason
	ContentHash              *string
	LatestAssistantTextLength int
}

// Provider identifies which platform a captured conversation came from.
type Provider string

const (
	ProviderChatGPT Provider = "chatgpt"
	ProviderGemini  Provider = "gemini"
	ProviderGrok    Provider = "grok"
	ProviderUnknown Provider = "unknown"
)

// CachedConversationRecord is held by the External Hub (spec.md §3.5).
type CachedConversationRecord struct {
	ConversationID string        `json:"conversation_id"`
	Provider       Provider      `json:"provider"`
	Payload        *Conversation `json:"payload"`
	AttemptID      string        `json:"attempt_id,omitempty"`
	CaptureMeta    ExportMeta    `json:"capture_meta"`
	ContentHash    *string       `json:"content_hash"`
	Ts             int64         `json:"ts"`
	TabID          *int          `json:"tab_id,omitempty"`
}

// ProbeLease is the exclusive, expiring right to drive readiness
// probing for one conversation (spec.md §3.6).
type ProbeLease struct {
	ConversationID string `json:"conversationId"`
	AttemptID      string `json:"attemptId"`
	ExpiresAtMs    int64  `json:"expiresAtMs"`
}
