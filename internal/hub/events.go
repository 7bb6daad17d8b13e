// Package hub implements the External Event Hub (spec.md §4.6): the
// owner-process component that ingests canonical-ready samples,
// deduplicates them, broadcasts them to subscriber ports, persists
// them with debouncing and quota-aware shedding, hydrates from storage
// on construction, and serves the pull API.
//
// Grounded on the teacher's pkg/connector/debounce.go (Debouncer,
// generalized here to the hub's single global persistence key),
// pkg/connector/dedupe.go (bounded dispatch-state cache keyed by a
// logical clock), and pkg/memory/hybrid.go's defensive hydrate-and-
// discard-malformed-records style.
package hub

import (
	"github.com/google/uuid"

	"github.com/captured/llm-capture/internal/model"
)

// EventType discriminates a ConversationEvent (spec.md §4.6).
type EventType string

const (
	EventConversationReady   EventType = "conversation.ready"
	EventConversationUpdated EventType = "conversation.updated"
)

// APIVersion is stamped onto every hub response and event.
const APIVersion = "1"

// ConversationEvent is what the hub broadcasts to subscribers
// (spec.md §4.6 step 1).
type ConversationEvent struct {
	API            string            `json:"api"`
	Type           EventType         `json:"type"`
	EventID        string            `json:"event_id"`
	Ts             int64             `json:"ts"`
	Provider       model.Provider    `json:"provider"`
	ConversationID string            `json:"conversation_id"`
	Payload        *model.Conversation `json:"payload"`
	AttemptID      string            `json:"attempt_id,omitempty"`
	CaptureMeta    model.ExportMeta  `json:"capture_meta"`
	ContentHash    *string           `json:"content_hash"`
	TabID          *int              `json:"tab_id,omitempty"`
}

// IngestInput is one canonical-ready, stable, non-blocked sample
// offered to the hub by the runner.
type IngestInput struct {
	ConversationID string
	Provider       model.Provider
	Payload        *model.Conversation
	AttemptID      string
	CaptureMeta    model.ExportMeta
	ContentHash    *string
	TabID          *int
}

// buildEvent constructs a ConversationEvent from in, minting a fresh
// event id and stamping ts from nowMs. eventType is decided by the
// caller (the dedupe layer: first dispatch for a conversation is
// conversation.ready, everything after is conversation.updated).
func buildEvent(in IngestInput, eventType EventType, nowMs int64) ConversationEvent {
	return ConversationEvent{
		API:            APIVersion,
		Type:           eventType,
		EventID:        uuid.NewString(),
		Ts:             nowMs,
		Provider:       in.Provider,
		ConversationID: in.ConversationID,
		Payload:        in.Payload,
		AttemptID:      in.AttemptID,
		CaptureMeta:    in.CaptureMeta,
		ContentHash:    in.ContentHash,
		TabID:          in.TabID,
	}
}
