package hub

import (
	"github.com/captured/llm-capture/internal/commonexport"
	"github.com/captured/llm-capture/internal/model"
)

// RequestMethod discriminates an ExternalRequest (spec.md §4.6 step 7,
// §6.3).
type RequestMethod string

const (
	MethodHealthPing           RequestMethod = "health.ping"
	MethodConversationGetLatest RequestMethod = "conversation.getLatest"
	MethodConversationGetByID   RequestMethod = "conversation.getById"
)

// ExportFormat selects the wire shape of a conversation.* response
// payload.
type ExportFormat string

const (
	FormatOriginal ExportFormat = "original"
	FormatCommon   ExportFormat = "common"
)

// FailureCode enumerates the pull API's error codes (spec.md §6.3).
type FailureCode string

const (
	CodeInvalidRequest FailureCode = "INVALID_REQUEST"
	CodeNotFound        FailureCode = "NOT_FOUND"
	CodeUnavailable     FailureCode = "UNAVAILABLE"
)

// ExternalRequest is one pull-API call (spec.md §4.6 step 7).
type ExternalRequest struct {
	Method         RequestMethod
	TabID          *int
	Format         ExportFormat
	ConversationID string
}

// ExternalResponse is the pull API's envelope: exactly one of Result or
// Error is set, and both are always stamped with API/Ts (spec.md §4.6:
// "All success/failure responses are stamped with the hub's api
// version constant and a ts from the hub's clock").
type ExternalResponse struct {
	API   string      `json:"api"`
	Ts    int64       `json:"ts"`
	OK    bool        `json:"ok"`
	Error FailureCode `json:"error,omitempty"`
	Result any        `json:"result,omitempty"`
}

// HealthResult is the result payload for health.ping.
type HealthResult struct {
	OK  bool   `json:"ok"`
	API string `json:"api"`
	Ts  int64  `json:"ts"`
}

// ConversationResult is the result payload for conversation.getLatest/
// getById: Original is set when Format==original, Common when
// Format==common.
type ConversationResult struct {
	Original *model.CachedConversationRecord `json:"original,omitempty"`
	Common   *commonexport.Export            `json:"common,omitempty"`
}

// HandleExternalRequest implements the pull API (spec.md §4.6 step 7).
func (h *Hub) HandleExternalRequest(req ExternalRequest) ExternalResponse {
	now := h.now()
	switch req.Method {
	case MethodHealthPing:
		return h.ok(now, HealthResult{OK: true, API: APIVersion, Ts: now})
	case MethodConversationGetLatest:
		return h.getLatest(req, now)
	case MethodConversationGetByID:
		return h.getByID(req, now)
	default:
		return h.fail(now, CodeInvalidRequest)
	}
}

func (h *Hub) getLatest(req ExternalRequest, now int64) ExternalResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	var best *model.CachedConversationRecord
	for id := range h.records {
		r := h.records[id]
		if req.TabID != nil {
			if r.TabID == nil || *r.TabID != *req.TabID {
				continue
			}
		}
		if best == nil || r.Ts > best.Ts {
			rCopy := r
			best = &rCopy
		}
	}

	if best == nil {
		// spec.md §9 Open Question resolution: tab-scoped getLatest
		// with no matching record reports UNAVAILABLE, not NOT_FOUND —
		// the conversation concept exists, just not for this tab yet.
		if req.TabID != nil {
			return h.fail(now, CodeUnavailable)
		}
		return h.fail(now, CodeNotFound)
	}

	return h.ok(now, h.formatRecord(*best, req.Format))
}

func (h *Hub) getByID(req ExternalRequest, now int64) ExternalResponse {
	if req.ConversationID == "" {
		return h.fail(now, CodeInvalidRequest)
	}
	h.mu.Lock()
	r, ok := h.records[req.ConversationID]
	h.mu.Unlock()
	if !ok {
		return h.fail(now, CodeNotFound)
	}
	return h.ok(now, h.formatRecord(r, req.Format))
}

func (h *Hub) formatRecord(r model.CachedConversationRecord, format ExportFormat) ConversationResult {
	if format == FormatCommon {
		exp := commonexport.Normalize(r.Payload, providerDisplayName(r.Provider))
		return ConversationResult{Common: &exp}
	}
	return ConversationResult{Original: &r}
}

func providerDisplayName(p model.Provider) string {
	switch p {
	case model.ProviderChatGPT:
		return "ChatGPT"
	case model.ProviderGemini:
		return "Gemini"
	case model.ProviderGrok:
		return "Grok"
	default:
		return "Unknown"
	}
}

func (h *Hub) ok(now int64, result any) ExternalResponse {
	return ExternalResponse{API: APIVersion, Ts: now, OK: true, Result: result}
}

func (h *Hub) fail(now int64, code FailureCode) ExternalResponse {
	return ExternalResponse{API: APIVersion, Ts: now, OK: false, Error: code}
}
