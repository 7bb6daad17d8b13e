package hub

import "github.com/captured/llm-capture/internal/model"

// hydrate loads persisted state and returns the records that survive
// strict validation plus the resolved latest conversation id (spec.md
// §4.6 step 6). A malformed record is discarded rather than rejecting
// the whole load, the same defensive posture adapters use for
// individual wire payloads (spec.md §7 ValidationError: "skip
// malformed record during hydration").
func hydrate(state PersistedState) (records []model.CachedConversationRecord, latestConversationID *string) {
	valid := make([]model.CachedConversationRecord, 0, len(state.Records))
	for _, r := range state.Records {
		if isValidRecord(r) {
			valid = append(valid, r)
		}
	}

	if state.LatestConversationID != nil {
		for _, r := range valid {
			if r.ConversationID == *state.LatestConversationID {
				id := *state.LatestConversationID
				return valid, &id
			}
		}
	}

	return valid, latestID(valid)
}

func isValidRecord(r model.CachedConversationRecord) bool {
	if r.ConversationID == "" || r.Payload == nil || r.Ts <= 0 {
		return false
	}
	switch r.Provider {
	case model.ProviderChatGPT, model.ProviderGemini, model.ProviderGrok, model.ProviderUnknown:
	default:
		return false
	}
	return true
}

