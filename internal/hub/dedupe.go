package hub

import (
	"strings"
	"sync"

	"github.com/captured/llm-capture/internal/boundedcache"
)

// DefaultDispatchCacheCapacity bounds the per-conversation dispatch
// state cache (spec.md §4.6 step 2: "bounded by LRU (default 250)").
const DefaultDispatchCacheCapacity = 250

// dispatchState is the hub's per-conversation dedupe bookkeeping
// (spec.md §4.6 step 2).
type dispatchState struct {
	hasReady              bool
	lastContentHash       *string
	lastTitleGeneric      bool
	titleUpgradedAttempts map[string]bool
}

// dedupe owns the bounded dispatch-state cache and decides whether an
// ingest should actually broadcast/persist (spec.md §4.6 step 2,
// invariant 7 in spec.md §8).
type dedupe struct {
	mu    sync.Mutex
	cache *boundedcache.LRU[string, *dispatchState]
}

func newDedupe(capacity int) *dedupe {
	return &dedupe{cache: boundedcache.New[string, *dispatchState](capacity)}
}

// decide reports whether conversationID's event should dispatch given
// contentHash and the conversation's current title, and returns the
// EventType to stamp it with. It mutates the dedupe cache as a side
// effect of a dispatch decision; a suppressed event leaves state
// unchanged except where noted.
func (d *dedupe) decide(conversationID, attemptID string, contentHash *string, title string) (dispatch bool, eventType EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	titleGeneric := isGenericTitle(title)

	state, ok := d.cache.Get(conversationID)
	if !ok {
		state = &dispatchState{
			hasReady:              true,
			lastContentHash:       contentHash,
			lastTitleGeneric:      titleGeneric,
			titleUpgradedAttempts: make(map[string]bool),
		}
		if !titleGeneric {
			state.titleUpgradedAttempts[attemptID] = true
		}
		d.cache.Set(conversationID, state)
		return true, EventConversationReady
	}

	if !state.hasReady {
		state.hasReady = true
		state.lastContentHash = contentHash
		state.lastTitleGeneric = titleGeneric
		d.cache.Set(conversationID, state)
		return true, EventConversationReady
	}

	if !sameHash(state.lastContentHash, contentHash) {
		state.lastContentHash = contentHash
		state.lastTitleGeneric = titleGeneric
		d.cache.Set(conversationID, state)
		return true, EventConversationUpdated
	}

	// Same content hash: only a never-before-fired generic->specific
	// title upgrade for this attempt still dispatches (spec.md §4.6
	// step 2: "at most once per (conversationId, attemptId)").
	if state.lastTitleGeneric && !titleGeneric && !state.titleUpgradedAttempts[attemptID] {
		state.lastTitleGeneric = false
		state.titleUpgradedAttempts[attemptID] = true
		d.cache.Set(conversationID, state)
		return true, EventConversationUpdated
	}

	return false, ""
}

func sameHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// isGenericTitle reports whether title is a placeholder the hub should
// treat as "not yet specific", mirroring the adapters' own placeholder
// detection (internal/adapter/chatgpt's isPlaceholderTitle) one layer
// up, since the hub sees titles after adapter normalization and cannot
// import an adapter package without an import cycle.
func isGenericTitle(title string) bool {
	t := strings.TrimSpace(title)
	return t == "" || strings.EqualFold(t, "new chat")
}
