package attempt

import (
	"sync"

	"github.com/captured/llm-capture/internal/boundedcache"
)

// DefaultMaxTracked bounds the "attempt by conversation id" and
// "latest attempt id by platform" maps (spec.md §4.3, §5).
const DefaultMaxTracked = 200

// Tracker owns every live Attempt, keyed by attempt id, plus the two
// bounded indices the runner needs: latest attempt per platform, and
// current attempt per conversation (for supersession).
type Tracker struct {
	mu              sync.Mutex
	byID            map[string]*Attempt
	byConversation  *boundedcache.LRU[string, string] // conversationID -> attemptID
	latestByPlatform *boundedcache.LRU[string, string] // platform -> attemptID
}

// NewTracker creates a Tracker with the default bounded-index capacity.
func NewTracker() *Tracker {
	return &Tracker{
		byID:             make(map[string]*Attempt),
		byConversation:   boundedcache.New[string, string](DefaultMaxTracked),
		latestByPlatform: boundedcache.New[string, string](DefaultMaxTracked),
	}
}

// Begin registers a new attempt, and if an existing attempt already
// owns conversationID, supersedes it (spec.md §4.3 "Supersession").
// conversationID may be empty when the attempt hasn't been bound to a
// conversation yet.
func (tr *Tracker) Begin(id, platform, conversationID string) *Attempt {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	a := NewAttempt(id, platform)
	tr.byID[id] = a
	tr.latestByPlatform.Set(platform, id)

	if conversationID != "" {
		if prevID, ok := tr.byConversation.Get(conversationID); ok && prevID != id {
			if prev, ok := tr.byID[prevID]; ok {
				prev.Supersede()
			}
		}
		tr.byConversation.Set(conversationID, id)
		a.ConversationID = &conversationID
	}
	return a
}

// Get returns the attempt by id.
func (tr *Tracker) Get(id string) (*Attempt, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	a, ok := tr.byID[id]
	return a, ok
}

// BindConversation associates an attempt (already known, no prior
// conversation) with a conversation id once a provider response
// reveals it, superseding whichever older attempt currently owns that
// conversation.
func (tr *Tracker) BindConversation(id, conversationID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	a, ok := tr.byID[id]
	if !ok || conversationID == "" {
		return
	}
	if prevID, ok := tr.byConversation.Get(conversationID); ok && prevID != id {
		if prev, ok := tr.byID[prevID]; ok {
			prev.Supersede()
		}
	}
	tr.byConversation.Set(conversationID, id)
	a.ConversationID = &conversationID
}

// ForConversation returns the attempt currently bound to conversationID,
// for callers (the runner's visibility/recovery path) that only know
// the conversation id.
func (tr *Tracker) ForConversation(conversationID string) (*Attempt, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	id, ok := tr.byConversation.Get(conversationID)
	if !ok {
		return nil, false
	}
	a, ok := tr.byID[id]
	return a, ok
}

// LatestForPlatform returns the most recently begun attempt id for a
// platform.
func (tr *Tracker) LatestForPlatform(platform string) (string, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.latestByPlatform.Get(platform)
}

// Dispose terminates and forgets an attempt (ATTEMPT_DISPOSED).
func (tr *Tracker) Dispose(id string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if a, ok := tr.byID[id]; ok {
		a.Terminate()
	}
}
