package hub

import (
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/captured/llm-capture/internal/model"
)

// Hub is the External Event Hub (spec.md §4.6): ingest, dedupe,
// broadcast, debounced+quota-shedding persistence, hydrate, and the
// pull API all live here.
type Hub struct {
	mu      sync.Mutex
	records map[string]model.CachedConversationRecord

	dedupe      *dedupe
	broadcaster *broadcaster
	persist     *persistManager
	now         func() int64
	log         zerolog.Logger
}

// Options configures a Hub at construction.
type Options struct {
	Store              StateStore
	PortName           string
	Now                func() int64
	DebounceMs         int
	DispatchCacheSize  int
	Log                zerolog.Logger
}

// New builds a Hub, hydrating from store per spec.md §4.6 step 6.
func New(opts Options) *Hub {
	if opts.DebounceMs == 0 {
		opts.DebounceMs = DefaultDebounceMs
	}
	if opts.DispatchCacheSize == 0 {
		opts.DispatchCacheSize = DefaultDispatchCacheCapacity
	}

	h := &Hub{
		records:     make(map[string]model.CachedConversationRecord),
		dedupe:      newDedupe(opts.DispatchCacheSize),
		broadcaster: newBroadcaster(opts.PortName, opts.Log),
		now:         opts.Now,
		log:         opts.Log.With().Str("component", "hub").Logger(),
	}

	state, err := opts.Store.Load()
	if err != nil {
		h.log.Warn().Err(err).Msg("hub failed to load persisted state, starting empty")
	} else {
		records, _ := hydrate(state)
		for _, r := range records {
			h.records[r.ConversationID] = r
			h.dedupe.decide(r.ConversationID, r.AttemptID, r.ContentHash, r.Payload.Title)
		}
	}

	h.persist = newPersistManager(opts.Store, opts.DebounceMs, opts.Log, h.snapshot, h.adoptPersisted)
	return h
}

// snapshot returns the current in-memory records as a PersistedState
// for the persist manager to write.
func (h *Hub) snapshot() PersistedState {
	h.mu.Lock()
	defer h.mu.Unlock()
	records := make([]model.CachedConversationRecord, 0, len(h.records))
	for _, r := range h.records {
		records = append(records, r)
	}
	return PersistedState{Records: records}
}

// adoptPersisted is called by the persist manager after a
// successful write (possibly after shedding records). It does not
// remove anything from h.records: shedding only affects what is
// durable on disk, never the hub's in-memory view, so a later ingest
// for a shed conversation still dedupes/broadcasts correctly.
func (h *Hub) adoptPersisted(PersistedState) {}

// Ingest offers a canonical-ready sample to the hub (spec.md §4.6 step
// 1). It returns the ConversationEvent and true if the event was
// dispatched (broadcast + scheduled for persistence), or false if the
// dedupe layer suppressed it.
func (h *Hub) Ingest(in IngestInput) (ConversationEvent, bool) {
	title := ""
	if in.Payload != nil {
		title = in.Payload.Title
	}
	dispatch, eventType := h.dedupe.decide(in.ConversationID, in.AttemptID, in.ContentHash, title)
	if !dispatch {
		return ConversationEvent{}, false
	}

	nowMs := h.now()
	event := buildEvent(in, eventType, nowMs)

	h.mu.Lock()
	h.records[in.ConversationID] = model.CachedConversationRecord{
		ConversationID: in.ConversationID,
		Provider:       in.Provider,
		Payload:        in.Payload,
		AttemptID:      in.AttemptID,
		CaptureMeta:    in.CaptureMeta,
		ContentHash:    in.ContentHash,
		Ts:             nowMs,
		TabID:          in.TabID,
	}
	h.mu.Unlock()

	h.persist.schedule()
	h.broadcaster.BroadcastEvent(event)
	return event, true
}

// Subscribe registers a new subscriber connection (spec.md §6.3).
func (h *Hub) Subscribe(conn *websocket.Conn, name string) error {
	return h.broadcaster.Subscribe(conn, name)
}

// FlushPersist forces an immediate, synchronous persistence flush,
// bypassing the debounce timer. Tests use this to observe the
// shedding retry loop deterministically (scenario S7).
func (h *Hub) FlushPersist() {
	h.persist.flushNow()
}

// WriteAttempts reports the total number of StateStore.Save calls
// issued so far (test use, scenario S7).
func (h *Hub) WriteAttempts() int {
	return h.persist.WriteAttempts()
}

// SubscriberCount reports the number of connected subscribers (test/
// diagnostic use).
func (h *Hub) SubscriberCount() int {
	return h.broadcaster.SubscriberCount()
}
