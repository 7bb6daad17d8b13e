package hub

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/captured/llm-capture/internal/model"
)

// DefaultDebounceMs is the default persistence debounce delay (spec.md
// §4.6 step 4).
const DefaultDebounceMs = 500

// persistManager debounces and serializes writes to a StateStore,
// generalizing the teacher's pkg/connector/debounce.go Debouncer from
// per-room keys to the hub's one global persistence key: there is only
// ever one pending snapshot in flight, coalescing any number of
// ingests that land within the debounce window into a single write.
type persistManager struct {
	mu         sync.Mutex
	flushMu    sync.Mutex // serializes flush so writes are single-flight (spec.md §4.6 step 4)
	store      StateStore
	delay      time.Duration
	timer      *time.Timer
	log        zerolog.Logger
	getState   func() PersistedState
	setState   func(PersistedState)
	writeCount int
}

func newPersistManager(store StateStore, delayMs int, log zerolog.Logger, getState func() PersistedState, setState func(PersistedState)) *persistManager {
	if delayMs < 0 {
		delayMs = 0
	}
	return &persistManager{
		store:    store,
		delay:    time.Duration(delayMs) * time.Millisecond,
		log:      log.With().Str("component", "hub_persist").Logger(),
		getState: getState,
		setState: setState,
	}
}

// schedule debounces a flush; a pending timer is reset rather than
// duplicated, matching DebounceBuffer.timer.Reset in the teacher. Each
// fresh debounce cycle (one not already coalesced into a pending
// timer) is tagged with a short sortable xid, logged so a trace of
// hub_persist log lines can be correlated to the schedule() call that
// started the cycle they eventually flushed.
func (p *persistManager) schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delay <= 0 {
		p.timer = nil
		go p.flush()
		return
	}
	if p.timer != nil {
		p.timer.Reset(p.delay)
		return
	}
	token := xid.New().String()
	p.log.Debug().Str("debounce_token", token).Msg("hub persist debounce cycle scheduled")
	p.timer = time.AfterFunc(p.delay, func() { p.flush() })
}

// flushNow cancels any pending timer and flushes synchronously, for
// callers (e.g. a force-save request or test) that need the write to
// have happened before they proceed.
func (p *persistManager) flushNow() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.flush()
}

// flush runs the quota-aware shedding retry loop (spec.md §4.6 step 5):
// attempt a full snapshot; on ErrQuota, drop the oldest record (by Ts)
// and retry; recompute LatestConversationID as the last remaining
// record each time; up to len(records)+1 attempts, so the final
// attempt may persist an empty snapshot. Any non-quota error is logged
// and stops the retry without mutating in-memory state.
func (p *persistManager) flush() {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	state := p.getState()

	records := append([]model.CachedConversationRecord(nil), state.Records...)
	sort.SliceStable(records, func(i, j int) bool { return records[i].Ts < records[j].Ts })

	maxAttempts := len(records) + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		snapshot := PersistedState{Records: records, LatestConversationID: latestID(records)}
		p.mu.Lock()
		p.writeCount++
		p.mu.Unlock()
		err := p.store.Save(snapshot)
		if err == nil {
			p.setState(snapshot)
			return
		}
		if !errors.Is(err, ErrQuota) {
			p.log.Warn().Err(err).Msg("hub persist failed with non-quota error, leaving in-memory state intact")
			return
		}
		if len(records) == 0 {
			p.log.Warn().Msg("hub persist exhausted quota-shedding attempts with an empty snapshot")
			return
		}
		p.log.Warn().Int("attempt", attempt+1).Int("records_before_shed", len(records)).
			Msg("hub persist hit quota error, shedding oldest record and retrying")
		records = records[1:]
	}
}

// WriteAttempts reports how many StateStore.Save calls this manager
// has issued, for tests asserting the shedding loop actually retried
// (scenario S7: "total write attempts > 1").
func (p *persistManager) WriteAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeCount
}

func latestID(records []model.CachedConversationRecord) *string {
	if len(records) == 0 {
		return nil
	}
	best := records[0]
	for _, r := range records[1:] {
		if r.Ts > best.Ts {
			best = r
		}
	}
	id := best.ConversationID
	return &id
}
