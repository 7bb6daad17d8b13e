// Package sfe implements the Signal Fusion Engine and its Readiness
// Gate subcomponent (spec.md §4.4): a per-attempt state machine that
// fuses lifecycle, streaming, DOM, and canonical-capture signals into a
// single monotonic readiness decision, gated by a content-hash
// stability window.
//
// Grounded on the teacher's pkg/connector/streaming.go (per-attempt
// accumulation state scoped to one turn), pkg/connector/debounce.go
// (timer/threshold-gated stabilization), and pkg/connector/dedupe.go
// (TTL + capacity bounding of a map keyed by a logical clock).
package sfe

// Blocking enumerates why the gate is not yet reporting ready.
type Blocking string

const (
	BlockingNone                     Blocking = ""
	BlockingNoCanonicalData          Blocking = "no_canonical_data"
	BlockingCanonicalNotTerminal     Blocking = "canonical_not_terminal"
	BlockingAwaitingSecondSample     Blocking = "awaiting_second_sample"
	BlockingContentHashChanged       Blocking = "content_hash_changed"
	BlockingStabilizationTimeout     Blocking = "stabilization_timeout"
	BlockingStabilityWindowNotElapsed Blocking = "stability_window_not_elapsed"
)

// Config holds the gate's timing constants, overridable per platform by
// a calibration profile (SPEC_FULL.md §4.8).
type Config struct {
	MinStableMs            int64
	MaxStabilizationWaitMs int64
	SampleTTLMs            int64
	MaxSamples             int
}

// DefaultConfig matches the defaults named in spec.md §4.4.
func DefaultConfig() Config {
	return Config{
		MinStableMs:            900,
		MaxStabilizationWaitMs: 30_000,
		SampleTTLMs:            10 * 60 * 1000,
		MaxSamples:             500,
	}
}

// CanonicalSample is one canonical-capture observation offered to the
// gate for a given attempt (spec.md §4.4 "Inputs").
type CanonicalSample struct {
	AttemptID      string
	ConversationID string
	TimestampMs    int64
	ContentHash    *string
	Terminal       bool
	TextLength     int
}

// SampleState is the gate's per-attempt bookkeeping (spec.md §4.4).
type SampleState struct {
	FirstSeenAtMs            int64
	StabilizationStartedAtMs int64
	LastSeenAtMs             int64
	ContentHash              *string
	Terminal                 bool
	TextLength               int
}

// Result is what the gate reports back for one ApplyCanonicalSample call.
type Result struct {
	Ready     bool
	Blocking  Blocking
	Superseded bool
}

// Gate is the per-(conversation,attempt) readiness state machine. The
// caller supplies every timestamp (CanonicalSample.TimestampMs), so the
// gate itself never reads the wall clock — this keeps it deterministic
// under test and lets the runner use its own monotonic clock.
type Gate struct {
	cfg           Config
	samples       map[string]*SampleState // attemptID -> state
	lastPruneAtMs int64
}

// New creates a Gate with cfg (use DefaultConfig() for spec defaults).
func New(cfg Config) *Gate {
	return &Gate{
		cfg:     cfg,
		samples: make(map[string]*SampleState),
	}
}

// ApplyCanonicalSample runs the readiness algorithm from spec.md §4.4
// for one canonical sample. isSuperseded must reflect the owning
// attempt's current supersession state (internal/attempt.Attempt.IsSuperseded);
// a superseded attempt's samples never mutate the gate and never read
// ready, permanently (spec.md "Supersession interaction").
func (g *Gate) ApplyCanonicalSample(isSuperseded bool, s CanonicalSample) Result {
	if isSuperseded {
		return Result{Ready: false, Superseded: true}
	}

	g.maybePrune(s.TimestampMs)

	if s.ContentHash == nil || s.TextLength == 0 {
		return Result{Ready: false, Blocking: BlockingNoCanonicalData}
	}
	if !s.Terminal {
		return Result{Ready: false, Blocking: BlockingCanonicalNotTerminal}
	}

	existing, ok := g.samples[s.AttemptID]
	if !ok {
		g.samples[s.AttemptID] = &SampleState{
			FirstSeenAtMs:            s.TimestampMs,
			StabilizationStartedAtMs: s.TimestampMs,
			LastSeenAtMs:             s.TimestampMs,
			ContentHash:              s.ContentHash,
			Terminal:                 s.Terminal,
			TextLength:               s.TextLength,
		}
		g.evictIfOverCapacity()
		return Result{Ready: false, Blocking: BlockingAwaitingSecondSample}
	}

	existing.LastSeenAtMs = s.TimestampMs

	if !sameHash(existing.ContentHash, s.ContentHash) {
		existing.FirstSeenAtMs = s.TimestampMs
		existing.ContentHash = s.ContentHash
		existing.TextLength = s.TextLength
		existing.Terminal = s.Terminal
		if s.TimestampMs-existing.StabilizationStartedAtMs > g.cfg.MaxStabilizationWaitMs {
			return Result{Ready: false, Blocking: BlockingStabilizationTimeout}
		}
		return Result{Ready: false, Blocking: BlockingContentHashChanged}
	}

	// Hash unchanged.
	if s.TimestampMs-existing.FirstSeenAtMs < g.cfg.MinStableMs {
		if s.TimestampMs-existing.StabilizationStartedAtMs > g.cfg.MaxStabilizationWaitMs {
			return Result{Ready: false, Blocking: BlockingStabilizationTimeout}
		}
		return Result{Ready: false, Blocking: BlockingStabilityWindowNotElapsed}
	}
	return Result{Ready: true, Blocking: BlockingNone}
}

func sameHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// maybePrune drops sample entries whose LastSeenAtMs is older than
// SampleTTLMs, at most once per 1000ms of caller-supplied sample time
// (spec.md §4.4 "Bounding").
func (g *Gate) maybePrune(nowMs int64) {
	if nowMs-g.lastPruneAtMs < 1000 {
		return
	}
	g.lastPruneAtMs = nowMs
	cutoff := nowMs - g.cfg.SampleTTLMs
	for id, st := range g.samples {
		if st.LastSeenAtMs < cutoff {
			delete(g.samples, id)
		}
	}
}

// evictIfOverCapacity removes the oldest (by FirstSeenAtMs) sample
// entries until the map is within MaxSamples.
func (g *Gate) evictIfOverCapacity() {
	for len(g.samples) > g.cfg.MaxSamples {
		var oldestID string
		var oldestTime int64 = -1
		for id, st := range g.samples {
			if oldestTime == -1 || st.FirstSeenAtMs < oldestTime {
				oldestID, oldestTime = id, st.FirstSeenAtMs
			}
		}
		delete(g.samples, oldestID)
	}
}

// Forget removes an attempt's sample state, e.g. on dispose.
func (g *Gate) Forget(attemptID string) {
	delete(g.samples, attemptID)
}

// Len reports the number of tracked sample states (test/diagnostic use).
func (g *Gate) Len() int {
	return len(g.samples)
}
