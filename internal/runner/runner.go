// Package runner implements the controller-context orchestrator
// (SPEC_FULL.md §2, spec.md §4.3/§4.4 consumer): it drains the
// interceptor's envelope stream, drives the attempt tracker and a
// per-platform Signal Fusion Engine, and offers canonical-ready
// samples to the External Event Hub.
//
// Grounded on the teacher's pkg/connector/handleai.go: a single
// top-level dispatcher that takes one inbound signal at a time, drives
// per-turn state forward, and decides what happens next — generalized
// here from "one streaming turn against an LLM API" to "one lifecycle/
// data envelope from the page-context interceptor".
package runner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/captured/llm-capture/internal/adapter"
	"github.com/captured/llm-capture/internal/attempt"
	"github.com/captured/llm-capture/internal/calibration"
	"github.com/captured/llm-capture/internal/hub"
	"github.com/captured/llm-capture/internal/model"
	"github.com/captured/llm-capture/internal/probelease"
	"github.com/captured/llm-capture/internal/protocol"
	"github.com/captured/llm-capture/internal/sfe"
)

// DefaultProbeLeaseTTLMs bounds one warm-fetch probe's exclusive lease
// (spec.md §4.5); long enough to cover the full retry/backoff walk in
// WarmFetch.Recover.
const DefaultProbeLeaseTTLMs int64 = 15_000

// Runner consumes protocol.Envelope values and drives the capture
// pipeline to a canonical-ready decision.
type Runner struct {
	mu       sync.Mutex
	tracker  *attempt.Tracker
	registry *adapter.Registry
	profiles *calibration.Config
	engines  map[string]*sfe.Engine // platform -> engine, built lazily per profile
	hub      *hub.Hub
	lease    *probelease.Client
	warm     *WarmFetch
	now      func() int64
	log      zerolog.Logger

	domSnapshot func(ctx context.Context, conversationID string) (*model.Conversation, bool)
}

// New builds a Runner. warm may be nil if visibility/recovery is not
// wired (e.g. in a unit test exercising only the envelope dispatcher).
func New(registry *adapter.Registry, profiles *calibration.Config, h *hub.Hub, lease *probelease.Client, warm *WarmFetch, now func() int64, log zerolog.Logger) *Runner {
	return &Runner{
		tracker:  attempt.NewTracker(),
		registry: registry,
		profiles: profiles,
		engines:  make(map[string]*sfe.Engine),
		hub:      h,
		lease:    lease,
		warm:     warm,
		now:      now,
		log:      log.With().Str("component", "runner").Logger(),
	}
}

// SetDOMSnapshotRequester wires the degraded-capture leg of visibility/
// recovery (spec.md §4.3: "a page-snapshot request (degraded DOM
// capture)"). In the original extension this asks the page context for
// a best-effort DOM-derived Conversation; here it is an injected
// callback so the owner process never depends on an actual browser.
func (r *Runner) SetDOMSnapshotRequester(fn func(ctx context.Context, conversationID string) (*model.Conversation, bool)) {
	r.domSnapshot = fn
}

// HandleVisible implements spec.md §4.3 "Visibility/recovery": when the
// tab becomes visible and the tracked attempt for conversationID is not
// yet canonical_ready, issue (a) a degraded DOM-snapshot capture and
// (b) a force-save warm-fetch walk, in that order. Recovered snapshots
// that are conversation-like are always ingested; only a canonical,
// high-fidelity, complete recovery is offered to the SFE as a
// canonical sample able to flip the decision to canonical_ready.
func (r *Runner) HandleVisible(ctx context.Context, conversationID string) {
	a, ok := r.tracker.ForConversation(conversationID)
	if !ok {
		r.log.Debug().Str("conversation_id", conversationID).Msg("visibility recovery skipped: no tracked attempt for conversation")
		return
	}
	if d, ok := r.engineFor(a.Platform).Current(a.ID); ok && d == sfe.DecisionCanonicalReady {
		return
	}

	if r.domSnapshot != nil {
		if conv, ok := r.domSnapshot(ctx, conversationID); ok && conv != nil {
			r.ingestDegraded(a, conv, model.ExportMeta{
				CaptureSource: model.CaptureSourceDOMSnapshot,
				Fidelity:      model.FidelityDegraded,
				Completeness:  model.CompletenessPartial,
			})
		}
	}

	if r.warm == nil {
		return
	}

	if r.lease != nil {
		claim := r.lease.Claim(ctx, conversationID, a.ID, DefaultProbeLeaseTTLMs)
		if !claim.Acquired {
			r.log.Debug().Str("conversation_id", conversationID).Str("owner_attempt_id", claim.OwnerAttemptID).
				Msg("skipping warm-fetch probe: lease held by another attempt")
			return
		}
		defer r.lease.Release(ctx, conversationID, a.ID)
	}

	conv, err := r.warm.Recover(ctx, a.Platform, conversationID)
	if err != nil {
		r.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("warm-fetch recovery exhausted all candidates")
		return
	}
	adp, ok := r.registry.ByName(a.Platform)
	if !ok {
		return
	}
	readiness := adp.EvaluateReadiness(conv)
	r.ingestCanonical(a, conv, readiness, model.ExportMeta{
		CaptureSource: model.CaptureSourceCanonicalAPI,
		Fidelity:      model.FidelityHigh,
		Completeness:  model.CompletenessComplete,
	}, nil)
}

// ingestDegraded offers a non-canonical (DOM snapshot) sample straight
// to the hub, bypassing the SFE entirely: a degraded capture can never
// itself prove readiness (spec.md §4.4 "Inputs": only canonical_api/
// high samples are offered to the SFE), but it still updates what the
// hub and pull API can return while a canonical recovery is pending.
func (r *Runner) ingestDegraded(a *attempt.Attempt, conv *model.Conversation, meta model.ExportMeta) {
	r.hub.Ingest(hub.IngestInput{
		ConversationID: conv.ConversationID,
		Provider:       providerForPlatform(a.Platform),
		Payload:        conv,
		AttemptID:      a.ID,
		CaptureMeta:    meta,
	})
}

// Run drains events until the channel closes or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, events <-chan protocol.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			r.HandleEnvelope(env)
		}
	}
}

// engineFor returns (creating if needed) the per-platform SFE engine,
// configured from that platform's calibration profile.
func (r *Runner) engineFor(platform string) *sfe.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[platform]; ok {
		return e
	}
	cfg := r.profiles.Profile(platform).SFE.ToSFEConfig()
	e := sfe.NewEngine(cfg)
	r.engines[platform] = e
	return e
}

// HandleEnvelope dispatches one envelope to the attempt tracker and SFE,
// offering canonical-ready samples to the hub (spec.md §4.1: "legacy
// attempt-less messages are rejected").
func (r *Runner) HandleEnvelope(env protocol.Envelope) {
	if protocol.RequiresAttemptID(env.Type) && !env.HasAttemptID() {
		r.log.Warn().Str("type", string(env.Type)).Msg("rejecting attempt-less envelope")
		return
	}

	switch env.Type {
	case protocol.TypeLifecycle:
		r.handleLifecycle(env)
	case protocol.TypeDataIntercepted:
		r.handleDataIntercepted(env)
	case protocol.TypeAttemptDisposed:
		r.handleAttemptDisposed(env)
	case protocol.TypeStreamDelta:
		// Stream deltas are indicative only and never prove readiness
		// alone (spec.md §4.4 "Inputs"); the runner has nothing to
		// drive off them beyond what LIFECYCLE already captured.
	default:
	}
}

func (r *Runner) handleLifecycle(env protocol.Envelope) {
	p := env.Lifecycle
	convID := ""
	if p.ConversationID != nil {
		convID = *p.ConversationID
	}

	a, ok := r.tracker.Get(env.AttemptID)
	if !ok {
		a = r.tracker.Begin(env.AttemptID, p.Platform, convID)
	} else if convID != "" && (a.ConversationID == nil || *a.ConversationID != convID) {
		r.tracker.BindConversation(env.AttemptID, convID)
	}

	a.ApplyLifecycle(p.Phase, p.ConversationID)
	r.engineFor(a.Platform).IngestLifecycle(a)
}

func (r *Runner) handleDataIntercepted(env protocol.Envelope) {
	p := env.DataIntercepted

	a, ok := r.tracker.Get(env.AttemptID)
	if !ok {
		a = r.tracker.Begin(env.AttemptID, p.Platform, "")
	}

	adp, ok := r.registry.ByName(a.Platform)
	if !ok {
		r.log.Warn().Str("platform", a.Platform).Msg("data intercepted for unregistered platform")
		return
	}

	conv, err := adp.ParseInterceptedData(p.Data, p.URL)
	if err != nil {
		r.log.Warn().Err(err).Str("attempt_id", a.ID).Str("platform", a.Platform).
			Msg("failed to parse intercepted data")
		return
	}
	if conv == nil {
		// Some adapters legitimately match a URL that carries no
		// conversation payload on this particular call (e.g. a
		// titles-only batch or a history-list response); nothing to
		// ingest.
		return
	}

	if conv.ConversationID != "" {
		r.tracker.BindConversation(a.ID, conv.ConversationID)
	}

	readiness := adp.EvaluateReadiness(conv)
	r.ingestCanonical(a, conv, readiness, model.ExportMeta{
		CaptureSource: model.CaptureSourceCanonicalAPI,
		Fidelity:      model.FidelityHigh,
		Completeness:  model.CompletenessComplete,
	}, nil)
}

func (r *Runner) handleAttemptDisposed(env protocol.Envelope) {
	if a, ok := r.tracker.Get(env.AttemptID); ok {
		r.engineFor(a.Platform).Forget(env.AttemptID)
	}
	r.tracker.Dispose(env.AttemptID)
}

// ingestCanonical folds a parsed conversation through the SFE and, on a
// canonical_ready/degraded_ready decision, offers it to the hub. Only
// samples meeting shouldIngestAsCanonicalSample are offered to the SFE
// as canonical at all (spec.md §4.4 "Inputs"); tabID is forwarded to
// the hub for tab-scoped pull-API lookups (nil for capture paths that
// don't know it, e.g. warm-fetch recovery).
func (r *Runner) ingestCanonical(a *attempt.Attempt, conv *model.Conversation, readiness model.PlatformReadiness, meta model.ExportMeta, tabID *int) {
	if !model.ShouldIngestAsCanonicalSample(meta) {
		return
	}

	nowMs := r.now()
	sample := sfe.SampleFromConversation(a.ID, conv.ConversationID, nowMs, conv, readiness)
	decision := r.engineFor(a.Platform).ApplyCanonical(a, sample)

	if decision != sfe.DecisionCanonicalReady && decision != sfe.DecisionDegradedReady {
		return
	}

	r.hub.Ingest(hub.IngestInput{
		ConversationID: conv.ConversationID,
		Provider:       providerForPlatform(a.Platform),
		Payload:        conv,
		AttemptID:      a.ID,
		CaptureMeta:    meta,
		ContentHash:    readiness.ContentHash,
		TabID:          tabID,
	})
}

func providerForPlatform(platform string) model.Provider {
	switch platform {
	case calibration.PlatformChatGPT:
		return model.ProviderChatGPT
	case calibration.PlatformGemini:
		return model.ProviderGemini
	case calibration.PlatformGrok:
		return model.ProviderGrok
	default:
		return model.ProviderUnknown
	}
}
