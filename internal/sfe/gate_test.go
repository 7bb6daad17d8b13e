package sfe

import "testing"

func hashPtr(s string) *string { return &s }

func TestGateRequiresSecondSampleBeforeReady(t *testing.T) {
	g := New(DefaultConfig())
	h := hashPtr("h1")

	r := g.ApplyCanonicalSample(false, CanonicalSample{
		AttemptID: "a1", TimestampMs: 0, ContentHash: h, Terminal: true, TextLength: 10,
	})
	if r.Ready || r.Blocking != BlockingAwaitingSecondSample {
		t.Fatalf("expected awaiting_second_sample on first sample, got %+v", r)
	}
}

func TestGateStabilityWindow(t *testing.T) {
	// S4 from spec.md §8.
	g := New(DefaultConfig())
	h := hashPtr("stable-hash")

	g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 0, ContentHash: h, Terminal: true, TextLength: 10})

	r := g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 500, ContentHash: h, Terminal: true, TextLength: 10})
	if r.Ready || r.Blocking != BlockingStabilityWindowNotElapsed {
		t.Fatalf("expected stability_window_not_elapsed at t=500ms, got %+v", r)
	}

	r = g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 1000, ContentHash: h, Terminal: true, TextLength: 10})
	if !r.Ready {
		t.Fatalf("expected ready at t=1000ms with stable hash, got %+v", r)
	}
}

func TestGateHashChangeResetsFirstSeen(t *testing.T) {
	g := New(DefaultConfig())
	h1 := hashPtr("h1")
	h2 := hashPtr("h2")

	g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 0, ContentHash: h1, Terminal: true, TextLength: 10})
	// Would have been ready at 1000ms with h1, but hash changes at 900ms.
	r := g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 900, ContentHash: h2, Terminal: true, TextLength: 12})
	if r.Ready || r.Blocking != BlockingContentHashChanged {
		t.Fatalf("expected content_hash_changed, got %+v", r)
	}
	// Not ready immediately after the reset.
	r = g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 1000, ContentHash: h2, Terminal: true, TextLength: 12})
	if r.Ready {
		t.Fatalf("expected not ready right after hash-change reset, got %+v", r)
	}
	// Ready once minStableMs has elapsed from the reset point (900ms).
	r = g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 1900, ContentHash: h2, Terminal: true, TextLength: 12})
	if !r.Ready {
		t.Fatalf("expected ready once stability window elapses post-reset, got %+v", r)
	}
}

func TestGateStabilizationTimeout(t *testing.T) {
	g := New(DefaultConfig())
	// Keep changing the hash every 100ms past the 30s ceiling.
	for ms := int64(0); ms <= 30_100; ms += 100 {
		h := hashPtr(string(rune(int(ms))))
		r := g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: ms, ContentHash: h, Terminal: true, TextLength: 10})
		if ms > 30_000 && r.Blocking == BlockingStabilizationTimeout {
			return
		}
	}
	t.Fatalf("expected stabilization_timeout to eventually fire within 30s ceiling")
}

func TestGateNonTerminalNeverReady(t *testing.T) {
	g := New(DefaultConfig())
	h := hashPtr("h1")
	r := g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 0, ContentHash: h, Terminal: false, TextLength: 10})
	if r.Ready || r.Blocking != BlockingCanonicalNotTerminal {
		t.Fatalf("expected canonical_not_terminal, got %+v", r)
	}
}

func TestGateNoCanonicalData(t *testing.T) {
	g := New(DefaultConfig())
	r := g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 0, ContentHash: nil, Terminal: true, TextLength: 0})
	if r.Ready || r.Blocking != BlockingNoCanonicalData {
		t.Fatalf("expected no_canonical_data, got %+v", r)
	}
}

func TestGateSupersessionPermanentlyBlocksReadiness(t *testing.T) {
	// S5 from spec.md §8.
	g := New(DefaultConfig())
	h := hashPtr("h1")
	g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 0, ContentHash: h, Terminal: true, TextLength: 10})
	g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: "a1", TimestampMs: 1000, ContentHash: h, Terminal: true, TextLength: 10})

	r := g.ApplyCanonicalSample(true, CanonicalSample{AttemptID: "a1", TimestampMs: 2000, ContentHash: h, Terminal: true, TextLength: 10})
	if r.Ready || !r.Superseded {
		t.Fatalf("expected superseded attempt to never read ready, got %+v", r)
	}
}

func TestGateBoundedByMaxSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSamples = 3
	g := New(cfg)
	for i := 0; i < 10; i++ {
		h := hashPtr("h")
		g.ApplyCanonicalSample(false, CanonicalSample{AttemptID: string(rune('a' + i)), TimestampMs: int64(i * 2000), ContentHash: h, Terminal: true, TextLength: 10})
		if g.Len() > cfg.MaxSamples {
			t.Fatalf("gate exceeded MaxSamples: %d > %d", g.Len(), cfg.MaxSamples)
		}
	}
}
