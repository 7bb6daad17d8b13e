package calibration

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}

	chatgpt := cfg.Profile(PlatformChatGPT)
	if chatgpt.SFE.MinStableMs != 900 {
		t.Errorf("chatgpt MinStableMs = %d, want 900", chatgpt.SFE.MinStableMs)
	}

	gemini := cfg.Profile(PlatformGemini)
	if gemini.SFE.MinStableMs != 1200 {
		t.Errorf("gemini MinStableMs = %d, want 1200", gemini.SFE.MinStableMs)
	}
	if len(gemini.DisabledSignals) != 1 || gemini.DisabledSignals[0] != "dom_snapshot_degraded" {
		t.Errorf("gemini DisabledSignals = %v, want [dom_snapshot_degraded]", gemini.DisabledSignals)
	}
}

func TestLoadUserOverrideWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	if err := Save(path, &Config{Platforms: map[string]PlatformProfile{
		PlatformChatGPT: {
			SFE: SFETiming{MinStableMs: 1500, MaxStabilizationWaitMs: 30_000, SampleTTLMs: 600_000, MaxSamples: 500},
			WarmFetch: WarmFetchRetry{MaxAttempts: 5, BaseDelayMs: 500, MaxDelayMs: 4_000},
		},
	}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	chatgpt := cfg.Profile(PlatformChatGPT)
	if chatgpt.SFE.MinStableMs != 1500 {
		t.Errorf("MinStableMs = %d, want 1500 (user override preserved)", chatgpt.SFE.MinStableMs)
	}
	if chatgpt.WarmFetch.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", chatgpt.WarmFetch.MaxAttempts)
	}

	// Platforms the user file never mentioned still come from defaults
	// via Profile's fallback.
	gemini := cfg.Profile(PlatformGemini)
	if gemini.SFE.MinStableMs == 0 {
		t.Error("gemini profile should still resolve to a non-zero default when absent from the user file")
	}
}

func TestProfileUnknownPlatformReturnsZeroValue(t *testing.T) {
	cfg := &Config{Platforms: map[string]PlatformProfile{}}
	p := cfg.Profile("unknown-platform")
	if p.SFE.MinStableMs != 0 {
		t.Errorf("unknown platform should resolve to the zero PlatformProfile, got %+v", p)
	}
}

func TestSFETimingToSFEConfig(t *testing.T) {
	timing := SFETiming{MinStableMs: 900, MaxStabilizationWaitMs: 30_000, SampleTTLMs: 600_000, MaxSamples: 500}
	cfg := timing.ToSFEConfig()
	if cfg.MinStableMs != timing.MinStableMs || cfg.MaxSamples != timing.MaxSamples {
		t.Errorf("ToSFEConfig() = %+v, want fields matching %+v", cfg, timing)
	}
}
