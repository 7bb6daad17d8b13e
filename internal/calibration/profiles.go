// Package calibration loads the per-platform tunable profiles
// (SPEC_FULL.md §4.8): SFE readiness-gate timing, warm-fetch
// retry/backoff, and a set of disabled signal sources. Profiles are
// embedded as a YAML default and upgraded in place against an on-disk
// user override, mirroring the teacher's
// pkg/simpleruntime/config.go Config + go.mau.fi/util/configupgrade
// pattern.
package calibration

import "github.com/captured/llm-capture/internal/sfe"

// Platform names used as map keys throughout the config.
const (
	PlatformChatGPT = "chatgpt"
	PlatformGemini  = "gemini"
	PlatformGrok    = "grok"
)

// SFETiming mirrors sfe.Config's fields for YAML round-tripping.
type SFETiming struct {
	MinStableMs            int64 `yaml:"min_stable_ms"`
	MaxStabilizationWaitMs int64 `yaml:"max_stabilization_wait_ms"`
	SampleTTLMs            int64 `yaml:"sample_ttl_ms"`
	MaxSamples             int   `yaml:"max_samples"`
}

// ToSFEConfig converts to the sfe package's runtime Config shape.
func (t SFETiming) ToSFEConfig() sfe.Config {
	return sfe.Config{
		MinStableMs:            t.MinStableMs,
		MaxStabilizationWaitMs: t.MaxStabilizationWaitMs,
		SampleTTLMs:            t.SampleTTLMs,
		MaxSamples:             t.MaxSamples,
	}
}

// WarmFetchRetry bounds the runner's visibility-recovery warm-fetch
// retries (spec.md §4.3 "Visibility/recovery"): buildApiUrls candidates
// are tried in order, up to MaxAttempts times each, with exponential
// backoff between rounds clamped to MaxDelayMs.
type WarmFetchRetry struct {
	MaxAttempts int   `yaml:"max_attempts"`
	BaseDelayMs int64 `yaml:"base_delay_ms"`
	MaxDelayMs  int64 `yaml:"max_delay_ms"`
}

// PlatformProfile is the full tunable set for one platform adapter.
type PlatformProfile struct {
	SFE             SFETiming      `yaml:"sfe"`
	WarmFetch       WarmFetchRetry `yaml:"warm_fetch"`
	DisabledSignals []string       `yaml:"disabled_signals"`
}

// DefaultProfiles returns the built-in defaults for every known
// platform. Gemini and Grok get a longer stabilization window than
// ChatGPT's spec-default 900ms/30s, reflecting the extra render-settle
// latency their batchexecute-based clients exhibit in practice; these
// per-platform deltas are calibration tuning, not spec-mandated values.
func DefaultProfiles() map[string]PlatformProfile {
	return map[string]PlatformProfile{
		PlatformChatGPT: {
			SFE: SFETiming{
				MinStableMs:            900,
				MaxStabilizationWaitMs: 30_000,
				SampleTTLMs:            10 * 60 * 1000,
				MaxSamples:             500,
			},
			WarmFetch: WarmFetchRetry{MaxAttempts: 3, BaseDelayMs: 500, MaxDelayMs: 4_000},
		},
		PlatformGemini: {
			SFE: SFETiming{
				MinStableMs:            1_200,
				MaxStabilizationWaitMs: 30_000,
				SampleTTLMs:            10 * 60 * 1000,
				MaxSamples:             500,
			},
			WarmFetch:       WarmFetchRetry{MaxAttempts: 3, BaseDelayMs: 500, MaxDelayMs: 4_000},
			DisabledSignals: []string{"dom_snapshot_degraded"},
		},
		PlatformGrok: {
			SFE: SFETiming{
				MinStableMs:            1_200,
				MaxStabilizationWaitMs: 30_000,
				SampleTTLMs:            10 * 60 * 1000,
				MaxSamples:             500,
			},
			WarmFetch: WarmFetchRetry{MaxAttempts: 3, BaseDelayMs: 500, MaxDelayMs: 4_000},
		},
	}
}
