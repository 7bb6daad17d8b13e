package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/captured/llm-capture/internal/adapter"
	"github.com/captured/llm-capture/internal/calibration"
	"github.com/captured/llm-capture/internal/httpx"
	"github.com/captured/llm-capture/internal/model"
)

// WarmFetch implements the force-save warm-fetch leg of visibility/
// recovery (spec.md §4.3 "Visibility/recovery", SPEC_FULL.md §4.10):
// try buildApiUrls(id) candidates in order, retrying the whole
// candidate list with exponential backoff, until one parses.
type WarmFetch struct {
	client   *httpx.Client
	registry *adapter.Registry
	profiles *calibration.Config
	headers  map[string]string
	log      zerolog.Logger
}

// NewWarmFetch builds a WarmFetch. headers are sent on every recovery
// request (e.g. a cookie or auth header the controller context holds).
func NewWarmFetch(client *httpx.Client, registry *adapter.Registry, profiles *calibration.Config, headers map[string]string, log zerolog.Logger) *WarmFetch {
	return &WarmFetch{
		client:   client,
		registry: registry,
		profiles: profiles,
		headers:  headers,
		log:      log.With().Str("component", "warmfetch").Logger(),
	}
}

// Recover tries platform's buildApiUrls(conversationID) candidates in
// order, retrying the full list up to the platform's calibrated
// MaxAttempts with exponential backoff (clamped to MaxDelayMs) between
// rounds, until one candidate both fetches and parses.
func (w *WarmFetch) Recover(ctx context.Context, platform, conversationID string) (*model.Conversation, error) {
	adp, ok := w.registry.ByName(platform)
	if !ok {
		return nil, fmt.Errorf("warmfetch: unknown platform %q", platform)
	}

	urls := adapter.BuildAPIURLs(adp, conversationID)
	if len(urls) == 0 {
		return nil, fmt.Errorf("warmfetch: platform %q has no recovery candidate urls", platform)
	}

	retry := w.profiles.Profile(platform).WarmFetch
	maxAttempts := retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	delay := time.Duration(retry.BaseDelayMs) * time.Millisecond
	maxDelay := time.Duration(retry.MaxDelayMs) * time.Millisecond

	var lastErr error
	for round := 0; round < maxAttempts; round++ {
		for _, url := range urls {
			data, _, err := w.client.GetJSON(ctx, url, w.headers)
			if err != nil {
				lastErr = err
				w.log.Debug().Err(err).Str("url", url).Msg("warm-fetch candidate failed, trying next")
				continue
			}
			conv, err := adp.ParseInterceptedData(string(data), url)
			if err != nil {
				lastErr = err
				w.log.Debug().Err(err).Str("url", url).Msg("warm-fetch candidate parsed but invalid, trying next")
				continue
			}
			return conv, nil
		}

		if round < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}

	return nil, fmt.Errorf("warmfetch: exhausted %d attempt(s) over %d candidate url(s): %w", maxAttempts, len(urls), lastErr)
}
