// Package adapter defines the platform adapter capability set
// (spec.md §4.2, §9 "Adapters as capability sets"): one value per
// provider that normalizes its wire format into the canonical
// model.Conversation and evaluates readiness against it.
//
// Grounded on the teacher's pkg/connector/provider.go AIProvider
// interface — a small polymorphism surface over providers with
// optional capabilities resolved by type assertion, mirrored here by
// the narrower optional interfaces below.
package adapter

import (
	"regexp"

	"github.com/captured/llm-capture/internal/model"
)

// Adapter is the mandatory capability set every platform implements.
type Adapter interface {
	Name() string
	URLMatchPattern() *regexp.Regexp
	APIEndpointPattern() *regexp.Regexp
	IsPlatformURL(url string) bool
	ExtractConversationID(pageURL string) (string, bool)
	ParseInterceptedData(raw any, url string) (*model.Conversation, error)
	EvaluateReadiness(conv *model.Conversation) model.PlatformReadiness
	FormatFilename(conv *model.Conversation) string
}

// URLExtractor is an optional capability: extracting a conversation id
// directly from an intercepted API URL rather than the page URL.
type URLExtractor interface {
	ExtractConversationIDFromURL(apiURL string) (string, bool)
}

// APIURLBuilder is an optional capability: building one or more warm-
// fetch recovery URLs for a known conversation id (spec.md §4.3
// "Visibility/recovery").
type APIURLBuilder interface {
	BuildAPIURLs(conversationID string) []string
}

// PayloadSniffer is an optional capability: recognizing whether an
// arbitrary decoded payload looks like a conversation payload at all,
// used by the runner to filter noise before calling ParseInterceptedData.
type PayloadSniffer interface {
	IsConversationPayload(payload any) bool
}

// CompletionTriggerMatcher is an optional capability: a second URL
// pattern that signals "the stream just finished; go fetch the full
// JSON" (spec.md §4.2 completionTriggerPattern).
type CompletionTriggerMatcher interface {
	CompletionTriggerPattern() *regexp.Regexp
}

// BuildAPIURLs calls a's optional APIURLBuilder capability if present,
// returning nil otherwise. The runner must tolerate any optional
// capability being absent (spec.md §9).
func BuildAPIURLs(a Adapter, conversationID string) []string {
	if b, ok := a.(APIURLBuilder); ok {
		return b.BuildAPIURLs(conversationID)
	}
	return nil
}

// ExtractConversationIDFromURL calls a's optional URLExtractor
// capability if present.
func ExtractConversationIDFromURL(a Adapter, apiURL string) (string, bool) {
	if e, ok := a.(URLExtractor); ok {
		return e.ExtractConversationIDFromURL(apiURL)
	}
	return "", false
}
