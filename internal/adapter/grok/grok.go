// Package grok implements the Grok platform adapter (spec.md §4.2.3)
// across both surfaces Grok ships on: x.com's numeric-ID GraphQL
// endpoints and grok.com's UUID-ID three-endpoint-family merge.
package grok

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/captured/llm-capture/internal/boundedcache"
	"github.com/captured/llm-capture/internal/model"
	"github.com/captured/llm-capture/internal/textnorm"
)

const Name = "grok"

const (
	titleCacheCapacity  = 50
	activeCacheCapacity = 50
)

var (
	grokComPathRE = regexp.MustCompile(`^/c/([0-9a-fA-F-]{36})$`)

	xcomGraphQLRE = regexp.MustCompile(`/i/api/graphql/[^/]+/(GrokConversationItemsByRestId|GrokHistory)`)
	grokComAPIRE  = regexp.MustCompile(`/rest/app-chat/conversations(?:_v2)?/([0-9a-fA-F-]{36})(?:/(response-node|load-responses))?`)

	numericIDRE = regexp.MustCompile(`^[0-9]{10,20}$`)
)

var xcomHosts = map[string]bool{
	"x.com":       true,
	"twitter.com": true,
}

var grokComHosts = map[string]bool{
	"grok.com": true,
}

// Adapter carries the title/active-conversation caches shared by both
// the x.com and grok.com surfaces, keyed by their respective id spaces.
type Adapter struct {
	mu     sync.Mutex
	titles *boundedcache.LRU[string, string]
	active *boundedcache.LRU[string, *model.Conversation]
}

// New creates a Grok Adapter with empty title/active caches.
func New() *Adapter {
	return &Adapter{
		titles: boundedcache.New[string, string](titleCacheCapacity),
		active: boundedcache.New[string, *model.Conversation](activeCacheCapacity),
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) URLMatchPattern() *regexp.Regexp { return grokComPathRE }

func (a *Adapter) APIEndpointPattern() *regexp.Regexp { return grokComAPIRE }

func (a *Adapter) IsPlatformURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return xcomHosts[host] || grokComHosts[host]
}

// ExtractConversationID pulls the UUID out of a grok.com /c/{uuid} page
// URL. x.com has no analogous page-id scheme; its ids only ever arrive
// through intercepted API URLs (ExtractConversationIDFromURL).
func (a *Adapter) ExtractConversationID(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || !grokComHosts[strings.ToLower(u.Hostname())] {
		return "", false
	}
	if m := grokComPathRE.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

// ExtractConversationIDFromURL implements adapter.URLExtractor: for
// x.com's ItemsByRestId, prefer the `restId` GraphQL variable over any
// id embedded elsewhere in the URL, since x.com reuses chat_item_id
// ambiguously (spec.md §4.2.3).
func (a *Adapter) ExtractConversationIDFromURL(apiURL string) (string, bool) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	if xcomHosts[host] {
		if m := xcomGraphQLRE.FindStringSubmatch(u.Path); m != nil {
			if restID, ok := restIDFromVariables(u.Query().Get("variables")); ok {
				return restID, true
			}
			if m2 := numericIDRE.FindString(u.RawQuery); m2 != "" {
				return m2, true
			}
		}
		return "", false
	}

	if grokComHosts[host] {
		if m := grokComAPIRE.FindStringSubmatch(u.Path); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func (a *Adapter) FormatFilename(conv *model.Conversation) string {
	title := "untitled"
	if conv != nil && strings.TrimSpace(conv.Title) != "" {
		title = conv.Title
	}
	id := "unknown"
	if conv != nil && conv.ConversationID != "" {
		id = conv.ConversationID
	}
	return fmt.Sprintf("grok-%s-%s", slugify(title), shortHash(id))
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "untitled"
	}
	if len(out) > 60 {
		out = out[:60]
	}
	return out
}

func shortHash(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:4])
}

// activeConversation returns (creating if absent) the cached
// conversation for id. Callers must hold a.mu.
func (a *Adapter) activeConversation(id string) *model.Conversation {
	conv, ok := a.active.Get(id)
	if !ok || conv == nil {
		conv = model.NewEmptyConversation(id)
		a.active.Set(id, conv)
	}
	return conv
}

// Active returns the cached conversation for id, creating an empty one
// if none has been parsed yet.
func (a *Adapter) Active(id string) *model.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeConversation(id)
}

// EvaluateReadiness implements the shared Gemini/Grok terminal+text
// rule (spec.md §4.2.3): ready iff the latest-by-timestamp assistant
// message is finished_successfully, end_turn=true, and has non-empty
// NFC-trimmed text.
func (a *Adapter) EvaluateReadiness(conv *model.Conversation) model.PlatformReadiness {
	if conv == nil {
		return model.PlatformReadiness{Reason: model.ReasonAssistantMissing}
	}

	var latest *model.Message
	var latestTime float64 = -1
	var anyAssistant bool
	for _, node := range conv.Mapping {
		if node.Message == nil || node.Message.Author.Role != model.RoleAssistant {
			continue
		}
		anyAssistant = true
		t := node.Message.UpdateTime
		if t == 0 {
			t = node.Message.CreateTime
		}
		if t >= latestTime {
			latestTime = t
			latest = node.Message
		}
	}

	if !anyAssistant {
		return model.PlatformReadiness{Reason: model.ReasonAssistantMissing, Terminal: true}
	}

	ready := latest.IsFinishedAssistantTurn(textnorm.NFCTrim)
	reason := model.ReasonAssistantTextNotTerminalTurn
	if latest.Status == model.StatusInProgress {
		reason = model.ReasonAssistantInProgress
	}
	if ready {
		reason = model.ReasonTerminal
	}

	var hash *string
	if ready {
		h := sha256.Sum256([]byte(textnorm.NFCTrim(latest.Text()) + string(latest.Status)))
		s := hex.EncodeToString(h[:])
		hash = &s
	}

	return model.PlatformReadiness{
		Ready:                     ready,
		Terminal:                  latest.Status != model.StatusInProgress,
		Reason:                    reason,
		ContentHash:               hash,
		LatestAssistantTextLength: len([]rune(textnorm.NFCTrim(latest.Text()))),
	}
}

func roleFromSender(sender string) model.AuthorRole {
	if strings.EqualFold(sender, "assistant") {
		return model.RoleAssistant
	}
	return model.RoleUser
}

func statusFromPartial(partial bool) model.Status {
	if partial {
		return model.StatusInProgress
	}
	return model.StatusFinished
}
