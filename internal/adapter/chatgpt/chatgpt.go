// Package chatgpt implements the ChatGPT platform adapter (spec.md
// §4.2.1): strict-UUID URL matching under chatgpt.com/chat.openai.com,
// SSE + plain-object payload parsing, and the finished+end_turn
// readiness rule.
package chatgpt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/captured/llm-capture/internal/model"
	"github.com/captured/llm-capture/internal/textnorm"
)

const Name = "chatgpt"

var (
	uuidRE      = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	cPathRE     = regexp.MustCompile(`^/c/([0-9a-fA-F-]{36})$`)
	gizmoPathRE = regexp.MustCompile(`^/g/[^/]+/c/([0-9a-fA-F-]{36})$`)
	apiEndpointRE = regexp.MustCompile(`/backend-api/conversation(/[0-9a-fA-F-]{36})?$`)
)

var hosts = map[string]bool{
	"chatgpt.com":     true,
	"chat.openai.com": true,
}

// Adapter implements adapter.Adapter, adapter.APIURLBuilder, and
// adapter.URLExtractor for ChatGPT.
type Adapter struct{}

// New creates a ChatGPT Adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

func (a *Adapter) URLMatchPattern() *regexp.Regexp { return cPathRE }

func (a *Adapter) APIEndpointPattern() *regexp.Regexp { return apiEndpointRE }

func (a *Adapter) IsPlatformURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return hosts[strings.ToLower(u.Hostname())]
}

// ExtractConversationID pulls the UUID out of /c/{uuid} or
// /g/{gizmo}/c/{uuid} page paths (spec.md §4.2.1).
func (a *Adapter) ExtractConversationID(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || !hosts[strings.ToLower(u.Hostname())] {
		return "", false
	}
	if m := cPathRE.FindStringSubmatch(u.Path); m != nil && uuidRE.MatchString(m[1]) {
		return m[1], true
	}
	if m := gizmoPathRE.FindStringSubmatch(u.Path); m != nil && uuidRE.MatchString(m[1]) {
		return m[1], true
	}
	return "", false
}

// ExtractConversationIDFromURL implements adapter.URLExtractor for
// intercepted API request URLs.
func (a *Adapter) ExtractConversationIDFromURL(apiURL string) (string, bool) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", false
	}
	m := apiEndpointRE.FindStringSubmatch(u.Path)
	if m == nil || m[1] == "" {
		return "", false
	}
	id := strings.TrimPrefix(m[1], "/")
	if !uuidRE.MatchString(id) {
		return "", false
	}
	return id, true
}

// BuildAPIURLs implements adapter.APIURLBuilder: a single canonical
// endpoint for this conversation id.
func (a *Adapter) BuildAPIURLs(conversationID string) []string {
	return []string{fmt.Sprintf("https://chatgpt.com/backend-api/conversation/%s", conversationID)}
}

// FormatFilename builds an export filename from the conversation title.
func (a *Adapter) FormatFilename(conv *model.Conversation) string {
	return formatFilename("chatgpt", conv)
}

func formatFilename(platform string, conv *model.Conversation) string {
	title := "untitled"
	if conv != nil && strings.TrimSpace(conv.Title) != "" {
		title = conv.Title
	}
	slug := slugify(title)
	id := "unknown"
	if conv != nil && conv.ConversationID != "" {
		id = conv.ConversationID
	}
	return fmt.Sprintf("%s-%s-%s", platform, slug, shortID(id))
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

func shortID(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:4])
}

// EvaluateReadiness implements the ChatGPT readiness rule (spec.md
// §4.2.1): ready iff there is a finished, end_turn=true, content_type
// text assistant message with non-empty NFC text; terminal iff no
// assistant message is in_progress.
func (a *Adapter) EvaluateReadiness(conv *model.Conversation) model.PlatformReadiness {
	if conv == nil {
		return model.PlatformReadiness{Reason: model.ReasonAssistantMissing}
	}

	var anyAssistant bool
	var anyInProgress bool
	var ready bool
	var latestText string

	ids := sortedIDs(conv.Mapping)
	for _, id := range ids {
		node := conv.Mapping[id]
		if node.Message == nil || node.Message.Author.Role != model.RoleAssistant {
			continue
		}
		anyAssistant = true
		if node.Message.Status == model.StatusInProgress {
			anyInProgress = true
		}
		if node.Message.IsFinishedAssistantTurn(textnorm.NFCTrim) {
			ready = true
			latestText = node.Message.Text()
		}
	}

	terminal := !anyInProgress

	reason := model.ReasonAssistantMissing
	switch {
	case !anyAssistant:
		reason = model.ReasonAssistantMissing
	case anyInProgress:
		reason = model.ReasonAssistantInProgress
	case !ready:
		reason = model.ReasonAssistantTextNotTerminalTurn
	default:
		reason = model.ReasonTerminal
	}

	var hash *string
	if ready {
		hash = sfeHash(latestText)
	}

	return model.PlatformReadiness{
		Ready:                     ready,
		Terminal:                  terminal,
		Reason:                    reason,
		ContentHash:               hash,
		LatestAssistantTextLength: len([]rune(textnorm.NFCTrim(latestText))),
	}
}

func sfeHash(text string) *string {
	h := sha256.Sum256([]byte(textnorm.NFCTrim(text)))
	s := hex.EncodeToString(h[:])
	return &s
}

func sortedIDs(mapping map[string]*model.MessageNode) []string {
	ids := make([]string, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, nj := mapping[ids[i]], mapping[ids[j]]
		ti, tj := messageTime(ni), messageTime(nj)
		return ti < tj
	})
	return ids
}

func messageTime(n *model.MessageNode) float64 {
	if n == nil || n.Message == nil {
		return -1
	}
	if n.Message.UpdateTime != 0 {
		return n.Message.UpdateTime
	}
	return n.Message.CreateTime
}
