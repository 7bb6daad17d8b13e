// Package gemini implements the Gemini platform adapter (spec.md
// §4.2.2): batchexecute envelope stripping, RPC tuple extraction, and
// the title/active-conversation LRUs that make title updates retroactive.
package gemini

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/captured/llm-capture/internal/boundedcache"
	"github.com/captured/llm-capture/internal/model"
	"github.com/captured/llm-capture/internal/textnorm"
)

const Name = "gemini"

const (
	titleCacheCapacity  = 50
	activeCacheCapacity = 50

	rpcConversation = "hNvQHb"
	rpcTitles       = "MaZiqc"
)

var (
	appPathRE       = regexp.MustCompile(`^/app/([0-9a-zA-Z_-]+)$`)
	apiEndpointRE   = regexp.MustCompile(`/_/BardChatUi/data/batchexecute`)
	reasoningSplitRE = regexp.MustCompile(`\n\*\*(.+?)\*\*\n`)
)

var hosts = map[string]bool{
	"gemini.google.com": true,
}

// Adapter carries the bounded title and active-conversation caches the
// retroactive-title rule needs; it is stateful, unlike ChatGPT's.
type Adapter struct {
	mu     sync.Mutex
	titles *boundedcache.LRU[string, string]
	active *boundedcache.LRU[string, *model.Conversation]
}

// New creates a Gemini Adapter with empty title/active caches.
func New() *Adapter {
	return &Adapter{
		titles: boundedcache.New[string, string](titleCacheCapacity),
		active: boundedcache.New[string, *model.Conversation](activeCacheCapacity),
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) URLMatchPattern() *regexp.Regexp { return appPathRE }

func (a *Adapter) APIEndpointPattern() *regexp.Regexp { return apiEndpointRE }

func (a *Adapter) IsPlatformURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return hosts[strings.ToLower(u.Hostname())]
}

func (a *Adapter) ExtractConversationID(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || !hosts[strings.ToLower(u.Hostname())] {
		return "", false
	}
	if m := appPathRE.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

// Active returns the cached conversation for id, if one has been
// parsed; title updates mutate this same pointer in place.
func (a *Adapter) Active(id string) (*model.Conversation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active.Get(id)
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
	return fmt.Sprintf("gemini-%s-%s", slugifyTitle(title), shortHash(id))
}

func slugifyTitle(s string) string {
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

// EvaluateReadiness implements the Gemini readiness rule (spec.md
// §4.2.2): ready iff the latest-by-timestamp assistant message is
// finished, end_turn=true, and has non-empty NFC-trimmed text.
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

// ParseInterceptedData implements the batchexecute envelope strip +
// RPC tuple dispatch (spec.md §4.2.2). A title-only RPC batch mutates
// cached conversations by identity and returns (nil, nil); a
// conversation RPC returns the parsed (and cache-registered)
// Conversation.
func (a *Adapter) ParseInterceptedData(raw any, _ string) (*model.Conversation, error) {
	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("gemini: expected string batchexecute body")
	}

	tuples, err := decodeEnvelope(text)
	if err != nil {
		return nil, err
	}

	var result *model.Conversation
	for _, t := range tuples {
		rpcID, payloadStr, ok := rpcTuple(t)
		if !ok {
			continue
		}
		switch rpcID {
		case rpcTitles:
			a.ingestTitles(payloadStr)
		case rpcConversation:
			if conv, err := a.ingestConversation(payloadStr); err == nil && conv != nil {
				result = conv
			}
		}
	}
	return result, nil
}

// decodeEnvelope strips the ")]}'" security header and length-prefix
// line, then parses the remaining JSON array of RPC tuples.
func decodeEnvelope(raw string) ([]any, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("gemini: no JSON array found in response body")
	}
	var top []any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &top); err != nil {
		return nil, fmt.Errorf("gemini: decoding envelope array: %w", err)
	}
	return top, nil
}

func rpcTuple(t any) (rpcID, payload string, ok bool) {
	arr, isArr := t.([]any)
	if !isArr || len(arr) < 3 {
		return "", "", false
	}
	marker, _ := arr[0].(string)
	if marker != "wrb.fr" {
		return "", "", false
	}
	rpcID, _ = arr[1].(string)
	payload, _ = arr[2].(string)
	if rpcID == "" || payload == "" {
		return "", "", false
	}
	return rpcID, payload, true
}

// ingestTitles handles the MaZiqc RPC: populate the title LRU and
// retroactively mutate any already-cached conversation in place.
func (a *Adapter) ingestTitles(payloadStr string) {
	var payload []any
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return
	}
	list, _ := at(payload, 2).([]any)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, entry := range list {
		row, ok := entry.([]any)
		if !ok || len(row) < 2 {
			continue
		}
		rawID, _ := row[0].(string)
		title, _ := row[1].(string)
		if rawID == "" {
			continue
		}
		id := strings.TrimPrefix(rawID, "c_")
		a.titles.Set(id, title)
		if conv, ok := a.active.Get(id); ok && conv != nil {
			conv.Title = title
		}
	}
}

// ingestConversation handles the hNvQHb RPC: build a Conversation from
// the deeply nested payload shape and register it in the active cache.
func (a *Adapter) ingestConversation(payloadStr string) (*model.Conversation, error) {
	var payload []any
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return nil, fmt.Errorf("gemini: decoding conversation payload: %w", err)
	}

	slotArr, ok := at(at(payload, 0), 0).([]any)
	if !ok {
		return nil, fmt.Errorf("gemini: unrecognized conversation payload shape")
	}
	header, _ := at(slotArr, 0).([]any)
	rawID, _ := at(header, 0).(string)
	if rawID == "" {
		return nil, fmt.Errorf("gemini: missing conversation id")
	}
	id := strings.TrimPrefix(rawID, "c_")

	a.mu.Lock()
	conv, existed := a.active.Get(id)
	a.mu.Unlock()
	if !existed || conv == nil {
		conv = model.NewEmptyConversation(id)
	}

	parent := model.RootNodeID

	if userText := safeNestedString(at(slotArr, 2), 0, 0, 1, 0); userText != "" {
		node := conv.AppendChild(id+"-user", parent, &model.Message{
			Author:  model.Author{Role: model.RoleUser},
			Content: model.Content{ContentType: model.ContentText, Parts: []string{userText}},
			Status:  model.StatusFinished,
		})
		parent = node.ID
	}

	assistantSlot := at(slotArr, 3)
	if assistantSlot != nil {
		text := safeNestedString(assistantSlot, 0, 0, 1, 0)
		reasoningRaw := safeNestedString(assistantSlot, 0, 0, 37, 0, 0)
		endTurn := true
		msg := &model.Message{
			Author:  model.Author{Role: model.RoleAssistant},
			Content: model.Content{ContentType: model.ContentText, Parts: []string{text}},
			Status:  model.StatusFinished,
			EndTurn: &endTurn,
		}
		if reasoningRaw != "" {
			msg.Content.Thoughts = splitReasoning(reasoningRaw)
		}
		node := conv.AppendChild(id+"-assistant", parent, msg)
		parent = node.ID
	} else if len(header) >= 3 {
		if seg, ok := header[2].(string); ok {
			node := conv.AppendChild(id+"-segment", parent, &model.Message{
				Author:  model.Author{Role: model.RoleAssistant},
				Content: model.Content{ContentType: model.ContentText, Parts: []string{seg}},
				Status:  model.StatusInProgress,
			})
			parent = node.ID
		}
	}

	if rawModel, ok := at(slotArr, 21).(string); ok && rawModel != "" {
		conv.DefaultModelSlug = "gemini-" + slugifyTitle(rawModel)
	}

	conv.CurrentNode = parent

	a.mu.Lock()
	if title, ok := a.titles.Get(id); ok && title != "" {
		conv.Title = title
	}
	a.active.Set(id, conv)
	a.mu.Unlock()

	return conv, nil
}

// splitReasoning splits Gemini's reasoning text into titled sections by
// "\n**<title>**\n" pair markers (spec.md §4.2.2).
func splitReasoning(raw string) []model.Thought {
	parts := reasoningSplitRE.Split(raw, -1)
	titles := reasoningSplitRE.FindAllStringSubmatch(raw, -1)

	var thoughts []model.Thought
	if len(parts) == 0 {
		return thoughts
	}
	if strings.TrimSpace(parts[0]) != "" {
		thoughts = append(thoughts, model.Thought{Content: strings.TrimSpace(parts[0])})
	}
	for i := 1; i < len(parts); i++ {
		summary := ""
		if i-1 < len(titles) {
			summary = titles[i-1][1]
		}
		content := strings.TrimSpace(parts[i])
		if content == "" && summary == "" {
			continue
		}
		thoughts = append(thoughts, model.Thought{Summary: summary, Content: content})
	}
	return thoughts
}

// at safely indexes v as []any, returning nil instead of panicking on
// any type mismatch or out-of-range index (spec.md §4.2 failure
// policy: "intermediate thrown access ... is caught and reduced to
// null").
func at(v any, idx int) any {
	arr, ok := v.([]any)
	if !ok || idx < 0 || idx >= len(arr) {
		return nil
	}
	return arr[idx]
}

func safeNestedString(v any, path ...int) string {
	cur := v
	for _, idx := range path {
		cur = at(cur, idx)
	}
	s, _ := cur.(string)
	return s
}
