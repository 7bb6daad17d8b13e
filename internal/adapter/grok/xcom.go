package grok

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var variablesRestIDRE = regexp.MustCompile(`"restId"\s*:\s*"?([0-9]{10,20})"?`)

// restIDFromVariables extracts variables.restId from a GraphQL
// `variables` query-string JSON blob, falling back to a regex scrape
// if the blob isn't well-formed JSON (spec.md §4.2.3).
func restIDFromVariables(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(raw), &vars); err == nil {
		if restID, ok := vars["restId"].(string); ok && restID != "" {
			return restID, true
		}
	}
	if m := variablesRestIDRE.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// parseItemsByRestID handles x.com's GrokConversationItemsByRestId
// response: a list of message items for one numeric conversation id.
func (a *Adapter) parseItemsByRestID(payload map[string]any, restID string) error {
	items, ok := findItemsList(payload)
	if !ok {
		return fmt.Errorf("grok: unrecognized ItemsByRestId payload shape")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	conv := a.activeConversation(restID)

	parent := rootOf(conv)
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := item["responseId"].(string)
		if id == "" {
			id, _ = item["message_id"].(string)
		}
		if id == "" {
			continue
		}
		sender, _ := item["sender"].(string)
		text, _ := item["message"].(string)
		partial, _ := item["partial"].(bool)

		endTurn := !partial
		node := upsertMessageNode(conv, id, parent, sender, text, partial, &endTurn)
		if modelSlug, ok := item["model"].(string); ok && modelSlug != "" {
			node.Message.Metadata = map[string]any{"model": modelSlug}
		}
		parent = id
	}

	if title, ok := a.titles.Get(restID); ok && title != "" {
		conv.Title = title
	}
	conv.CurrentNode = parent
	return nil
}

func findItemsList(payload map[string]any) ([]any, bool) {
	for _, key := range []string{"items", "responses", "data"} {
		if list, ok := payload[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// parseGrokHistory handles x.com's GrokHistory response: a title list
// keyed by conversation id, merged into the title LRU and applied
// retroactively to any cached conversation (spec.md §4.2.3).
func (a *Adapter) parseGrokHistory(payload map[string]any) error {
	list, ok := findItemsList(payload)
	if !ok {
		return fmt.Errorf("grok: unrecognized GrokHistory payload shape")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["conversationId"].(string)
		if id == "" {
			id, _ = entry["id"].(string)
		}
		title, _ := entry["title"].(string)
		if id == "" || title == "" {
			continue
		}
		a.titles.Set(id, title)
		if conv, ok := a.active.Get(id); ok && conv != nil {
			conv.Title = title
		}
	}
	return nil
}

