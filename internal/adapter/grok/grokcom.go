package grok

import "fmt"

// parseConversationMeta handles grok.com's
// /rest/app-chat/conversations_v2/{id} response: conversation title and
// times, with no tree or message-body information (spec.md §4.2.3).
func (a *Adapter) parseConversationMeta(payload map[string]any, id string) error {
	meta := unwrapConversation(payload)

	a.mu.Lock()
	defer a.mu.Unlock()
	conv := a.activeConversation(id)

	if title, ok := meta["title"].(string); ok && title != "" {
		conv.Title = title
		a.titles.Set(id, title)
	} else if title, ok := a.titles.Get(id); ok && title != "" {
		conv.Title = title
	}
	if ct, ok := meta["createTime"].(float64); ok {
		conv.CreateTime = ct
	}
	if mt, ok := meta["modifyTime"].(float64); ok {
		conv.UpdateTime = mt
	}
	return nil
}

func unwrapConversation(payload map[string]any) map[string]any {
	if conv, ok := payload["conversation"].(map[string]any); ok {
		return conv
	}
	return payload
}

// parseResponseNode handles grok.com's
// /rest/app-chat/conversations/{id}/response-node response: the tree
// shape (parent/child links) for an existing set of message nodes,
// reparenting any node whose parent changed (spec.md §4.2.3).
func (a *Adapter) parseResponseNode(payload map[string]any, id string) error {
	nodes, ok := findItemsList(payload)
	if !ok {
		return fmt.Errorf("grok: unrecognized response-node payload shape")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	conv := a.activeConversation(id)

	for _, raw := range nodes {
		n, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		nodeID, _ := n["responseId"].(string)
		if nodeID == "" {
			continue
		}
		parentID, _ := n["parentResponseId"].(string)
		if parentID == "" {
			parentID = rootOf(conv)
		}
		if _, exists := conv.Mapping[nodeID]; !exists {
			conv.AppendChild(nodeID, parentID, nil)
			continue
		}
		reparent(conv, nodeID, parentID)
	}
	return nil
}

// parseLoadResponses handles grok.com's
// /rest/app-chat/conversations/{id}/load-responses response: message
// bodies (sender/partial/model) for existing or new nodes (spec.md
// §4.2.3).
func (a *Adapter) parseLoadResponses(payload map[string]any, id string) error {
	responses, ok := findItemsList(payload)
	if !ok {
		return fmt.Errorf("grok: unrecognized load-responses payload shape")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	conv := a.activeConversation(id)

	var latestID string
	for _, raw := range responses {
		r, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		responseID, _ := r["responseId"].(string)
		if responseID == "" {
			continue
		}
		sender, _ := r["sender"].(string)
		text, _ := r["message"].(string)
		partial, _ := r["partial"].(bool)

		parentID := rootOf(conv)
		if existing, ok := conv.Mapping[responseID]; ok && existing.Parent != nil {
			parentID = *existing.Parent
		}

		endTurn := !partial
		node := upsertMessageNode(conv, responseID, parentID, sender, text, partial, &endTurn)
		if modelSlug, ok := r["model"].(string); ok && modelSlug != "" {
			node.Message.Metadata = map[string]any{"model": modelSlug}
		}
		latestID = responseID
	}

	if latestID != "" {
		conv.CurrentNode = latestID
	}
	return nil
}
