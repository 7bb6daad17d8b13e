package chatgpt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/captured/llm-capture/internal/model"
)

// ErrNotAConversationPayload is returned when raw data has neither the
// SSE shape nor a decodable conversation object shape.
var ErrNotAConversationPayload = errors.New("chatgpt: payload is not a conversation")

// ParseInterceptedData parses an intercepted ChatGPT payload, which is
// either a plain JSON conversation object (optionally wrapped in
// {conversation:...} or {data:{conversation:...}}), or the raw text of
// an SSE stream of "data: <json>" lines terminated by "data: [DONE]"
// (spec.md §4.2.1).
func (a *Adapter) ParseInterceptedData(raw any, _ string) (*model.Conversation, error) {
	switch v := raw.(type) {
	case string:
		if looksLikeSSE(v) {
			return parseSSE(v)
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			return nil, fmt.Errorf("chatgpt: decoding string payload: %w", err)
		}
		return parseConversationObject(obj)
	case map[string]any:
		return parseConversationObject(v)
	default:
		return nil, ErrNotAConversationPayload
	}
}

func looksLikeSSE(s string) bool {
	trimmed := strings.TrimLeft(s, "\r\n \t")
	return strings.HasPrefix(trimmed, "data:") || strings.HasPrefix(trimmed, "data: ")
}

// unwrapConversation peels off {conversation:...} and
// {data:{conversation:...}} envelopes to find the bare conversation
// object.
func unwrapConversation(obj map[string]any) map[string]any {
	if data, ok := obj["data"].(map[string]any); ok {
		if conv, ok := data["conversation"].(map[string]any); ok {
			return conv
		}
	}
	if conv, ok := obj["conversation"].(map[string]any); ok {
		return conv
	}
	return obj
}

func parseConversationObject(obj map[string]any) (*model.Conversation, error) {
	obj = unwrapConversation(obj)

	conversationID, _ := obj["conversation_id"].(string)
	if conversationID == "" {
		conversationID, _ = obj["id"].(string)
	}
	if conversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation_id", ErrNotAConversationPayload)
	}

	conv := model.NewEmptyConversation(conversationID)
	if title, ok := obj["title"].(string); ok {
		conv.Title = title
	}
	if ct, ok := obj["create_time"].(float64); ok {
		conv.CreateTime = ct
	}
	if ut, ok := obj["update_time"].(float64); ok {
		conv.UpdateTime = ut
	}
	if slug, ok := obj["default_model_slug"].(string); ok {
		conv.DefaultModelSlug = slug
	}
	if cn, ok := obj["current_node"].(string); ok {
		conv.CurrentNode = cn
	}

	if mapping, ok := obj["mapping"].(map[string]any); ok {
		conv.Mapping = make(map[string]*model.MessageNode, len(mapping))
		for id, rawNode := range mapping {
			node, ok := rawNode.(map[string]any)
			if !ok {
				continue
			}
			conv.Mapping[id] = decodeMappingNode(id, node)
		}
	}

	if conv.CurrentNode == "" {
		conv.RepairCurrentNode()
	}

	return conv, nil
}

func decodeMappingNode(id string, node map[string]any) *model.MessageNode {
	mn := &model.MessageNode{ID: id}
	if p, ok := node["parent"].(string); ok && p != "" {
		mn.Parent = &p
	}
	if children, ok := node["children"].([]any); ok {
		for _, c := range children {
			if s, ok := c.(string); ok {
				mn.Children = append(mn.Children, s)
			}
		}
	}
	if rawMsg, ok := node["message"].(map[string]any); ok {
		mn.Message = decodeMessage(rawMsg)
	}
	return mn
}

func decodeMessage(raw map[string]any) *model.Message {
	m := &model.Message{}
	if id, ok := raw["id"].(string); ok {
		m.ID = id
	}
	if author, ok := raw["author"].(map[string]any); ok {
		if role, ok := author["role"].(string); ok {
			m.Author.Role = model.NormalizeRole(role)
		}
		if name, ok := author["name"].(string); ok {
			m.Author.Name = name
		}
	}
	m.Content = model.NormalizeContent(raw["content"])
	if status, ok := raw["status"].(string); ok {
		m.Status = model.Status(status)
	}
	if et, ok := raw["end_turn"].(bool); ok {
		m.EndTurn = &et
	}
	if ct, ok := raw["create_time"].(float64); ok {
		m.CreateTime = ct
	}
	if ut, ok := raw["update_time"].(float64); ok {
		m.UpdateTime = ut
	}
	return m
}
