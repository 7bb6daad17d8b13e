package chatgpt

import (
	"bufio"
	"encoding/json"
	"strings"

	"github.com/captured/llm-capture/internal/model"
)

const sseDone = "[DONE]"

// parseSSE implements the SSE reconstruction rule (spec.md §4.2.1): if
// any frame carries a full conversation object (a "mapping" field),
// that frame wins outright; otherwise frames' "message" fields are
// folded into a linear chain hung off root, in first-seen order;
// conversation_id comes from the first frame that supplies one, title
// from the last frame with a non-empty title, and default_model_slug
// from the last assistant message that carries a model slug.
func parseSSE(raw string) (*model.Conversation, error) {
	frames, err := splitSSEFrames(raw)
	if err != nil {
		return nil, err
	}

	for _, f := range frames {
		if _, ok := f["mapping"]; ok {
			return parseConversationObject(f)
		}
		if data, ok := f["data"].(map[string]any); ok {
			if _, ok := data["mapping"]; ok {
				return parseConversationObject(data)
			}
		}
	}

	return foldLinearChain(frames)
}

// splitSSEFrames extracts the JSON payload of every "data: ..." line,
// stopping at the "[DONE]" terminator.
func splitSSEFrames(raw string) ([]map[string]any, error) {
	var frames []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if payload == sseDone {
			break
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

func foldLinearChain(frames []map[string]any) (*model.Conversation, error) {
	var conversationID, title, defaultModelSlug, firstUserText string

	conv := (*model.Conversation)(nil)
	var order []string
	seen := make(map[string]bool)

	for _, f := range frames {
		if id, ok := f["conversation_id"].(string); ok && id != "" && conversationID == "" {
			conversationID = id
		}
		if t, ok := f["title"].(string); ok && t != "" {
			title = t
		}

		rawMsg, ok := f["message"].(map[string]any)
		if !ok {
			continue
		}
		id, _ := rawMsg["id"].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)

		if conv == nil {
			conv = model.NewEmptyConversation("")
		}
		msg := decodeMessage(rawMsg)
		conv.Mapping[id] = &model.MessageNode{ID: id, Message: msg}

		if msg.Author.Role == model.RoleUser && firstUserText == "" {
			firstUserText = msg.Text()
		}
		if msg.Author.Role == model.RoleAssistant {
			if slug := modelSlugFromMetadata(rawMsg); slug != "" {
				defaultModelSlug = slug
			}
		}
	}

	if conv == nil {
		return nil, ErrNotAConversationPayload
	}
	if conversationID == "" {
		return nil, ErrNotAConversationPayload
	}

	if isPlaceholderTitle(title) && firstUserText != "" {
		title = firstUserText
	}

	conv.ConversationID = conversationID
	conv.Title = title
	if defaultModelSlug != "" {
		conv.DefaultModelSlug = defaultModelSlug
	}

	parent := model.RootNodeID
	for _, id := range order {
		node := conv.Mapping[id]
		node.Parent = &parent
		root := conv.Mapping[parent]
		root.Children = append(root.Children, id)
		parent = id
	}

	conv.RepairCurrentNode()
	return conv, nil
}

// isPlaceholderTitle reports whether title is empty or one of ChatGPT's
// generic placeholder titles, which should be replaced by the first
// user message (spec.md §8 S1).
func isPlaceholderTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	return t == "" || t == "new chat"
}

// modelSlugFromMetadata implements the model slug precedence chain
// (spec.md §4.5): metadata.resolved_model_slug -> .model_slug -> .model,
// treating "auto" and empty as absent.
func modelSlugFromMetadata(rawMsg map[string]any) string {
	meta, ok := rawMsg["metadata"].(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"resolved_model_slug", "model_slug", "model"} {
		if v, ok := meta[key].(string); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.EqualFold(v, "auto") {
				return v
			}
		}
	}
	return ""
}
