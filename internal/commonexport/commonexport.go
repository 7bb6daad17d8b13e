// Package commonexport implements the flat latest-turn normalizer
// (spec.md §4.7): given a canonical Conversation and a provider display
// name, it emits the common, cross-provider export shape the owning
// extension's "copy as common JSON" action and the External Hub's
// format=common pull option both use.
package commonexport

import (
	"strings"
	"time"

	"github.com/captured/llm-capture/internal/model"
)

// Export is the flat, provider-agnostic latest-turn shape.
type Export struct {
	Format         string   `json:"format"`
	LLM            string   `json:"llm"`
	Model          string   `json:"model"`
	Title          string   `json:"title"`
	ConversationID string   `json:"conversation_id"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	Prompt         string   `json:"prompt"`
	Response       string   `json:"response"`
	Reasoning      []string `json:"reasoning"`
}

// Normalize builds an Export from conv as seen by providerDisplayName
// (spec.md §4.7).
func Normalize(conv *model.Conversation, providerDisplayName string) Export {
	if conv == nil {
		return Export{Format: "common", LLM: providerDisplayName, Model: "unknown"}
	}

	user, assistant := latestTurn(conv)

	response := ""
	var reasoning []string
	if assistant != nil {
		response = assistant.Text()
		if assistant.Content.ContentType == model.ContentReasoningRecap {
			if s := strings.TrimSpace(assistant.Content.Content); s != "" {
				reasoning = append(reasoning, s)
			}
		}
		reasoning = dedupe(append(reasoning, reasoningFrom(assistant)...))
	}

	prompt := ""
	if user != nil {
		prompt = user.Text()
	}

	return Export{
		Format:         "common",
		LLM:            providerDisplayName,
		Model:          modelSlug(assistant, conv),
		Title:          conv.Title,
		ConversationID: conv.ConversationID,
		CreatedAt:      iso8601(conv.CreateTime),
		UpdatedAt:      iso8601(conv.UpdateTime),
		Prompt:         prompt,
		Response:       response,
		Reasoning:      reasoning,
	}
}

// latestTurn walks current_node upward, returning the nearest user and
// nearest assistant message encountered (spec.md §4.7: "traverse
// current_node upward to find the latest user/assistant pair").
func latestTurn(conv *model.Conversation) (user, assistant *model.Message) {
	id := conv.CurrentNode
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		seen[id] = true
		node, ok := conv.Mapping[id]
		if !ok {
			break
		}
		if node.Message != nil {
			switch node.Message.Author.Role {
			case model.RoleAssistant:
				if assistant == nil {
					assistant = node.Message
				}
			case model.RoleUser:
				if user == nil {
					user = node.Message
				}
			}
		}
		if user != nil && assistant != nil {
			break
		}
		if node.Parent == nil {
			break
		}
		id = *node.Parent
	}
	return user, assistant
}

// modelSlug implements the model-slug precedence chain (spec.md §4.7):
// latest assistant metadata.resolved_model_slug -> .model_slug -> .model
// -> conversation default_model_slug, treating "auto"/empty as absent.
func modelSlug(assistant *model.Message, conv *model.Conversation) string {
	if assistant != nil {
		for _, key := range []string{"resolved_model_slug", "model_slug", "model"} {
			if v := presentString(assistant.Metadata, key); v != "" {
				return v
			}
		}
	}
	if conv != nil {
		v := strings.TrimSpace(conv.DefaultModelSlug)
		if v != "" && !strings.EqualFold(v, "auto") {
			return v
		}
	}
	return "unknown"
}

func presentString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	v, ok := meta[key].(string)
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "auto") {
		return ""
	}
	return v
}

// reasoningFrom implements the reasoning-sources precedence chain
// (spec.md §4.7): content.thoughts[].content, else metadata.reasoning,
// else metadata.thinking_trace. Empty strings are dropped. The
// reasoning_recap content fallback is handled by the caller, which
// already holds the assistant message before this chain runs.
func reasoningFrom(msg *model.Message) []string {
	if msg == nil {
		return nil
	}
	var out []string
	for _, th := range msg.Content.Thoughts {
		if s := strings.TrimSpace(th.Content); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	if msg.Metadata != nil {
		for _, key := range []string{"reasoning", "thinking_trace"} {
			if v, ok := msg.Metadata[key]; ok {
				if s := toStringSlice(v); len(s) > 0 {
					return s
				}
			}
		}
	}
	return nil
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// iso8601 converts seconds-since-epoch (possibly fractional) to an
// ISO-8601/RFC3339 timestamp string, the format spec.md §4.7 requires
// for created_at/updated_at.
func iso8601(seconds float64) string {
	if seconds == 0 {
		return ""
	}
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339Nano)
}
