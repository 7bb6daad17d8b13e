package model

import "strings"

// AuthorRole is the normalized role of a message author. Unknown roles
// from the wire normalize to RoleAssistant (spec.md §3.1).
type AuthorRole string

const (
	RoleSystem    AuthorRole = "system"
	RoleUser      AuthorRole = "user"
	RoleAssistant AuthorRole = "assistant"
	RoleTool      AuthorRole = "tool"
)

// NormalizeRole maps an arbitrary wire role string onto the known set.
func NormalizeRole(raw string) AuthorRole {
	switch AuthorRole(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSystem:
		return RoleSystem
	case RoleUser:
		return RoleUser
	case RoleTool:
		return RoleTool
	case RoleAssistant:
		return RoleAssistant
	default:
		return RoleAssistant
	}
}

// ContentType enumerates the message content shapes.
type ContentType string

const (
	ContentText           ContentType = "text"
	ContentThoughts       ContentType = "thoughts"
	ContentReasoningRecap ContentType = "reasoning_recap"
	ContentCode           ContentType = "code"
	ContentExecutionOut   ContentType = "execution_output"
)

// Status is the finalization state of a message.
type Status string

const (
	StatusFinished   Status = "finished_successfully"
	StatusInProgress Status = "in_progress"
	StatusError      Status = "error"
)

// Author identifies who produced a message.
type Author struct {
	Role     AuthorRole     `json:"role"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Thought is one named reasoning section (Gemini reasoning splitting,
// spec.md §4.2.2).
type Thought struct {
	Summary string `json:"summary,omitempty"`
	Content string `json:"content"`
}

// Content carries the actual payload of a message in one of several
// shapes depending on ContentType.
type Content struct {
	ContentType ContentType `json:"content_type"`
	Parts       []string    `json:"parts,omitempty"`
	Thoughts    []Thought   `json:"thoughts,omitempty"`
	Content     string      `json:"content,omitempty"`
}

// Message is one turn authored by Author with Content, tracked through
// its lifecycle Status.
type Message struct {
	ID         string         `json:"id"`
	Author     Author         `json:"author"`
	Content    Content        `json:"content"`
	Status     Status         `json:"status"`
	EndTurn    *bool          `json:"end_turn"`
	CreateTime float64        `json:"create_time"`
	UpdateTime float64        `json:"update_time"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NormalizeContent coerces a non-object/unrecognized content payload
// into an empty text content, per the parser tolerance rule in
// spec.md §3.1.
func NormalizeContent(raw any) Content {
	switch v := raw.(type) {
	case map[string]any:
		ct, _ := v["content_type"].(string)
		c := Content{ContentType: ContentType(ct)}
		if parts, ok := v["parts"].([]any); ok {
			for _, p := range parts {
				if s, ok := p.(string); ok {
					c.Parts = append(c.Parts, s)
				}
			}
		}
		if s, ok := v["content"].(string); ok {
			c.Content = s
		}
		if c.ContentType == "" {
			c.ContentType = ContentText
		}
		return c
	default:
		return Content{ContentType: ContentText}
	}
}

// Text concatenates a message's textual representation: parts joined
// with no separator, then any standalone content field appended. Used
// by readiness evaluators ahead of NFC normalization.
func (m *Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content.Parts {
		b.WriteString(p)
	}
	b.WriteString(m.Content.Content)
	return b.String()
}

// IsFinishedAssistantTurn reports whether m is a finished, end-turn,
// content_type=text assistant message with non-empty text — the core
// ChatGPT/Gemini/Grok readiness predicate (spec.md §4.2.1/.2/.3).
func (m *Message) IsFinishedAssistantTurn(normalizedText func(string) string) bool {
	if m == nil {
		return false
	}
	if m.Author.Role != RoleAssistant {
		return false
	}
	if m.Content.ContentType != ContentText {
		return false
	}
	if m.Status != StatusFinished {
		return false
	}
	if m.EndTurn == nil || !*m.EndTurn {
		return false
	}
	text := m.Text()
	if normalizedText != nil {
		text = normalizedText(text)
	}
	return strings.TrimSpace(text) != ""
}
