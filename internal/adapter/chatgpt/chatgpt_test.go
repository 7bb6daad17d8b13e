package chatgpt

import (
	"testing"

	"github.com/captured/llm-capture/internal/model"
)

// TestParseSSEFoldsLinearChainAndDerivesTitleAndModelSlug covers
// scenario S1: SSE text with one user frame and one assistant
// "thoughts" frame carrying resolved_model_slug.
func TestParseSSEFoldsLinearChainAndDerivesTitleAndModelSlug(t *testing.T) {
	raw := `data: {"conversation_id":"conv-abc","message":{"id":"msg-user-1","author":{"role":"user"},"content":{"content_type":"text","parts":["What is calibration?"]},"status":"finished_successfully","end_turn":true}}

data: {"conversation_id":"conv-abc","message":{"id":"msg-asst-1","author":{"role":"assistant"},"content":{"content_type":"thoughts","thoughts":[{"summary":"Thinking","content":"..."}]},"status":"in_progress","metadata":{"resolved_model_slug":"gpt-5-t-mini"}}}

data: [DONE]
`

	a := New()
	conv, err := a.ParseInterceptedData(raw, "https://chatgpt.com/backend-api/conversation")
	if err != nil {
		t.Fatalf("ParseInterceptedData: %v", err)
	}
	if conv.ConversationID != "conv-abc" {
		t.Errorf("conversation_id = %q, want conv-abc", conv.ConversationID)
	}
	if conv.Title != "What is calibration?" {
		t.Errorf("title = %q, want placeholder replaced by first user message", conv.Title)
	}
	if conv.DefaultModelSlug != "gpt-5-t-mini" {
		t.Errorf("default_model_slug = %q, want gpt-5-t-mini", conv.DefaultModelSlug)
	}

	userNode, ok := conv.Mapping["msg-user-1"]
	if !ok {
		t.Fatal("missing user node in mapping")
	}
	if userNode.Parent == nil || *userNode.Parent != model.RootNodeID {
		t.Errorf("user node parent = %v, want root", userNode.Parent)
	}
	asstNode, ok := conv.Mapping["msg-asst-1"]
	if !ok {
		t.Fatal("missing assistant node in mapping")
	}
	if asstNode.Parent == nil || *asstNode.Parent != "msg-user-1" {
		t.Errorf("assistant node parent = %v, want msg-user-1", asstNode.Parent)
	}

	if err := conv.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestParseSSEPrefersFullConversationFrame(t *testing.T) {
	raw := `data: {"conversation_id":"conv-xyz","title":"placeholder should not matter","mapping":{"root":{"id":"root","parent":null,"children":["m1"]},"m1":{"id":"m1","parent":"root","children":[],"message":{"id":"m1","author":{"role":"user"},"content":{"content_type":"text","parts":["hi"]},"status":"finished_successfully"}}},"current_node":"m1","default_model_slug":"gpt-5"}

data: [DONE]
`
	a := New()
	conv, err := a.ParseInterceptedData(raw, "https://chatgpt.com/backend-api/conversation")
	if err != nil {
		t.Fatalf("ParseInterceptedData: %v", err)
	}
	if conv.ConversationID != "conv-xyz" {
		t.Errorf("conversation_id = %q, want conv-xyz", conv.ConversationID)
	}
	if conv.CurrentNode != "m1" {
		t.Errorf("current_node = %q, want m1", conv.CurrentNode)
	}
}

func TestParseJSONObjectWrappedInConversationEnvelope(t *testing.T) {
	raw := map[string]any{
		"conversation": map[string]any{
			"conversation_id": "conv-wrapped",
			"title":           "Wrapped",
			"default_model_slug": "gpt-5",
			"current_node":    "root",
			"mapping": map[string]any{
				"root": map[string]any{"id": "root"},
			},
		},
	}
	a := New()
	conv, err := a.ParseInterceptedData(raw, "")
	if err != nil {
		t.Fatalf("ParseInterceptedData: %v", err)
	}
	if conv.ConversationID != "conv-wrapped" {
		t.Errorf("conversation_id = %q, want conv-wrapped", conv.ConversationID)
	}
}

func TestIsPlatformURLAndExtractConversationID(t *testing.T) {
	a := New()
	cases := []struct {
		url    string
		platform bool
		id     string
		ok     bool
	}{
		{"https://chatgpt.com/c/11111111-1111-1111-1111-111111111111", true, "11111111-1111-1111-1111-111111111111", true},
		{"https://chat.openai.com/g/g-abc123/c/22222222-2222-2222-2222-222222222222", true, "22222222-2222-2222-2222-222222222222", true},
		{"https://chatgpt.com/", true, "", false},
		{"https://example.com/c/11111111-1111-1111-1111-111111111111", false, "", false},
	}
	for _, c := range cases {
		if got := a.IsPlatformURL(c.url); got != c.platform {
			t.Errorf("IsPlatformURL(%q) = %v, want %v", c.url, got, c.platform)
		}
		id, ok := a.ExtractConversationID(c.url)
		if ok != c.ok || id != c.id {
			t.Errorf("ExtractConversationID(%q) = (%q, %v), want (%q, %v)", c.url, id, ok, c.id, c.ok)
		}
	}
}

func TestEvaluateReadiness(t *testing.T) {
	trueVal := true
	conv := model.NewEmptyConversation("conv-1")
	conv.AppendChild("u1", model.RootNodeID, &model.Message{
		Author:  model.Author{Role: model.RoleUser},
		Content: model.Content{ContentType: model.ContentText, Parts: []string{"hi"}},
		Status:  model.StatusFinished,
	})
	conv.AppendChild("a1", "u1", &model.Message{
		Author:  model.Author{Role: model.RoleAssistant},
		Content: model.Content{ContentType: model.ContentText, Parts: []string{"hello there"}},
		Status:  model.StatusFinished,
		EndTurn: &trueVal,
	})

	a := New()
	r := a.EvaluateReadiness(conv)
	if !r.Ready {
		t.Errorf("Ready = false, want true; reason=%s", r.Reason)
	}
	if !r.Terminal {
		t.Error("Terminal = false, want true")
	}
	if r.ContentHash == nil {
		t.Error("ContentHash = nil, want non-nil once ready")
	}
}

func TestEvaluateReadinessInProgressIsNotTerminal(t *testing.T) {
	conv := model.NewEmptyConversation("conv-2")
	conv.AppendChild("a1", model.RootNodeID, &model.Message{
		Author:  model.Author{Role: model.RoleAssistant},
		Content: model.Content{ContentType: model.ContentText, Parts: []string{"partial"}},
		Status:  model.StatusInProgress,
	})

	a := New()
	r := a.EvaluateReadiness(conv)
	if r.Ready {
		t.Error("Ready = true, want false for in-progress assistant message")
	}
	if r.Terminal {
		t.Error("Terminal = true, want false while assistant message is in_progress")
	}
	if r.Reason != model.ReasonAssistantInProgress {
		t.Errorf("Reason = %q, want %q", r.Reason, model.ReasonAssistantInProgress)
	}
}

func TestFormatFilenameIsStableAndSlugified(t *testing.T) {
	conv := model.NewEmptyConversation("conv-1")
	conv.Title = "What Is Calibration?!"
	a := New()
	got1 := a.FormatFilename(conv)
	got2 := a.FormatFilename(conv)
	if got1 != got2 {
		t.Errorf("FormatFilename is not deterministic: %q != %q", got1, got2)
	}
	if got1 == "" {
		t.Error("FormatFilename returned empty string")
	}
}
