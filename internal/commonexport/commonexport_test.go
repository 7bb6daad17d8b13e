package commonexport

import (
	"testing"

	"github.com/captured/llm-capture/internal/model"
)

func buildConversation() *model.Conversation {
	conv := model.NewEmptyConversation("conv-1")
	conv.Title = "Test"
	conv.CreateTime = 1700000000
	conv.UpdateTime = 1700000100.5
	conv.DefaultModelSlug = "gpt-5"

	conv.AppendChild("u1", model.RootNodeID, &model.Message{
		Author:  model.Author{Role: model.RoleUser},
		Content: model.Content{ContentType: model.ContentText, Parts: []string{"What is 2+2?"}},
		Status:  model.StatusFinished,
	})
	trueVal := true
	conv.AppendChild("a1", "u1", &model.Message{
		Author:  model.Author{Role: model.RoleAssistant},
		Content: model.Content{ContentType: model.ContentText, Parts: []string{"4"}, Thoughts: []model.Thought{
			{Summary: "Arithmetic", Content: "Adding two plus two gives four."},
		}},
		Status:   model.StatusFinished,
		EndTurn:  &trueVal,
		Metadata: map[string]any{"resolved_model_slug": "gpt-5-t-mini"},
	})
	conv.CurrentNode = "a1"
	return conv
}

func TestNormalizeBasicFields(t *testing.T) {
	conv := buildConversation()
	exp := Normalize(conv, "ChatGPT")

	if exp.Format != "common" {
		t.Errorf("Format = %q, want common", exp.Format)
	}
	if exp.LLM != "ChatGPT" {
		t.Errorf("LLM = %q, want ChatGPT", exp.LLM)
	}
	if exp.Model != "gpt-5-t-mini" {
		t.Errorf("Model = %q, want gpt-5-t-mini (resolved_model_slug precedence)", exp.Model)
	}
	if exp.Prompt != "What is 2+2?" {
		t.Errorf("Prompt = %q, want %q", exp.Prompt, "What is 2+2?")
	}
	if exp.Response != "4" {
		t.Errorf("Response = %q, want 4", exp.Response)
	}
	if len(exp.Reasoning) != 1 || exp.Reasoning[0] != "Adding two plus two gives four." {
		t.Errorf("Reasoning = %v, want [\"Adding two plus two gives four.\"]", exp.Reasoning)
	}
	if exp.CreatedAt == "" || exp.UpdatedAt == "" {
		t.Error("CreatedAt/UpdatedAt should not be empty")
	}
}

func TestModelSlugFallsBackToConversationDefault(t *testing.T) {
	conv := buildConversation()
	conv.Mapping["a1"].Message.Metadata = nil
	exp := Normalize(conv, "ChatGPT")
	if exp.Model != "gpt-5" {
		t.Errorf("Model = %q, want gpt-5 (conversation default fallback)", exp.Model)
	}
}

func TestModelSlugTreatsAutoAsAbsent(t *testing.T) {
	conv := buildConversation()
	conv.Mapping["a1"].Message.Metadata = map[string]any{"resolved_model_slug": "auto"}
	conv.DefaultModelSlug = "auto"
	exp := Normalize(conv, "ChatGPT")
	if exp.Model != "unknown" {
		t.Errorf("Model = %q, want unknown when every source is auto/absent", exp.Model)
	}
}

func TestReasoningRecapUsedAsResponseAndReasoningFallback(t *testing.T) {
	conv := model.NewEmptyConversation("conv-2")
	conv.AppendChild("u1", model.RootNodeID, &model.Message{
		Author:  model.Author{Role: model.RoleUser},
		Content: model.Content{ContentType: model.ContentText, Parts: []string{"explain"}},
	})
	conv.AppendChild("a1", "u1", &model.Message{
		Author:  model.Author{Role: model.RoleAssistant},
		Content: model.Content{ContentType: model.ContentReasoningRecap, Content: "recapped reasoning"},
	})
	conv.CurrentNode = "a1"

	exp := Normalize(conv, "ChatGPT")
	if exp.Response != "recapped reasoning" {
		t.Errorf("Response = %q, want recapped reasoning", exp.Response)
	}
	if len(exp.Reasoning) != 1 || exp.Reasoning[0] != "recapped reasoning" {
		t.Errorf("Reasoning = %v, want [\"recapped reasoning\"]", exp.Reasoning)
	}
}

func TestNilConversationReturnsSafeDefault(t *testing.T) {
	exp := Normalize(nil, "ChatGPT")
	if exp.Model != "unknown" {
		t.Errorf("Model = %q, want unknown for nil conversation", exp.Model)
	}
}
