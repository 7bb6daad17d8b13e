package gemini

import "testing"

// TestParseInterceptedDataStripsDoubleJSONEnvelope covers scenario S2:
// the security-header-prefixed batchexecute body decodes to a
// conversation with the "c_" prefix stripped and exactly one extra
// (non-root) mapping node when no user/assistant slots are present.
func TestParseInterceptedDataStripsDoubleJSONEnvelope(t *testing.T) {
	inner := `[[[["c_test-id","r","[[\"msg\"]]"]]]]`
	body := ")]}'\n\n123\n[[\"wrb.fr\",\"hNvQHb\"," + quoteJSON(inner) + "]]"

	a := New()
	conv, err := a.ParseInterceptedData(body, "")
	if err != nil {
		t.Fatalf("ParseInterceptedData: %v", err)
	}
	if conv == nil {
		t.Fatal("conv = nil, want parsed conversation")
	}
	if conv.ConversationID != "test-id" {
		t.Errorf("conversation_id = %q, want test-id", conv.ConversationID)
	}

	nonRoot := 0
	for id := range conv.Mapping {
		if id != "root" {
			nonRoot++
		}
	}
	if nonRoot != 1 {
		t.Errorf("non-root mapping nodes = %d, want 1", nonRoot)
	}
}

// TestTitleRetroactivelyMutatesCachedConversation covers scenario S3:
// a conversation parsed before its title arrives still gets mutated in
// place (by pointer identity) once the title RPC is ingested.
func TestTitleRetroactivelyMutatesCachedConversation(t *testing.T) {
	inner := `[[[["c_X","r","[[\"msg\"]]"]]]]`
	convBody := ")]}'\n\n1\n[[\"wrb.fr\",\"hNvQHb\"," + quoteJSON(inner) + "]]"

	a := New()
	conv, err := a.ParseInterceptedData(convBody, "")
	if err != nil {
		t.Fatalf("ParseInterceptedData (conversation): %v", err)
	}
	if conv == nil {
		t.Fatal("conv = nil after conversation RPC")
	}
	if conv.Title != "" {
		t.Fatalf("title = %q before titles RPC, want empty default", conv.Title)
	}

	titlesInner := `[null,null,[["c_X","Hadith Authenticity"]]]`
	titlesBody := ")]}'\n\n1\n[[\"wrb.fr\",\"MaZiqc\"," + quoteJSON(titlesInner) + "]]"

	if _, err := a.ParseInterceptedData(titlesBody, ""); err != nil {
		t.Fatalf("ParseInterceptedData (titles): %v", err)
	}

	if conv.Title != "Hadith Authenticity" {
		t.Errorf("title after retroactive update = %q, want %q (mutation by identity)", conv.Title, "Hadith Authenticity")
	}

	cached, ok := a.Active("X")
	if !ok || cached != conv {
		t.Error("Active(X) did not return the same pointer mutated above")
	}
}

func TestIsPlatformURL(t *testing.T) {
	a := New()
	if !a.IsPlatformURL("https://gemini.google.com/app/abc123") {
		t.Error("expected gemini.google.com to match")
	}
	if a.IsPlatformURL("https://chatgpt.com/c/x") {
		t.Error("expected chatgpt.com to not match")
	}
}

// quoteJSON renders s as a JSON string literal, escaping only '"' and
// '\\', which is enough for these fixtures.
func quoteJSON(s string) string {
	out := "\""
	for _, r := range s {
		switch r {
		case '"':
			out += "\\\""
		case '\\':
			out += "\\\\"
		default:
			out += string(r)
		}
	}
	return out + "\""
}
