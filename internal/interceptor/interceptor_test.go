package interceptor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/captured/llm-capture/internal/adapter"
	"github.com/captured/llm-capture/internal/model"
	"github.com/captured/llm-capture/internal/protocol"
)

type stubAdapter struct {
	urlPattern *regexp.Regexp
	apiPattern *regexp.Regexp
	baseURL    string
}

func (s *stubAdapter) Name() string                            { return "stub" }
func (s *stubAdapter) URLMatchPattern() *regexp.Regexp          { return s.urlPattern }
func (s *stubAdapter) APIEndpointPattern() *regexp.Regexp       { return s.apiPattern }
func (s *stubAdapter) IsPlatformURL(url string) bool            { return s.urlPattern.MatchString(url) }
func (s *stubAdapter) ExtractConversationID(string) (string, bool) { return "", false }
func (s *stubAdapter) ParseInterceptedData(any, string) (*model.Conversation, error) {
	return nil, nil
}
func (s *stubAdapter) EvaluateReadiness(*model.Conversation) model.PlatformReadiness {
	return model.PlatformReadiness{}
}
func (s *stubAdapter) FormatFilename(*model.Conversation) string { return "" }

func (s *stubAdapter) ExtractConversationIDFromURL(apiURL string) (string, bool) {
	return "conv-123", true
}

func newTestHook(t *testing.T, handler http.HandlerFunc) (*Hook, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	stub := &stubAdapter{
		urlPattern: regexp.MustCompile(regexp.QuoteMeta(server.URL)),
		apiPattern: regexp.MustCompile(`/backend-api/conversation`),
		baseURL:    server.URL,
	}
	registry := adapter.NewRegistry(stub)
	h := New(server.Client().Transport, registry, "tok", zerolog.Nop())
	return h, server.Close
}

func TestRoundTripPassesThroughNonMatchingURL(t *testing.T) {
	h, closeFn := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	defer closeFn()

	client := &http.Client{Transport: h}
	resp, err := client.Get(serverURLFor(h) + "/not-matching")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello" {
		t.Errorf("body = %q, want hello", body)
	}

	select {
	case env := <-h.Events():
		t.Fatalf("expected no events for non-matching URL, got %+v", env)
	default:
	}
}

func TestRoundTripEmitsLifecycleAndDataInterceptedForMatchingURL(t *testing.T) {
	h, closeFn := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"conversation_id":"conv-123"}`))
	})
	defer closeFn()

	client := &http.Client{Transport: h}
	resp, err := client.Get(serverURLFor(h) + "/backend-api/conversation/conv-123")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(body) == 0 {
		t.Fatal("expected non-empty body")
	}

	var gotPromptSent, gotStreaming, gotCompleted, gotDataIntercepted bool
	deadline := time.After(time.Second)
	for !(gotPromptSent && gotStreaming && gotCompleted && gotDataIntercepted) {
		select {
		case env := <-h.Events():
			if !env.HasAttemptID() {
				t.Error("every emitted envelope must carry an attemptId")
			}
			switch env.Type {
			case protocol.TypeLifecycle:
				switch env.Lifecycle.Phase {
				case protocol.PhasePromptSent:
					gotPromptSent = true
				case protocol.PhaseStreaming:
					gotStreaming = true
					if env.Lifecycle.ConversationID == nil || *env.Lifecycle.ConversationID != "conv-123" {
						t.Errorf("streaming lifecycle conversationId = %v, want conv-123", env.Lifecycle.ConversationID)
					}
				case protocol.PhaseCompleted:
					gotCompleted = true
				}
			case protocol.TypeDataIntercepted:
				gotDataIntercepted = true
				if env.DataIntercepted.Data.(string) == "" {
					t.Error("expected non-empty intercepted data")
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events; promptSent=%v streaming=%v completed=%v data=%v",
				gotPromptSent, gotStreaming, gotCompleted, gotDataIntercepted)
		}
	}
}

// serverURLFor returns the httptest server's base URL that newTestHook
// recorded on the registered stub adapter.
func serverURLFor(h *Hook) string {
	reg, ok := h.registry.All()[0].(*stubAdapter)
	if !ok {
		return ""
	}
	// urlPattern holds regexp.QuoteMeta(server.URL), whose dots are
	// escaped, so the unescaped URL is kept separately in baseURL.
	return reg.baseURL
}
