package protocol

import "testing"

func TestShouldApplySessionInitToken(t *testing.T) {
	cases := []struct {
		current, incoming string
		want               bool
	}{
		{"", "abc", true},
		{"abc", "def", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		if got := ShouldApplySessionInitToken(c.current, c.incoming); got != c.want {
			t.Errorf("ShouldApplySessionInitToken(%q,%q)=%v want %v", c.current, c.incoming, got, c.want)
		}
	}
}

func TestAcceptMessage(t *testing.T) {
	cases := []struct {
		name                           string
		pageOrigin, msgOrigin          string
		currentToken, msgToken         string
		want                           bool
	}{
		{"same origin, no token", "https://chat.example", "https://chat.example", "", "", true},
		{"different origin, matching token", "https://chat.example", "https://evil.example", "tok", "tok", true},
		{"different origin, mismatched token", "https://chat.example", "https://evil.example", "tok", "other", false},
		{"different origin, no current token", "https://chat.example", "https://evil.example", "", "tok", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := AcceptMessage(c.pageOrigin, c.msgOrigin, c.currentToken, c.msgToken)
			if got != c.want {
				t.Errorf("got %v want %v", got, c.want)
			}
		})
	}
}

func TestRequiresAttemptID(t *testing.T) {
	if !RequiresAttemptID(TypeLifecycle) {
		t.Errorf("lifecycle messages must require attemptId")
	}
	if RequiresAttemptID(TypeStreamDumpConfig) {
		t.Errorf("stream dump config is not an attempt-scoped message")
	}
}

func TestPhasePriorityMonotonic(t *testing.T) {
	if !(PhasePriority(PhasePromptSent) < PhasePriority(PhaseStreaming) &&
		PhasePriority(PhaseStreaming) < PhasePriority(PhaseCompleted)) {
		t.Fatalf("expected strictly increasing phase priority")
	}
}
