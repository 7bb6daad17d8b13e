// Package attempt implements the per-attempt lifecycle state machine
// from spec.md §4.3: monotonic phase transitions, supersession of an
// older attempt on the same conversation, and a terminated absorbing
// state on dispose.
//
// Grounded on the teacher's pkg/connector/turn_validation.go, which
// enforces a similar "reject out-of-order turn state" rule for
// in-flight generation turns.
package attempt

import "github.com/captured/llm-capture/internal/protocol"

// Phase is the lifecycle phase of an Attempt, extending protocol.Phase
// with the three states the wire protocol never carries directly:
// idle (before any message) and the absorbing superseded/terminated
// states.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePromptSent  Phase = "prompt_sent"
	PhaseStreaming   Phase = "streaming"
	PhaseCompleted   Phase = "completed"
	PhaseSuperseded  Phase = "superseded"
	PhaseTerminated  Phase = "terminated"
)

func priority(p Phase) int {
	switch p {
	case PhaseIdle:
		return 0
	case PhasePromptSent:
		return 1
	case PhaseStreaming:
		return 2
	case PhaseCompleted:
		return 3
	case PhaseSuperseded, PhaseTerminated:
		return 4
	default:
		return -1
	}
}

func fromWire(p protocol.Phase) Phase {
	switch p {
	case protocol.PhasePromptSent:
		return PhasePromptSent
	case protocol.PhaseStreaming:
		return PhaseStreaming
	case protocol.PhaseCompleted:
		return PhaseCompleted
	default:
		return PhaseIdle
	}
}

// Attempt is a client-side abstraction of one user turn in flight
// (spec.md §3.2).
type Attempt struct {
	ID             string
	ConversationID *string
	Phase          Phase
	Platform       string
}

// NewAttempt creates an idle attempt.
func NewAttempt(id, platform string) *Attempt {
	return &Attempt{ID: id, Phase: PhaseIdle, Platform: platform}
}

// ApplyLifecycle applies a wire lifecycle transition, rejecting any
// regression per spec.md §4.3's hardened transition rules. Returns
// false if the transition was rejected (phase unchanged).
func (a *Attempt) ApplyLifecycle(wire protocol.Phase, conversationID *string) bool {
	next := fromWire(wire)
	if priority(next) <= priority(a.Phase) {
		return false
	}
	a.Phase = next
	if conversationID != nil {
		a.ConversationID = conversationID
	}
	return true
}

// Supersede transitions a into the absorbing superseded state. Once
// superseded, the attempt can never transition again (priority 4 is
// maximal, so any future ApplyLifecycle/Terminate call is a no-op).
func (a *Attempt) Supersede() {
	if priority(a.Phase) >= priority(PhaseSuperseded) {
		return
	}
	a.Phase = PhaseSuperseded
}

// Terminate transitions a into the absorbing terminated state on
// dispose (ATTEMPT_DISPOSED).
func (a *Attempt) Terminate() {
	if priority(a.Phase) >= priority(PhaseTerminated) {
		return
	}
	a.Phase = PhaseTerminated
}

// IsSuperseded reports whether a has been permanently superseded.
func (a *Attempt) IsSuperseded() bool {
	return a.Phase == PhaseSuperseded
}

// IsTerminal reports whether a is in an absorbing state (superseded or
// terminated) and can no longer transition.
func (a *Attempt) IsTerminal() bool {
	return a.Phase == PhaseSuperseded || a.Phase == PhaseTerminated
}
