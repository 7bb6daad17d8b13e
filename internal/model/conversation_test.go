package model

import (
	"errors"
	"testing"
)

// TestValidateAcceptsEmptyConversation covers invariant 1's base case:
// the root-only conversation every adapter starts folding from.
func TestValidateAcceptsEmptyConversation(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	if err := conv.Validate(); err != nil {
		t.Fatalf("expected a freshly-built empty conversation to validate, got %v", err)
	}
}

// TestValidateAcceptsLinearChain builds a small user->assistant chain
// via AppendChild and checks every invariant 1 clause: every parent
// link is reciprocated, every child id resolves, and current_node
// resolves.
func TestValidateAcceptsLinearChain(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	user := conv.AppendChild("msg-user", RootNodeID, &Message{Author: Author{Role: RoleUser}})
	asst := conv.AppendChild("msg-asst", "msg-user", &Message{Author: Author{Role: RoleAssistant}})
	conv.CurrentNode = asst.ID

	if err := conv.Validate(); err != nil {
		t.Fatalf("expected a well-formed linear chain to validate, got %v", err)
	}
	if len(conv.Mapping[RootNodeID].Children) != 1 || conv.Mapping[RootNodeID].Children[0] != user.ID {
		t.Fatalf("expected root's children to list msg-user, got %+v", conv.Mapping[RootNodeID].Children)
	}
}

func TestValidateRejectsMissingRoot(t *testing.T) {
	conv := &Conversation{Mapping: map[string]*MessageNode{}, CurrentNode: RootNodeID}
	if err := conv.Validate(); !errors.Is(err, ErrMissingRoot) {
		t.Fatalf("expected ErrMissingRoot, got %v", err)
	}
}

func TestValidateRejectsMultipleRoots(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	conv.Mapping["impostor-root"] = &MessageNode{ID: "impostor-root", Parent: nil}
	if err := conv.Validate(); !errors.Is(err, ErrMultipleRoots) {
		t.Fatalf("expected ErrMultipleRoots, got %v", err)
	}
}

func TestValidateRejectsDanglingParentReference(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	parentID := "ghost-parent"
	conv.Mapping["orphan"] = &MessageNode{ID: "orphan", Parent: &parentID}
	if err := conv.Validate(); !errors.Is(err, ErrDanglingParent) {
		t.Fatalf("expected ErrDanglingParent for a parent id absent from mapping, got %v", err)
	}
}

func TestValidateRejectsUnreciprocatedParentLink(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	rootID := RootNodeID
	// Node claims root as parent, but root's Children never lists it.
	conv.Mapping["unlisted"] = &MessageNode{ID: "unlisted", Parent: &rootID}
	if err := conv.Validate(); !errors.Is(err, ErrDanglingParent) {
		t.Fatalf("expected ErrDanglingParent for an unreciprocated parent link, got %v", err)
	}
}

func TestValidateRejectsDanglingChildReference(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	conv.Mapping[RootNodeID].Children = []string{"does-not-exist"}
	if err := conv.Validate(); !errors.Is(err, ErrDanglingChild) {
		t.Fatalf("expected ErrDanglingChild, got %v", err)
	}
}

func TestValidateRejectsUnresolvableCurrentNode(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	conv.CurrentNode = "nowhere"
	if err := conv.Validate(); !errors.Is(err, ErrInvalidCurrentNode) {
		t.Fatalf("expected ErrInvalidCurrentNode, got %v", err)
	}
}

// TestRepairCurrentNodePicksLatestByUpdateTime covers the fallback
// parsers reach for when a wire payload's current_node can't be
// trusted (spec.md §3.1): the node with the largest update_time wins,
// falling back to create_time.
func TestRepairCurrentNodePicksLatestByUpdateTime(t *testing.T) {
	conv := NewEmptyConversation("conv-1")
	older := conv.AppendChild("older", RootNodeID, &Message{})
	older.Message.UpdateTime = 10
	newer := conv.AppendChild("newer", RootNodeID, &Message{})
	newer.Message.UpdateTime = 20
	conv.CurrentNode = "gone"

	conv.RepairCurrentNode()

	if conv.CurrentNode != "newer" {
		t.Fatalf("expected RepairCurrentNode to resolve to the largest-update_time node, got %q", conv.CurrentNode)
	}
	if err := conv.Validate(); err != nil {
		t.Fatalf("expected the repaired conversation to validate, got %v", err)
	}
}
