package grok

import "github.com/captured/llm-capture/internal/model"

// rootOf returns the id new nodes should hang off when a conversation
// has no turns yet.
func rootOf(conv *model.Conversation) string {
	return model.RootNodeID
}

// upsertMessageNode creates or updates the message node id under conv,
// reparenting it if it already existed under a different parent
// (spec.md §4.2.3: "response-node links must reparent cleanly, remove
// from old parent's children").
func upsertMessageNode(conv *model.Conversation, id, parentID, sender, text string, partial bool, endTurn *bool) *model.MessageNode {
	role := roleFromSender(sender)
	status := statusFromPartial(partial)

	if node, ok := conv.Mapping[id]; ok {
		reparent(conv, id, parentID)
		if node.Message == nil {
			node.Message = &model.Message{}
		}
		node.Message.Author.Role = role
		node.Message.Content = model.Content{ContentType: model.ContentText, Parts: []string{text}}
		node.Message.Status = status
		node.Message.EndTurn = endTurn
		return node
	}

	node := conv.AppendChild(id, parentID, &model.Message{
		Author:  model.Author{Role: role},
		Content: model.Content{ContentType: model.ContentText, Parts: []string{text}},
		Status:  status,
		EndTurn: endTurn,
	})
	return node
}

// reparent moves node id from its current parent's children list (if
// any) to newParentID's, and updates its recorded parent pointer.
func reparent(conv *model.Conversation, id, newParentID string) {
	node, ok := conv.Mapping[id]
	if !ok {
		return
	}
	if node.Parent != nil && *node.Parent == newParentID {
		return
	}
	if node.Parent != nil {
		if oldParent, ok := conv.Mapping[*node.Parent]; ok {
			oldParent.Children = removeString(oldParent.Children, id)
		}
	}
	parent := newParentID
	node.Parent = &parent
	if newParent, ok := conv.Mapping[newParentID]; ok {
		if !containsString(newParent.Children, id) {
			newParent.Children = append(newParent.Children, id)
		}
	}
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
