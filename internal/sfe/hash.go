package sfe

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/captured/llm-capture/internal/model"
)

// ContentHash derives the stability-comparison hash for a Conversation:
// the hash of its current node's message text plus its status, so
// unrelated metadata churn (e.g. moderation_results arriving late)
// never defeats the stability window, but any change to the visible
// text or its finalization status does.
func ContentHash(c *model.Conversation) *string {
	if c == nil {
		return nil
	}
	node, ok := c.Mapping[c.CurrentNode]
	if !ok || node.Message == nil {
		return nil
	}
	h := sha256.New()
	h.Write([]byte(node.Message.Text()))
	h.Write([]byte(node.Message.Status))
	sum := hex.EncodeToString(h.Sum(nil))
	return &sum
}
