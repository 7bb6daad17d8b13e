package protocol

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

// NewSessionToken mints a process-unique random token at controller
// startup, the way the teacher mints stable ids via uuid.New() in
// pkg/connector (e.g. turn/session identifiers).
func NewSessionToken() string {
	return uuid.NewString()
}

// ShouldApplySessionInitToken implements spec.md §4.1's one-shot
// bootstrap rule: the token is applied at most once per page lifetime.
func ShouldApplySessionInitToken(current, incoming string) bool {
	return current == "" && incoming != ""
}

// AcceptMessage implements the origin/token gate from spec.md §4.1: the
// controller ignores any message whose origin is not the page's own
// origin AND whose token does not equal the current token. Token
// comparison is constant-time since tokens are secrets; origins are not.
func AcceptMessage(pageOrigin, msgOrigin, currentToken, msgToken string) bool {
	if msgOrigin == pageOrigin {
		return true
	}
	if currentToken == "" || msgToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(currentToken), []byte(msgToken)) == 1
}
