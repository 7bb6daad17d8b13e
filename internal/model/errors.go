package model

import "errors"

// Structural validation errors for Conversation.Validate. Grounded on
// the teacher's sentinel-error style (pkg/connector/errors.go uses
// package-level var blocks of typed errors rather than ad hoc
// fmt.Errorf at call sites).
var (
	ErrMissingRoot        = errors.New("model: conversation missing root node")
	ErrMultipleRoots      = errors.New("model: more than one node has a nil parent")
	ErrDanglingParent     = errors.New("model: node's parent link is not reciprocated")
	ErrDanglingChild      = errors.New("model: child id not present in mapping")
	ErrInvalidCurrentNode = errors.New("model: current_node not present in mapping")
)
