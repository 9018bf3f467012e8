package turns

import (
	"errors"
	"fmt"
)

// ErrInvalidRole is returned when a turn carries a role label that is not one
// of the configured role names.
var ErrInvalidRole = errors.New("invalid role")

// Role is the semantic role of a turn. The label a conversation actually
// stores for a role is configured through RoleNames.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// NewTurn is a small convenience for building turn literals in sequences.
func NewTurn(role string, content string) Turn {
	return Turn{Role: role, Content: content}
}

// RoleNames maps the three semantic roles to the labels stored in turns.
type RoleNames struct {
	System    string `json:"system" yaml:"system"`
	User      string `json:"user" yaml:"user"`
	Assistant string `json:"assistant" yaml:"assistant"`
}

func DefaultRoleNames() RoleNames {
	return RoleNames{
		System:    string(RoleSystem),
		User:      string(RoleUser),
		Assistant: string(RoleAssistant),
	}
}

// Label returns the label configured for role. ok is false for roles other
// than system, user and assistant.
func (rn RoleNames) Label(role Role) (label string, ok bool) {
	switch role {
	case RoleSystem:
		return rn.System, true
	case RoleUser:
		return rn.User, true
	case RoleAssistant:
		return rn.Assistant, true
	}
	return "", false
}

// Resolve maps a label back to its semantic role.
func (rn RoleNames) Resolve(label string) (Role, bool) {
	switch label {
	case rn.System:
		return RoleSystem, true
	case rn.User:
		return RoleUser, true
	case rn.Assistant:
		return RoleAssistant, true
	}
	return "", false
}

// Valid checks that all three labels are set and distinct.
func (rn RoleNames) Valid() error {
	if rn.System == "" || rn.User == "" || rn.Assistant == "" {
		return fmt.Errorf("%w: role names must not be empty (%+v)", ErrInvalidRole, rn)
	}
	if rn.System == rn.User || rn.System == rn.Assistant || rn.User == rn.Assistant {
		return fmt.Errorf("%w: role names must be distinct (%+v)", ErrInvalidRole, rn)
	}
	return nil
}

// Validate checks every turn's label against the configured names.
func (rn RoleNames) Validate(ts []Turn) error {
	for i, t := range ts {
		if _, ok := rn.Resolve(t.Role); !ok {
			return fmt.Errorf("%w %q at index %d (expected one of %q, %q, %q)",
				ErrInvalidRole, t.Role, i, rn.System, rn.User, rn.Assistant)
		}
	}
	return nil
}

// Clone returns a copy of the sequence that can be mutated independently.
func Clone(ts []Turn) []Turn {
	if ts == nil {
		return nil
	}
	out := make([]Turn, len(ts))
	copy(out, ts)
	return out
}
