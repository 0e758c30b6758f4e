package model

import "strings"

// Scope identifies the tenant context a record belongs to. An empty field is
// unset along that axis.
type Scope struct {
	AgentID   string `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	UserID    string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// IsZero reports whether no axis is set.
func (s Scope) IsZero() bool {
	return s.AgentID == "" && s.UserID == "" && s.SessionID == ""
}

// Matches reports whether a record scoped to r passes the filter s. Every
// axis set on s must equal the record's value; unset axes add no constraint.
func (s Scope) Matches(r Scope) bool {
	if s.AgentID != "" && s.AgentID != r.AgentID {
		return false
	}
	if s.UserID != "" && s.UserID != r.UserID {
		return false
	}
	if s.SessionID != "" && s.SessionID != r.SessionID {
		return false
	}
	return true
}

// Key returns a stable map key for the exact scope triple.
func (s Scope) Key() string {
	return strings.Join([]string{s.AgentID, s.UserID, s.SessionID}, "\x1f")
}

func (s Scope) String() string {
	var parts []string
	if s.AgentID != "" {
		parts = append(parts, "agent="+s.AgentID)
	}
	if s.UserID != "" {
		parts = append(parts, "user="+s.UserID)
	}
	if s.SessionID != "" {
		parts = append(parts, "session="+s.SessionID)
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, ",")
}
