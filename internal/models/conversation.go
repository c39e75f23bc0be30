package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the roles the session log accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"` // position within the session, starting at 1
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a summary derived from the log. Sessions have no record of
// their own; one exists as long as a message references it.
type Session struct {
	ID           string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}
