package core

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Recognized reports whether the role is one the agent loop accepts.
func (r Role) Recognized() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is a single conversation turn. History is supplied by the caller on
// every invocation; the core never persists it between calls.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
