package domain

// Role tags a ConversationMessage for the completion service.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one role-tagged turn. The order of a slice of these
// is significant and is sent to the completion service as is.
type ConversationMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
