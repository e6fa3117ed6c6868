package services

import "github.com/tbourn/go-slack-bot/internal/domain"

// StartTalkPayload is enqueued when the bot is mentioned.
type StartTalkPayload struct {
	UserID   string `json:"user"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Text     string `json:"text"`
}

// thread returns where the reply belongs: the existing thread, or a new one
// under the mention.
func (p StartTalkPayload) thread() string {
	if p.ThreadTS != "" {
		return p.ThreadTS
	}
	return p.TS
}

// ReplyTalkPayload is enqueued when someone replies in a thread the bot is in.
type ReplyTalkPayload struct {
	UserID   string                       `json:"user"`
	Channel  string                       `json:"channel"`
	ThreadTS string                       `json:"thread_ts"`
	Messages []domain.ConversationMessage `json:"messages"`
}

// AsyncLogPayload records a failed delivery for later logging.
type AsyncLogPayload struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}
