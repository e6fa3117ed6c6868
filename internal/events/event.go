package events

import "github.com/slack-go/slack/slackevents"

// Discriminators of the variants a Delivery decodes into.
const (
	KindURLVerification = "url_verification"
	KindAppMention      = "app_mention"
	KindMessage         = "message"
	KindBlockActions    = "block_actions"
)

// Event is one decoded delivery. The concrete type is one of URLVerification,
// AppMention, Message, BlockAction or Other.
type Event interface {
	Kind() string
	// DedupKey identifies the logical event across redeliveries.
	DedupKey() string
}

// URLVerification is Slack's endpoint handshake.
type URLVerification struct {
	Challenge string
}

func (URLVerification) Kind() string     { return KindURLVerification }
func (URLVerification) DedupKey() string { return "" }

// AppMention is an app_mention event callback.
type AppMention struct {
	EventID  string
	UserID   string
	Channel  string
	Text     string
	TS       string
	ThreadTS string
}

func (AppMention) Kind() string       { return KindAppMention }
func (e AppMention) DedupKey() string { return e.EventID }

func newAppMention(eventID string, ev *slackevents.AppMentionEvent) AppMention {
	return AppMention{
		EventID:  eventID,
		UserID:   ev.User,
		Channel:  ev.Channel,
		Text:     ev.Text,
		TS:       ev.TimeStamp,
		ThreadTS: ev.ThreadTimeStamp,
	}
}

// Message is a message event callback.
type Message struct {
	EventID  string
	UserID   string
	BotID    string
	SubType  string
	Channel  string
	Text     string
	TS       string
	ThreadTS string
}

func (Message) Kind() string       { return KindMessage }
func (e Message) DedupKey() string { return e.EventID }

// Threaded reports whether the message was posted inside a thread.
func (e Message) Threaded() bool { return e.ThreadTS != "" }

// humanSubTypes are the message subtypes a person produces directly. Edits,
// deletions and join notices carry other subtypes.
var humanSubTypes = map[string]struct{}{
	"":                 {},
	"thread_broadcast": {},
	"file_share":       {},
}

// FromHuman reports whether a person (not a bot, not a system subtype)
// wrote the message.
func (e Message) FromHuman() bool {
	if e.BotID != "" || e.UserID == "" {
		return false
	}
	_, ok := humanSubTypes[e.SubType]
	return ok
}

func newMessage(eventID string, ev *slackevents.MessageEvent) Message {
	return Message{
		EventID:  eventID,
		UserID:   ev.User,
		BotID:    ev.BotID,
		SubType:  ev.SubType,
		Channel:  ev.Channel,
		Text:     ev.Text,
		TS:       ev.TimeStamp,
		ThreadTS: ev.ThreadTimeStamp,
	}
}

// Action is one element that fired in a block_actions interaction.
type Action struct {
	BlockID  string
	ActionID string
	Value    string
}

// BlockAction is a block_actions interaction.
type BlockAction struct {
	TriggerID   string
	UserID      string
	Channel     string
	ResponseURL string
	Actions     []Action

	// Values is the form state: block id -> action id -> value.
	Values map[string]map[string]string
}

func (BlockAction) Kind() string       { return KindBlockActions }
func (e BlockAction) DedupKey() string { return e.TriggerID }

// Fired returns the action with actionID, if it fired.
func (e BlockAction) Fired(actionID string) (Action, bool) {
	for _, a := range e.Actions {
		if a.ActionID == actionID {
			return a, true
		}
	}
	return Action{}, false
}

// Value returns the submitted state value of blockID/actionID.
func (e BlockAction) Value(blockID, actionID string) string {
	return e.Values[blockID][actionID]
}

// Other is any event or interaction type the bot has no variant for.
type Other struct {
	Type string
	ID   string
}

func (e Other) Kind() string     { return e.Type }
func (e Other) DedupKey() string { return e.ID }
