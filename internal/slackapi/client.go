// Package slackapi adapts github.com/slack-go/slack to the small set of Web
// API calls the bot needs. Every failure is reported as a *TransportError so
// callers can tell Slack problems apart from their own.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
)

// DefaultAPIURL is the public Slack Web API root.
const DefaultAPIURL = "https://slack.com/api/"

// repliesPageSize is the page size used when walking conversations.replies.
const repliesPageSize = 200

// Reply is one message of a thread as returned by conversations.replies.
type Reply struct {
	UserID    string
	BotID     string // set for bot-origin messages
	SubType   string
	Text      string
	Timestamp string
}

// BotInfo is the subset of bots.info the bot looks at.
type BotInfo struct {
	ID    string
	AppID string
	Name  string
}

// ActionResponse is posted to an interaction's response_url.
type ActionResponse struct {
	Text            string
	ReplaceOriginal bool
	DeleteOriginal  bool
}

// Client is the chat-platform collaborator.
type Client interface {
	FetchThreadReplies(ctx context.Context, channelID, threadTS string) ([]Reply, error)
	AddReaction(ctx context.Context, channelID, name, timestamp string) (bool, error)
	PostMessage(ctx context.Context, channelID, text, threadTS string) (bool, error)
	PostEphemeralMessage(ctx context.Context, channelID, userID, text string, blocks ...slack.Block) (bool, error)
	LookupBotInfo(ctx context.Context, botID string) (*BotInfo, error)
	RespondToAction(ctx context.Context, responseURL string, resp ActionResponse) error
}

// TransportError wraps a failed Slack call. StatusCode is the HTTP status
// when Slack returned one, 500 otherwise.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("slack %s (status %d): %v", e.Op, e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// API implements Client with a bot token.
type API struct {
	api        *slack.Client
	httpClient *http.Client
}

// New returns an API for botToken. apiURL may be empty for the public API.
func New(botToken, apiURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimSpace(apiURL)
	if base == "" {
		base = DefaultAPIURL
	}
	base = strings.TrimRight(base, "/") + "/"
	return &API{
		api:        slack.New(botToken, slack.OptionHTTPClient(httpClient), slack.OptionAPIURL(base)),
		httpClient: httpClient,
	}
}

// FetchThreadReplies returns every message of the thread, parent included,
// following pagination cursors.
func (a *API) FetchThreadReplies(ctx context.Context, channelID, threadTS string) ([]Reply, error) {
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     repliesPageSize,
	}

	var out []Reply
	for {
		msgs, hasMore, cursor, err := a.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, wrap("conversations.replies", err)
		}
		for _, m := range msgs {
			out = append(out, Reply{
				UserID:    m.User,
				BotID:     m.BotID,
				SubType:   m.SubType,
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
		}
		if !hasMore || cursor == "" {
			return out, nil
		}
		params.Cursor = cursor
	}
}

// AddReaction adds name to the message. A reaction that is already present
// reports false without error.
func (a *API) AddReaction(ctx context.Context, channelID, name, timestamp string) (bool, error) {
	err := a.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channelID, timestamp))
	if err == nil {
		return true, nil
	}
	if slackErrorCode(err) == "already_reacted" {
		return false, nil
	}
	return false, wrap("reactions.add", err)
}

// PostMessage posts text to the channel, inside threadTS when set.
func (a *API) PostMessage(ctx context.Context, channelID, text, threadTS string) (bool, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := a.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return false, wrap("chat.postMessage", err)
	}
	return true, nil
}

// PostEphemeralMessage shows text (and blocks) to userID only.
func (a *API) PostEphemeralMessage(ctx context.Context, channelID, userID, text string, blocks ...slack.Block) (bool, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if _, err := a.api.PostEphemeralContext(ctx, channelID, userID, opts...); err != nil {
		return false, wrap("chat.postEphemeral", err)
	}
	return true, nil
}

// LookupBotInfo resolves a bot id to its parent app.
func (a *API) LookupBotInfo(ctx context.Context, botID string) (*BotInfo, error) {
	bot, err := a.api.GetBotInfoContext(ctx, slack.GetBotInfoParameters{Bot: botID})
	if err != nil {
		return nil, wrap("bots.info", err)
	}
	return &BotInfo{ID: bot.ID, AppID: bot.AppID, Name: bot.Name}, nil
}

// RespondToAction posts resp to an interaction's response_url.
func (a *API) RespondToAction(ctx context.Context, responseURL string, resp ActionResponse) error {
	msg := &slack.WebhookMessage{
		Text:            resp.Text,
		ReplaceOriginal: resp.ReplaceOriginal,
		DeleteOriginal:  resp.DeleteOriginal,
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, responseURL, a.httpClient, msg); err != nil {
		return wrap("response_url", err)
	}
	return nil
}

func slackErrorCode(err error) string {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err
	}
	return ""
}

func wrap(op string, err error) error {
	status := http.StatusInternalServerError
	var sce slack.StatusCodeError
	var rle *slack.RateLimitedError
	switch {
	case errors.As(err, &sce):
		status = sce.Code
	case errors.As(err, &rle):
		status = http.StatusTooManyRequests
	}
	return &TransportError{Op: op, StatusCode: status, Err: err}
}
