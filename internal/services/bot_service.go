// Package services – BotService
//
// BotService reacts to Slack deliveries. Handlers only gate on the user's
// credential, mark the message with a reaction and enqueue the slow work;
// the matching consumers (see talk_consumers.go) call the completion service
// and post the answer.
//
// The start reaction doubles as a claim: when a mention inside a thread
// produces both an app_mention and a message event, only the first handler
// to add the reaction enqueues a reply.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/internal/completion"
	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/events"
	"github.com/tbourn/go-slack-bot/internal/jobs"
	"github.com/tbourn/go-slack-bot/internal/repo"
	"github.com/tbourn/go-slack-bot/internal/slackapi"
	"github.com/tbourn/go-slack-bot/internal/thread"
	"github.com/tbourn/go-slack-bot/internal/vault"
)

const (
	// StartReactionKey is the app-scope property overriding the configured
	// start reaction.
	StartReactionKey = "START_REACTION"

	defaultStartReaction = "robot_face"

	msgNoCredential = "Not exists credential."
)

var mentionToken = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// CredentialStore is the subset of vault.Store used here.
type CredentialStore interface {
	GetUserCredential(ctx context.Context, userID string) (*vault.UserCredential, error)
	SetUserCredential(ctx context.Context, userID string, cred vault.UserCredential) error
	HasCredential(ctx context.Context, userID string) (bool, error)
	DeleteUserCredential(ctx context.Context, userID string) error
}

// ThreadReader rebuilds threads.
type ThreadReader interface {
	Reconstruct(ctx context.Context, channelID, threadID string) (*thread.Snapshot, error)
}

// Enqueuer records deferred jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// Completer produces an answer for a conversation.
type Completer interface {
	Complete(ctx context.Context, apiKey string, messages []domain.ConversationMessage) (string, error)
}

// BotService wires the Slack handlers and job consumers together.
type BotService struct {
	DB         *gorm.DB
	Slack      slackapi.Client
	Vault      CredentialStore
	Threads    ThreadReader
	Jobs       Enqueuer
	Completion Completer
	Models     completion.Client // validates submitted keys

	StartReaction string
	Apology       string

	Log zerolog.Logger
}

// Handlers returns the dispatcher handlers of the bot.
func (s *BotService) Handlers() events.Handlers {
	return events.Handlers{}.
		Add(events.KindAppMention, s.HandleMention).
		Add(events.KindMessage, s.HandleMessage).
		Add(events.KindBlockActions, s.HandleBlockAction)
}

// HandleMention answers an app_mention: prompt for a key when the author has
// none, otherwise react and enqueue start_talk.
func (s *BotService) HandleMention(ctx context.Context, ev events.Event) (any, error) {
	m, ok := ev.(events.AppMention)
	if !ok {
		return nil, ErrUnexpectedEvent
	}
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "HandleMention",
		trace.WithAttributes(
			attribute.String("slack.user", m.UserID),
			attribute.String("slack.channel", m.Channel),
		),
	)
	defer span.End()

	has, err := s.Vault.HasCredential(ctx, m.UserID)
	if err != nil {
		return nil, fmt.Errorf("check credential: %w", err)
	}
	if !has {
		return nil, s.promptForKey(ctx, m.Channel, m.UserID)
	}

	claimed, err := s.Slack.AddReaction(ctx, m.Channel, s.startReaction(ctx), m.TS)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.Log.Debug().Str("ts", m.TS).Msg("mention already claimed")
		return nil, nil
	}

	return nil, s.Jobs.Enqueue(ctx, jobs.StartTalk, StartTalkPayload{
		UserID:   m.UserID,
		Channel:  m.Channel,
		TS:       m.TS,
		ThreadTS: m.ThreadTS,
		Text:     m.Text,
	})
}

// HandleMessage continues a thread the bot already takes part in.
func (s *BotService) HandleMessage(ctx context.Context, ev events.Event) (any, error) {
	m, ok := ev.(events.Message)
	if !ok {
		return nil, ErrUnexpectedEvent
	}
	if !m.Threaded() || !m.FromHuman() {
		return nil, nil
	}
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "HandleMessage",
		trace.WithAttributes(
			attribute.String("slack.channel", m.Channel),
			attribute.String("slack.thread_ts", m.ThreadTS),
		),
	)
	defer span.End()

	snap, err := s.Threads.Reconstruct(ctx, m.Channel, m.ThreadTS)
	if err != nil {
		return nil, err
	}
	if !snap.BotParticipating {
		return nil, nil
	}
	if snap.ParticipatingUserID == "" {
		return nil, s.promptForKey(ctx, m.Channel, m.UserID)
	}

	claimed, err := s.Slack.AddReaction(ctx, m.Channel, s.startReaction(ctx), m.TS)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}

	msgs := make([]domain.ConversationMessage, 0, len(snap.Messages)+1)
	for _, cm := range snap.Messages {
		if cm.Role == domain.RoleUser {
			cm.Content = StripMentions(cm.Content)
		}
		if cm.Content != "" {
			msgs = append(msgs, cm)
		}
	}
	if !snap.Contains(m.TS) {
		if text := StripMentions(thread.Normalize(m.Text)); text != "" {
			msgs = append(msgs, domain.ConversationMessage{Role: domain.RoleUser, Content: text})
		}
	}
	span.SetAttributes(attribute.Int("thread.messages", len(msgs)))

	return nil, s.Jobs.Enqueue(ctx, jobs.ReplyTalk, ReplyTalkPayload{
		UserID:   snap.ParticipatingUserID,
		Channel:  m.Channel,
		ThreadTS: m.ThreadTS,
		Messages: msgs,
	})
}

// HandleBlockAction stores the API key submitted through the prompt after
// checking it against the completion service.
func (s *BotService) HandleBlockAction(ctx context.Context, ev events.Event) (any, error) {
	ba, ok := ev.(events.BlockAction)
	if !ok {
		return nil, ErrUnexpectedEvent
	}
	if _, fired := ba.Fired(slackapi.SubmitActionID); !fired {
		return nil, nil
	}
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "HandleBlockAction",
		trace.WithAttributes(attribute.String("slack.user", ba.UserID)),
	)
	defer span.End()

	key := strings.TrimSpace(ba.Value(slackapi.APIKeyBlockID, slackapi.APIKeyActionID))
	if key == "" {
		return nil, s.Slack.RespondToAction(ctx, ba.ResponseURL, slackapi.ActionResponse{
			Text:            "Please enter your API Key.",
			ReplaceOriginal: true,
		})
	}

	if _, err := s.Models.ListModels(ctx, key); err != nil {
		var apiErr *completion.APIError
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		s.Log.Info().Str("user", ba.UserID).Int("status", apiErr.StatusCode).Msg("api key rejected")
		return nil, s.Slack.RespondToAction(ctx, ba.ResponseURL, slackapi.ActionResponse{
			Text:            apiErr.Error(),
			ReplaceOriginal: true,
		})
	}

	if err := s.Vault.SetUserCredential(ctx, ba.UserID, vault.UserCredential{UserID: ba.UserID, APIKey: key}); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	return nil, s.Slack.RespondToAction(ctx, ba.ResponseURL, slackapi.ActionResponse{DeleteOriginal: true})
}

func (s *BotService) promptForKey(ctx context.Context, channel, userID string) error {
	_, err := s.Slack.PostEphemeralMessage(ctx, channel, userID, msgNoCredential, slackapi.APIKeyPromptBlocks()...)
	return err
}

// startReaction resolves the reaction name: app property, then config, then
// the built-in default.
func (s *BotService) startReaction(ctx context.Context) string {
	if s.DB != nil {
		v, err := repo.GetProperty(ctx, s.DB, domain.ScopeApp, "", StartReactionKey)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			s.Log.Warn().Err(err).Msg("read start reaction property")
		}
		if v = strings.Trim(v, ": "); v != "" {
			return v
		}
	}
	if r := strings.Trim(s.StartReaction, ": "); r != "" {
		return r
	}
	return defaultStartReaction
}

// StripMentions removes <@U123> tokens.
func StripMentions(s string) string {
	return strings.TrimSpace(mentionToken.ReplaceAllString(s, ""))
}
