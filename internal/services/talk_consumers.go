package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-slack-bot/internal/completion"
	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/jobs"
	"github.com/tbourn/go-slack-bot/internal/vault"
)

const defaultApology = "Sorry, something went wrong while generating a reply. Please try again later."

// RegisterConsumers registers the bot's job consumers.
func (s *BotService) RegisterConsumers(reg *jobs.Registry) {
	reg.Register(jobs.StartTalk, s.ConsumeStartTalk)
	reg.Register(jobs.ReplyTalk, s.ConsumeReplyTalk)
	reg.Register(jobs.AsyncLogging, s.ConsumeAsyncLogging)
}

// ConsumeStartTalk answers a mention in a new (or the enclosing) thread.
func (s *BotService) ConsumeStartTalk(ctx context.Context, raw json.RawMessage) error {
	var p StartTalkPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.Log.Error().Err(err).Msg("drop undecodable start_talk payload")
		return nil
	}
	msgs := []domain.ConversationMessage{{Role: domain.RoleUser, Content: StripMentions(p.Text)}}
	return s.talk(ctx, jobs.StartTalk, p.UserID, p.Channel, p.thread(), msgs)
}

// ConsumeReplyTalk answers the latest message of a continued thread.
func (s *BotService) ConsumeReplyTalk(ctx context.Context, raw json.RawMessage) error {
	var p ReplyTalkPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.Log.Error().Err(err).Msg("drop undecodable reply_talk payload")
		return nil
	}
	return s.talk(ctx, jobs.ReplyTalk, p.UserID, p.Channel, p.ThreadTS, p.Messages)
}

// ConsumeAsyncLogging writes a recorded delivery failure to the log.
func (s *BotService) ConsumeAsyncLogging(_ context.Context, raw json.RawMessage) error {
	var p AsyncLogPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.Log.Error().Str("payload", string(raw)).Msg("delivery failed")
		return nil
	}
	s.Log.Error().Str("kind", p.Kind).Str("error", p.Message).Msg("delivery failed")
	return nil
}

// talk completes msgs with userID's key and posts the answer in the thread.
// Completion failures become an apology; Slack failures are returned so the
// job is retried.
func (s *BotService) talk(ctx context.Context, job, userID, channel, threadTS string, msgs []domain.ConversationMessage) error {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, job,
		trace.WithAttributes(
			attribute.String("slack.user", userID),
			attribute.String("slack.channel", channel),
			attribute.String("slack.thread_ts", threadTS),
			attribute.Int("messages.count", len(msgs)),
		),
	)
	defer span.End()

	cred, err := s.Vault.GetUserCredential(ctx, userID)
	if errors.Is(err, vault.ErrCredentialDecryption) {
		s.Log.Warn().Str("user", userID).Str("job", job).Msg("clearing unreadable credential")
		if err := s.Vault.DeleteUserCredential(ctx, userID); err != nil {
			return fmt.Errorf("clear credential: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		// key was removed or became unreadable after the job was enqueued
		return s.promptForKey(ctx, channel, userID)
	}

	answer, err := s.Completion.Complete(ctx, cred.APIKey, msgs)
	if err != nil {
		var cerr *completion.Error
		if !errors.As(err, &cerr) {
			return err
		}
		s.Log.Warn().Int("status", cerr.StatusCode).Str("job", job).Str("user", userID).Msg("completion failed")
		answer = s.apology()
	}

	if _, err := s.Slack.PostMessage(ctx, channel, answer, threadTS); err != nil {
		return err
	}
	return nil
}

func (s *BotService) apology() string {
	if s.Apology != "" {
		return s.Apology
	}
	return defaultApology
}
