// Package thread rebuilds a Slack thread into the role-tagged conversation
// handed to the completion service.
package thread

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/slackapi"
)

// CredentialChecker reports whether a user has a usable API key.
type CredentialChecker interface {
	HasCredential(ctx context.Context, userID string) (bool, error)
}

// Snapshot is a thread as seen at reconstruction time.
type Snapshot struct {
	ThreadID  string
	ChannelID string

	// BotParticipating is true when this installation already replied.
	BotParticipating bool

	// ParticipatingUserID is the first human author holding a credential,
	// empty when nobody does.
	ParticipatingUserID string

	Messages []domain.ConversationMessage

	timestamps []string
}

// Contains reports whether a reply with timestamp ts was part of the fetch.
func (s *Snapshot) Contains(ts string) bool {
	for _, t := range s.timestamps {
		if t == ts {
			return true
		}
	}
	return false
}

// Reconstructor builds Snapshots.
type Reconstructor struct {
	Slack       slackapi.Client
	Credentials CredentialChecker
	AppID       string
}

// Reconstruct fetches the thread, orders it by timestamp and maps it to
// roles. A fetch failure returns no snapshot.
func (r *Reconstructor) Reconstruct(ctx context.Context, channelID, threadID string) (*Snapshot, error) {
	tr := otel.Tracer("thread/Reconstructor")
	ctx, span := tr.Start(ctx, "Reconstruct",
		trace.WithAttributes(
			attribute.String("slack.channel", channelID),
			attribute.String("slack.thread_ts", threadID),
		),
	)
	defer span.End()

	replies, err := r.Slack.FetchThreadReplies(ctx, channelID, threadID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	SortByTimestamp(replies)

	snap := &Snapshot{ThreadID: threadID, ChannelID: channelID}

	participating, err := r.botParticipating(ctx, replies)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	snap.BotParticipating = participating

	checked := make(map[string]bool)
	for _, rep := range replies {
		snap.timestamps = append(snap.timestamps, rep.Timestamp)

		text := Normalize(rep.Text)
		if rep.BotID == "" && rep.UserID != "" && snap.ParticipatingUserID == "" && !checked[rep.UserID] {
			checked[rep.UserID] = true
			ok, err := r.Credentials.HasCredential(ctx, rep.UserID)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("check credential of %s: %w", rep.UserID, err)
			}
			if ok {
				snap.ParticipatingUserID = rep.UserID
			}
		}
		if text == "" {
			continue
		}

		role := domain.RoleUser
		if rep.BotID != "" {
			role = domain.RoleAssistant
		}
		snap.Messages = append(snap.Messages, domain.ConversationMessage{Role: role, Content: text})
	}

	span.SetAttributes(
		attribute.Bool("thread.bot_participating", snap.BotParticipating),
		attribute.Int("thread.messages", len(snap.Messages)),
	)
	return snap, nil
}

// botParticipating looks at the most recent bot-origin reply and checks
// that it belongs to this app.
func (r *Reconstructor) botParticipating(ctx context.Context, ordered []slackapi.Reply) (bool, error) {
	for i := len(ordered) - 1; i >= 0; i-- {
		botID := ordered[i].BotID
		if botID == "" {
			continue
		}
		info, err := r.Slack.LookupBotInfo(ctx, botID)
		if err != nil {
			return false, err
		}
		return info != nil && info.AppID != "" && info.AppID == r.AppID, nil
	}
	return false, nil
}

// SortByTimestamp orders replies by their numeric timestamp, oldest first.
// Ties keep input order; unparsable timestamps go last.
func SortByTimestamp(replies []slackapi.Reply) {
	keys := make([]*decimal.Decimal, len(replies))
	idx := make([]int, len(replies))
	for i, r := range replies {
		idx[i] = i
		if d, err := decimal.NewFromString(strings.TrimSpace(r.Timestamp)); err == nil {
			keys[i] = &d
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		switch {
		case ka == nil:
			return false
		case kb == nil:
			return true
		default:
			return ka.LessThan(*kb)
		}
	})

	sorted := make([]slackapi.Reply, len(replies))
	for i, j := range idx {
		sorted[i] = replies[j]
	}
	copy(replies, sorted)
}

// Normalize trims and NFC-normalizes message text.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
