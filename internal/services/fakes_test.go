package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-slack-bot/internal/completion"
	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/slackapi"
	"github.com/tbourn/go-slack-bot/internal/thread"
	"github.com/tbourn/go-slack-bot/internal/vault"
)

// ----- Fake Slack -----

type posted struct {
	channel, user, text, thread string
	blocks                      int
}

type reaction struct{ channel, name, ts string }

type fakeSlack struct {
	reactions   []reaction
	reacted     map[string]bool
	messages    []posted
	ephemerals  []posted
	responses   []slackapi.ActionResponse
	postErr     error
	reactionErr error
}

func (f *fakeSlack) FetchThreadReplies(context.Context, string, string) ([]slackapi.Reply, error) {
	return nil, nil
}

func (f *fakeSlack) AddReaction(_ context.Context, channel, name, ts string) (bool, error) {
	if f.reactionErr != nil {
		return false, f.reactionErr
	}
	if f.reacted == nil {
		f.reacted = map[string]bool{}
	}
	f.reactions = append(f.reactions, reaction{channel, name, ts})
	if f.reacted[ts] {
		return false, nil
	}
	f.reacted[ts] = true
	return true, nil
}

func (f *fakeSlack) PostMessage(_ context.Context, channel, text, threadTS string) (bool, error) {
	if f.postErr != nil {
		return false, f.postErr
	}
	f.messages = append(f.messages, posted{channel: channel, text: text, thread: threadTS})
	return true, nil
}

func (f *fakeSlack) PostEphemeralMessage(_ context.Context, channel, userID, text string, blocks ...slack.Block) (bool, error) {
	f.ephemerals = append(f.ephemerals, posted{channel: channel, user: userID, text: text, blocks: len(blocks)})
	return true, nil
}

func (f *fakeSlack) LookupBotInfo(context.Context, string) (*slackapi.BotInfo, error) {
	return nil, nil
}

func (f *fakeSlack) RespondToAction(_ context.Context, _ string, resp slackapi.ActionResponse) error {
	f.responses = append(f.responses, resp)
	return nil
}

// ----- Fake vault -----

type fakeVault struct {
	creds   map[string]string
	broken  map[string]bool
	deleted []string
}

func (f *fakeVault) GetUserCredential(_ context.Context, userID string) (*vault.UserCredential, error) {
	if f.broken[userID] {
		return nil, vault.ErrCredentialDecryption
	}
	k, ok := f.creds[userID]
	if !ok {
		return nil, nil
	}
	return &vault.UserCredential{UserID: userID, APIKey: k}, nil
}

func (f *fakeVault) SetUserCredential(_ context.Context, userID string, cred vault.UserCredential) error {
	if f.creds == nil {
		f.creds = map[string]string{}
	}
	f.creds[userID] = cred.APIKey
	return nil
}

func (f *fakeVault) DeleteUserCredential(_ context.Context, userID string) error {
	f.deleted = append(f.deleted, userID)
	delete(f.creds, userID)
	delete(f.broken, userID)
	return nil
}

func (f *fakeVault) HasCredential(ctx context.Context, userID string) (bool, error) {
	c, err := f.GetUserCredential(ctx, userID)
	if err != nil {
		return false, nil
	}
	return c != nil, nil
}

// ----- Other collaborators -----

type fakeThreads struct {
	snap  *thread.Snapshot
	err   error
	calls int
}

func (f *fakeThreads) Reconstruct(context.Context, string, string) (*thread.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type enqueued struct {
	name    string
	payload any
}

type fakeJobs struct{ got []enqueued }

func (f *fakeJobs) Enqueue(_ context.Context, name string, payload any) error {
	f.got = append(f.got, enqueued{name, payload})
	return nil
}

type fakeCompleter struct {
	answer string
	err    error
	key    string
	msgs   []domain.ConversationMessage
}

func (f *fakeCompleter) Complete(_ context.Context, apiKey string, msgs []domain.ConversationMessage) (string, error) {
	f.key = apiKey
	f.msgs = msgs
	return f.answer, f.err
}

type fakeModels struct {
	err error
	key string
}

func (f *fakeModels) ListModels(_ context.Context, apiKey string) ([]completion.Model, error) {
	f.key = apiKey
	if f.err != nil {
		return nil, f.err
	}
	return []completion.Model{{ID: "gpt-4o-mini"}}, nil
}

func (f *fakeModels) Completions(context.Context, string, string) (*completion.Response, error) {
	return nil, nil
}

func (f *fakeModels) ChatCompletions(context.Context, string, []domain.ConversationMessage) (*completion.Response, error) {
	return nil, nil
}

// ----- Fixture -----

type fixture struct {
	svc     *BotService
	slack   *fakeSlack
	vault   *fakeVault
	threads *fakeThreads
	jobs    *fakeJobs
	llm     *fakeCompleter
	models  *fakeModels
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Property{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	f := &fixture{
		slack:   &fakeSlack{},
		vault:   &fakeVault{creds: map[string]string{}},
		threads: &fakeThreads{},
		jobs:    &fakeJobs{},
		llm:     &fakeCompleter{answer: "42"},
		models:  &fakeModels{},
	}
	f.svc = &BotService{
		DB:         db,
		Slack:      f.slack,
		Vault:      f.vault,
		Threads:    f.threads,
		Jobs:       f.jobs,
		Completion: f.llm,
		Models:     f.models,
		Log:        zerolog.Nop(),
	}
	return f
}
