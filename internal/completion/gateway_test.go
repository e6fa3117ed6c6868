package completion

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

type fakeClient struct {
	resp *Response
	err  error
	got  []domain.ConversationMessage
	key  string
}

func (f *fakeClient) ListModels(context.Context, string) ([]Model, error) { return nil, nil }

func (f *fakeClient) Completions(context.Context, string, string) (*Response, error) {
	return f.resp, f.err
}

func (f *fakeClient) ChatCompletions(_ context.Context, apiKey string, msgs []domain.ConversationMessage) (*Response, error) {
	f.key = apiKey
	f.got = msgs
	return f.resp, f.err
}

func answer(s string) *Response {
	return &Response{Choices: []Choice{{Message: &domain.ConversationMessage{Role: domain.RoleAssistant, Content: s}}}}
}

func TestGateway_PrependsPersona(t *testing.T) {
	fc := &fakeClient{resp: answer("pong")}
	g := &Gateway{Client: fc, Persona: "be brief"}

	out, err := g.Complete(context.Background(), "sk", []domain.ConversationMessage{{Role: domain.RoleUser, Content: "ping"}})
	if err != nil || out != "pong" {
		t.Fatalf("Complete = %q, %v", out, err)
	}
	if fc.key != "sk" {
		t.Fatalf("api key not forwarded: %q", fc.key)
	}
	if len(fc.got) != 2 || fc.got[0].Role != domain.RoleSystem || fc.got[0].Content != "be brief" || fc.got[1].Content != "ping" {
		t.Fatalf("unexpected sequence %+v", fc.got)
	}
}

func TestGateway_EmptyAnswerUsesFallback(t *testing.T) {
	g := &Gateway{Client: &fakeClient{resp: answer("   ")}}
	out, err := g.Complete(context.Background(), "sk", nil)
	if err != nil || out != DefaultFallback {
		t.Fatalf("Complete = %q, %v", out, err)
	}

	g.Fallback = "??"
	if out, _ := g.Complete(context.Background(), "sk", nil); out != "??" {
		t.Fatalf("custom fallback not used: %q", out)
	}
}

func TestGateway_APIErrorBecomesError(t *testing.T) {
	g := &Gateway{Client: &fakeClient{err: &APIError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}}}
	_, err := g.Complete(context.Background(), "sk", nil)
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.StatusCode != http.StatusTooManyRequests || cerr.Body != "slow down" {
		t.Fatalf("expected *Error 429, got %v", err)
	}
}

func TestGateway_OtherFailuresAre500(t *testing.T) {
	g := &Gateway{Client: &fakeClient{err: errors.New("unmarshal response: boom")}}
	_, err := g.Complete(context.Background(), "sk", nil)
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected *Error 500, got %v", err)
	}

	g = &Gateway{Client: &fakeClient{resp: &Response{}}}
	if _, err := g.Complete(context.Background(), "sk", nil); !errors.As(err, &cerr) {
		t.Fatalf("expected *Error for empty choices, got %v", err)
	}
}
