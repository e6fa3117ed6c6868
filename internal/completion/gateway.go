package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

// DefaultFallback replaces an empty answer.
const DefaultFallback = "I'm sorry, I couldn't understand that."

// Error is what Gateway returns when the service could not produce an answer.
// Callers usually turn it into an apology for the user.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("completion failed (status %d): %s", e.StatusCode, e.Body)
}

// Gateway wraps a Client with the conversation conventions of the bot.
type Gateway struct {
	Client   Client
	Persona  string
	Fallback string
}

// Complete sends persona + messages as a chat completion and returns the
// first choice's text. It never retries.
func (g *Gateway) Complete(ctx context.Context, apiKey string, messages []domain.ConversationMessage) (string, error) {
	tr := otel.Tracer("completion/Gateway")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(attribute.Int("messages.count", len(messages))),
	)
	defer span.End()

	seq := make([]domain.ConversationMessage, 0, len(messages)+1)
	if g.Persona != "" {
		seq = append(seq, domain.ConversationMessage{Role: domain.RoleSystem, Content: g.Persona})
	}
	seq = append(seq, messages...)

	resp, err := g.Client.ChatCompletions(ctx, apiKey, seq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion")
		return "", toError(err)
	}
	if len(resp.Choices) == 0 {
		err := &Error{StatusCode: http.StatusBadGateway, Body: "no choices in response"}
		span.SetStatus(codes.Error, err.Body)
		return "", err
	}

	text := firstText(resp.Choices[0])
	if text == "" {
		span.SetAttributes(attribute.Bool("completion.fallback", true))
		return g.fallback(), nil
	}
	return text, nil
}

func (g *Gateway) fallback() string {
	if g.Fallback != "" {
		return g.Fallback
	}
	return DefaultFallback
}

func firstText(c Choice) string {
	s := c.Text
	if c.Message != nil {
		s = c.Message.Content
	}
	return norm.NFC.String(strings.TrimSpace(s))
}

func toError(err error) *Error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &Error{StatusCode: apiErr.StatusCode, Body: apiErr.Body}
	}
	return &Error{StatusCode: http.StatusInternalServerError, Body: err.Error()}
}
