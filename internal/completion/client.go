// Package completion talks to an OpenAI-compatible completion service.
//
// Client is the thin HTTP collaborator (models, completions and chat
// completions). Gateway sits on top of it and adds the persona message, the
// empty-answer fallback and the typed Error handed to callers.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

// DefaultAPIURL is the public OpenAI v1 endpoint.
const DefaultAPIURL = "https://api.openai.com/v1"

// APIError is returned by Client for transport failures and non-200
// responses. Transport failures carry StatusCode 500.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion api error (status %d): %s", e.StatusCode, e.Body)
}

// Model is one entry of the models listing.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// Choice is one generated alternative. Text is set for plain completions,
// Message for chat completions.
type Choice struct {
	Index        int                         `json:"index"`
	Text         string                      `json:"text"`
	Message      *domain.ConversationMessage `json:"message,omitempty"`
	FinishReason string                      `json:"finish_reason"`
}

// Response is the decoded body of a completions call.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Client is the completion-service collaborator. Every call is made with the
// API key of the user on whose behalf it runs.
type Client interface {
	ListModels(ctx context.Context, apiKey string) ([]Model, error)
	Completions(ctx context.Context, apiKey, prompt string) (*Response, error)
	ChatCompletions(ctx context.Context, apiKey string, messages []domain.ConversationMessage) (*Response, error)
}

// OpenAIClient implements Client over net/http.
type OpenAIClient struct {
	BaseURL    string
	Model      string // for /completions
	ChatModel  string // for /chat/completions
	MaxTokens  int
	HTTPClient *http.Client
}

// NewOpenAIClient returns a client for baseURL (DefaultAPIURL when empty).
func NewOpenAIClient(baseURL, model, chatModel string, maxTokens int, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		ChatModel:  chatModel,
		MaxTokens:  maxTokens,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// ListModels lists the models visible to apiKey. It doubles as a key validity
// check.
func (c *OpenAIClient) ListModels(ctx context.Context, apiKey string) ([]Model, error) {
	var result struct {
		Data []Model `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/models", apiKey, nil, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// Completions runs a plain text completion for prompt.
func (c *OpenAIClient) Completions(ctx context.Context, apiKey, prompt string) (*Response, error) {
	reqBody := map[string]any{
		"model":  c.Model,
		"prompt": prompt,
	}
	if c.MaxTokens > 0 {
		reqBody["max_tokens"] = c.MaxTokens
	}
	var out Response
	if err := c.do(ctx, http.MethodPost, "/completions", apiKey, reqBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatCompletions runs a chat completion over messages.
func (c *OpenAIClient) ChatCompletions(ctx context.Context, apiKey string, messages []domain.ConversationMessage) (*Response, error) {
	reqBody := map[string]any{
		"model":    c.ChatModel,
		"messages": messages,
	}
	if c.MaxTokens > 0 {
		reqBody["max_tokens"] = c.MaxTokens
	}
	var out Response
	if err := c.do(ctx, http.MethodPost, "/chat/completions", apiKey, reqBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *OpenAIClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *OpenAIClient) do(ctx context.Context, method, path, apiKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return &APIError{StatusCode: http.StatusInternalServerError, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: http.StatusInternalServerError, Body: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
