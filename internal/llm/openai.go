package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float32
	MaxTokens         int
	RequestsPerMinute int
	Timeout           time.Duration
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client  *openai.Client
	limiter *rate.Limiter
	cfg     OpenAIConfig
}

// NewOpenAIClient fails with ErrNotConfigured when cfg carries no key.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	model := c.cfg.Model
	if req.Settings.Model != "" {
		model = req.Settings.Model
	}
	chat := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.cfg.Temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1),
	}
	if req.Settings.Temperature > 0 {
		chat.Temperature = req.Settings.Temperature
	}
	if req.Settings.MaxTokens > 0 {
		chat.MaxCompletionTokens = req.Settings.MaxTokens
	} else if c.cfg.MaxTokens > 0 {
		chat.MaxCompletionTokens = c.cfg.MaxTokens
	}
	if req.System != "" {
		chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
