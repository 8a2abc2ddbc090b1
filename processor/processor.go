// Package processor rewrites a transcript according to a mode using an
// OpenAI-compatible chat completion endpoint.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"dictate/log"
	"dictate/mode"
)

const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GroqModel     = "llama-3.3-70b-versatile"
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "gpt-4o"

	Temperature = 0.3
	MaxTokens   = 2000
)

var ErrNoAPIKey = errors.New("missing API key")

type Client struct {
	client   openai.Client
	provider string
	model    string
}

type settings struct {
	baseURL string
	model   string
	extra   []option.RequestOption
}

type Option func(*settings)

func WithBaseURL(u string) Option { return func(s *settings) { s.baseURL = u } }

func WithModel(m string) Option { return func(s *settings) { s.model = m } }

// WithRequestOptions passes options straight to the underlying client.
func WithRequestOptions(o ...option.RequestOption) Option {
	return func(s *settings) { s.extra = append(s.extra, o...) }
}

// New returns a client for "groq" or "openai".
func New(provider, apiKey string, opts ...Option) (*Client, error) {
	var s settings
	switch provider {
	case "groq":
		s = settings{baseURL: GroqBaseURL, model: GroqModel}
	case "openai":
		s = settings{baseURL: OpenAIBaseURL, model: OpenAIModel}
	default:
		return nil, fmt.Errorf("unknown processing provider %q", provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrNoAPIKey)
	}
	for _, o := range opts {
		o(&s)
	}
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(s.baseURL, "/") + "/"),
		option.WithMaxRetries(0),
	}, s.extra...)
	return &Client{
		client:   openai.NewClient(reqOpts...),
		provider: provider,
		model:    s.model,
	}, nil
}

func (c *Client) Model() string { return c.model }

// Process applies m to text. Modes without a prompt return text as is, as
// does a model answer that is empty after trimming.
func (c *Client) Process(ctx context.Context, text string, m mode.Mode) (string, error) {
	prompt := m.SystemPrompt()
	if prompt == "" || strings.TrimSpace(text) == "" {
		return text, nil
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(Temperature),
		MaxTokens:   openai.Int(MaxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%s chat error %d: %w", c.provider, apiErr.StatusCode, err)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return text, nil
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		log.Warnf("processor: %s returned empty text for %s", c.model, m.Label())
		return text, nil
	}
	log.Infof("processor: %s %s %d tokens", c.model, m.Label(), resp.Usage.TotalTokens)
	return out, nil
}
