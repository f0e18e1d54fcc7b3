package llmservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"tender-rag/internal/config"
	"tender-rag/internal/models"
)

// Message is one ordered role/content element of a completion request.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// Client wraps the completion service. It tolerates models that reject
// sampling parameters: reasoning-style models get only messages+model.
type Client struct {
	llm         llms.Model
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func NewClient(cfg config.CompletionConfig) (*Client, error) {
	if cfg.Model == "" {
		return nil, nil
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &Client{
		llm:         llm,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// NewFromModel wraps an existing langchaingo model. Used by tests.
func NewFromModel(llm llms.Model, cfg config.CompletionConfig) *Client {
	return &Client{
		llm:         llm,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

// Complete sends the messages and returns the generated text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c == nil || c.llm == nil {
		return "", models.ErrCompletionFailed
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := schema.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = schema.ChatMessageTypeSystem
		case "assistant":
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextContent{Text: m.Content}},
		})
	}

	res, err := c.llm.GenerateContent(ctx, content, c.callOptions()...)
	if err != nil {
		log.Debug().Err(err).Str("model", c.model).Msg("completion call failed")
		return "", fmt.Errorf("%w: %v", models.ErrCompletionFailed, err)
	}
	if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Content) == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrCompletionFailed)
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}

func (c *Client) callOptions() []llms.CallOption {
	if RejectsSamplingParams(c.model) {
		return nil
	}
	var opts []llms.CallOption
	if c.temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.temperature))
	}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	return opts
}

// RejectsSamplingParams reports whether a model accepts only
// messages+model, by model-name convention. Reasoning-oriented model
// families reject temperature and max_tokens outright.
func RejectsSamplingParams(model string) bool {
	name := strings.ToLower(model)
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if name == prefix || strings.HasPrefix(name, prefix+"-") {
			return true
		}
	}
	return strings.Contains(name, "reasoning")
}
