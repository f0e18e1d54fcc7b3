package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tender-rag/internal/config"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Gateway is a stateless wrapper around the embedding service. Embed
// returns nil on failure rather than an error, so callers can skip one
// chunk without aborting the document.
type Gateway struct {
	embedder embeddings.Embedder
	model    string
	timeout  time.Duration
}

// NewGateway builds a gateway from config, selecting the provider the way
// the config names it. Returns nil (not an error) when no model is
// configured; callers treat a nil gateway as the service being unavailable.
func NewGateway(cfg config.LLMConfig) (*Gateway, error) {
	if cfg.Model == "" {
		return nil, nil
	}
	if strings.EqualFold(cfg.Provider, "ollama") {
		return NewOllamaGateway(cfg)
	}
	return NewOpenAIGateway(cfg)
}

// NewOpenAIGateway wraps any OpenAI-compatible embedding endpoint.
func NewOpenAIGateway(cfg config.LLMConfig) (*Gateway, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return &Gateway{embedder: embedder, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// NewOllamaGateway wraps a local ollama server.
func NewOllamaGateway(cfg config.LLMConfig) (*Gateway, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return &Gateway{embedder: embedder, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// NewFromEmbedder wraps an existing langchaingo embedder. Used by tests.
func NewFromEmbedder(e embeddings.Embedder, model string, timeout time.Duration) *Gateway {
	return &Gateway{embedder: e, model: model, timeout: timeout}
}

// Model reports the configured model name, or "" for a nil gateway.
func (g *Gateway) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Embed returns the vector for text, or nil if the call fails.
func (g *Gateway) Embed(ctx context.Context, text string) []float32 {
	if g == nil || g.embedder == nil {
		return nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	vector, err := g.embedder.EmbedQuery(ctx, text)
	if err != nil {
		log.Warn().Err(err).Str("model", g.model).Msg("embedding call failed")
		return nil
	}
	return vector
}
