// Package provider builds langchaingo models and embedders from configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/rahul/sentinel/pkg/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client is a model that can also produce embeddings.
type Client interface {
	llms.Model
	embeddings.EmbedderClient
}

// New returns a client for the named provider. embeddingModel may be empty.
func New(ctx context.Context, name string, p config.ProviderConfig, embeddingModel string) (Client, error) {
	switch name {
	case "googleai", "gemini":
		if p.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api key is required (set GOOGLE_API_KEY)", name)
		}
		opts := []googleai.Option{
			googleai.WithAPIKey(p.APIKey),
			googleai.WithDefaultModel(p.Model),
		}
		if embeddingModel != "" {
			opts = append(opts, googleai.WithDefaultEmbeddingModel(embeddingModel))
		}
		return googleai.New(ctx, opts...)
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		if embeddingModel != "" {
			opts = append(opts, openai.WithEmbeddingModel(embeddingModel))
		}
		return openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(p.Model)}
		if p.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(p.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s not supported", name)
	}
}

// FromConfig picks the default provider from cfg.
func FromConfig(ctx context.Context, cfg *config.Config) (string, Client, error) {
	name, p := cfg.GetDefaultProvider()
	if name == "" {
		return "", nil, fmt.Errorf("no enabled provider found in config")
	}
	client, err := New(ctx, name, p, cfg.Index.EmbeddingModel)
	if err != nil {
		return name, nil, err
	}
	return name, client, nil
}

// NewEmbedder wraps client for document indexing and retrieval.
func NewEmbedder(client embeddings.EmbedderClient) (embeddings.Embedder, error) {
	e, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(64))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return e, nil
}
