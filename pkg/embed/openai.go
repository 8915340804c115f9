package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Embedder over the OpenAI embeddings API (or any
// compatible endpoint via a custom base URL).
type OpenAIClient struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIClient creates an embedder for the given model.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed encodes a single text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch encodes texts in one API request.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
