// Package embed provides the text embedding clients: an Ollama HTTP client,
// an OpenAI-compatible client, and a circuit-breaker guard that surfaces
// encoder outages as domain.ErrEncoderUnavailable.
package embed

import "context"

// Embedder maps text to fixed-width dense vectors, deterministically for a
// fixed model. Implementations must not be invoked with empty batches;
// callers skip the call instead.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
