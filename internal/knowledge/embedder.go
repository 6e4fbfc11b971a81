package knowledge

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GoogleEmbedder implements Embedder on the Gemini embedding API.
//
// The output dimensionality is pinned so the vectors match the pgvector
// column width regardless of the model's native dimension (Gemini embedding
// models support Matryoshka truncation).
type GoogleEmbedder struct {
	client *genai.Client
	model  string
	dim    int32
}

// NewGoogleEmbedder creates a Gemini-backed embedder. The API key is read
// from the environment by the genai client (GEMINI_API_KEY).
func NewGoogleEmbedder(ctx context.Context, model string, dimension int32) (*GoogleEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("embedder model is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedder dimension must be positive, got %d", dimension)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GoogleEmbedder{client: client, model: model, dim: dimension}, nil
}

// Embed returns the embedding vector for text.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := e.dim
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding response from model %q", e.model)
	}
	return resp.Embeddings[0].Values, nil
}
