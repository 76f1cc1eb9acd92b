package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// EmbeddingClient generates fixed-dimension embedding vectors via the
// Google Generative AI embedding models (text-embedding-004, 768 dims).
type EmbeddingClient struct {
	client *genai.Client
	model  string
}

func NewEmbeddingClient(apiKey, model string) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &EmbeddingClient{client: client, model: model}, nil
}

// EmbedBatch returns one vector per input text, order-preserving.
func (ec *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := ec.client.EmbeddingModel(ec.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single text, used on the query path.
func (ec *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := ec.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (ec *EmbeddingClient) Close() error {
	if ec.client != nil {
		return ec.client.Close()
	}
	return nil
}
