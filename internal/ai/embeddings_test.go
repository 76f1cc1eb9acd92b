package ai

import (
	"context"
	"os"
	"testing"
)

func TestEmbedBatchLive(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	client, err := NewEmbeddingClient(apiKey, "text-embedding-004")
	if err != nil {
		t.Fatalf("failed to create embedding client: %v", err)
	}
	defer client.Close()

	vectors, err := client.EmbedBatch(context.Background(), []string{"hello world", "a second text"})
	if err != nil {
		t.Fatalf("embedding error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != 768 {
			t.Fatalf("vector %d has %d dims, want 768", i, len(vec))
		}
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	client := &EmbeddingClient{model: "text-embedding-004"}
	vectors, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty input should not error: %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil vectors for empty input")
	}
}
