package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/darshild078/ytvideo-chatbot/internal/vectorstore"
)

type scriptedLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *scriptedLLM) GenerateJSON(ctx context.Context, model, prompt string, temperature float32, maxTokens int32) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func testCandidates() []vectorstore.Match {
	return []vectorstore.Match{
		{VideoID: "abc123DEF45", ChunkID: 0, Text: "intro to the topic", StartTime: 0, EndTime: 30, Score: 0.91},
		{VideoID: "abc123DEF45", ChunkID: 3, Text: "the key explanation", StartTime: 95, EndTime: 140, Score: 0.88},
		{VideoID: "abc123DEF45", ChunkID: 7, Text: "a worked example", StartTime: 300, EndTime: 360, Score: 0.82},
		{VideoID: "abc123DEF45", ChunkID: 9, Text: "closing summary", StartTime: 540, EndTime: 600, Score: 0.75},
	}
}

func TestFilterParsesSelections(t *testing.T) {
	llm := &scriptedLLM{response: `{"relevant_chunks":[
		{"chunk_index": 2, "relevance_score": 0.95, "reason": "Directly explains it"},
		{"chunk_index": 3, "relevance_score": 0.8, "reason": "Shows an example"}
	]}`}
	stage := NewStageOne(llm, "gemini-2.0-flash")

	got := stage.Filter(context.Background(), "what is the key idea?", testCandidates(), 3)
	if len(got) != 2 {
		t.Fatalf("expected 2 filtered chunks, got %d", len(got))
	}
	if got[0].ChunkID != 3 || got[0].StartTime != 95 {
		t.Fatalf("first selection should map to candidate 2, got chunk %d at %v", got[0].ChunkID, got[0].StartTime)
	}
	if got[0].RelevanceScore != 0.95 {
		t.Fatalf("expected model score 0.95, got %v", got[0].RelevanceScore)
	}
	if got[1].ChunkID != 7 {
		t.Fatalf("second selection should map to candidate 3, got chunk %d", got[1].ChunkID)
	}
}

func TestFilterFallsBackOnLLMError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("circuit breaker open")}
	stage := NewStageOne(llm, "gemini-2.0-flash")
	candidates := testCandidates()

	got := stage.Filter(context.Background(), "question", candidates, 3)
	if len(got) != 3 {
		t.Fatalf("fallback should return topK chunks, got %d", len(got))
	}
	for i := 0; i < 3; i++ {
		if got[i].ChunkID != candidates[i].ChunkID {
			t.Fatalf("fallback order mismatch at %d: got chunk %d, want %d", i, got[i].ChunkID, candidates[i].ChunkID)
		}
		if got[i].RelevanceScore != candidates[i].Score {
			t.Fatalf("fallback should carry vector score, got %v want %v", got[i].RelevanceScore, candidates[i].Score)
		}
	}
}

func TestFilterFallsBackOnMalformedJSON(t *testing.T) {
	llm := &scriptedLLM{response: "I think chunks 1 and 2 are relevant."}
	stage := NewStageOne(llm, "gemini-2.0-flash")

	got := stage.Filter(context.Background(), "question", testCandidates(), 2)
	if len(got) != 2 {
		t.Fatalf("fallback should return topK chunks, got %d", len(got))
	}
	if got[0].Reason != "Fallback: top by vector similarity" {
		t.Fatalf("unexpected fallback reason: %q", got[0].Reason)
	}
}

func TestFilterDropsOutOfRangeIndexes(t *testing.T) {
	llm := &scriptedLLM{response: `{"relevant_chunks":[
		{"chunk_index": 42, "relevance_score": 0.9, "reason": "bogus"},
		{"chunk_index": 0, "relevance_score": 0.9, "reason": "bogus"},
		{"chunk_index": 1, "relevance_score": 0.7, "reason": "valid"}
	]}`}
	stage := NewStageOne(llm, "gemini-2.0-flash")

	got := stage.Filter(context.Background(), "question", testCandidates(), 3)
	if len(got) != 1 {
		t.Fatalf("expected only the valid selection, got %d", len(got))
	}
	if got[0].ChunkID != 0 {
		t.Fatalf("expected candidate 1 (chunk 0), got chunk %d", got[0].ChunkID)
	}
}

func TestFilterEmptyCandidates(t *testing.T) {
	llm := &scriptedLLM{}
	stage := NewStageOne(llm, "gemini-2.0-flash")

	if got := stage.Filter(context.Background(), "question", nil, 5); got != nil {
		t.Fatalf("expected nil for empty candidates, got %v", got)
	}
	if len(llm.prompts) != 0 {
		t.Fatalf("should not call the model with no candidates")
	}
}
