package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/darshild078/ytvideo-chatbot/internal/vectorstore"
)

type fakeQueryEmbedder struct {
	embedding []float32
	err       error
}

func (f *fakeQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.embedding, f.err
}

type fakeSearcher struct {
	matches []vectorstore.Match
	err     error
	limit   int
}

func (f *fakeSearcher) Search(ctx context.Context, embedding []float32, limit int) ([]vectorstore.Match, error) {
	f.limit = limit
	return f.matches, f.err
}

func newTestOrchestrator(embedder QueryEmbedder, searcher Searcher, llm LLM) *Orchestrator {
	return NewOrchestrator(
		embedder,
		searcher,
		NewStageOne(llm, "gemini-2.0-flash"),
		NewStageTwo(llm, "gemini-2.0-flash"),
		nil,
		Options{SearchOverfetch: 20, RetrieveTopK: 10, FilterTopK: 5},
	)
}

func TestAnswerFullPipeline(t *testing.T) {
	matches := []vectorstore.Match{
		{VideoID: "vid1", ChunkID: 0, Text: "intro", StartTime: 0, EndTime: 30, Score: 0.9},
		{VideoID: "other", ChunkID: 1, Text: "noise from another video", StartTime: 10, EndTime: 40, Score: 0.89},
		{VideoID: "vid1", ChunkID: 2, Text: "the answer lives here", StartTime: 120, EndTime: 180, Score: 0.85},
		{VideoID: "vid1", ChunkID: 5, Text: "more detail", StartTime: 400, EndTime: 460, Score: 0.8},
	}
	llm := &scriptedLLM{response: `{
		"answer": "It is covered at two minutes in.",
		"primary_timestamp": 120,
		"confidence": 0.9,
		"context": "Main explanation",
		"relevant_chunks": [{"chunk_index": 2, "relevance_score": 0.9, "reason": "direct"}]
	}`}
	searcher := &fakeSearcher{matches: matches}
	orch := newTestOrchestrator(&fakeQueryEmbedder{embedding: []float32{0.1, 0.2}}, searcher, llm)

	got := orch.Answer(context.Background(), "vid1", "where is it covered?", "")

	if searcher.limit != 20 {
		t.Fatalf("search should over-fetch with configured limit, got %d", searcher.limit)
	}
	if got.Metrics.ChunksRetrieved != 3 {
		t.Fatalf("matches from other videos must be filtered out, got %d retrieved", got.Metrics.ChunksRetrieved)
	}
	if got.Metrics.ChunksFiltered == 0 {
		t.Fatalf("expected filtered chunks in metrics")
	}
	if got.PrimaryTimestamp != 120 {
		t.Fatalf("expected primary timestamp 120, got %v", got.PrimaryTimestamp)
	}
	validStarts := map[float64]bool{0: true, 120: true, 400: true}
	if !validStarts[got.PrimaryTimestamp] {
		t.Fatalf("primary timestamp %v is not a chunk start time", got.PrimaryTimestamp)
	}
	for _, ms := range []int64{got.Metrics.EmbeddingTime, got.Metrics.VectorSearchTime, got.Metrics.Stage1Time, got.Metrics.Stage2Time, got.Metrics.TotalTime} {
		if ms < 0 {
			t.Fatalf("timing metrics must be non-negative, got %+v", got.Metrics)
		}
	}
}

func TestAnswerNoMatchesForVideo(t *testing.T) {
	matches := []vectorstore.Match{
		{VideoID: "other", ChunkID: 0, Text: "unrelated", StartTime: 0, EndTime: 30, Score: 0.9},
	}
	llm := &scriptedLLM{}
	orch := newTestOrchestrator(&fakeQueryEmbedder{embedding: []float32{0.1}}, &fakeSearcher{matches: matches}, llm)

	got := orch.Answer(context.Background(), "vid1", "question", "")
	if got.Confidence != 0.1 {
		t.Fatalf("no-content answer should have confidence 0.1, got %v", got.Confidence)
	}
	if got.Metrics.ChunksRetrieved != 0 || got.Metrics.ChunksFiltered != 0 {
		t.Fatalf("expected zero chunk counts, got %+v", got.Metrics)
	}
	if len(llm.prompts) != 0 {
		t.Fatalf("model should not be called when nothing was retrieved")
	}
}

func TestAnswerEmbeddingFailure(t *testing.T) {
	llm := &scriptedLLM{}
	orch := newTestOrchestrator(&fakeQueryEmbedder{err: errors.New("api down")}, &fakeSearcher{}, llm)

	got := orch.Answer(context.Background(), "vid1", "question", "")
	if got.Confidence != 0 {
		t.Fatalf("failure answer should have zero confidence, got %v", got.Confidence)
	}
	if got.Metrics.TotalTime < 0 {
		t.Fatalf("total time must still be recorded")
	}
}

func TestAnswerSearchFailure(t *testing.T) {
	llm := &scriptedLLM{}
	orch := newTestOrchestrator(&fakeQueryEmbedder{embedding: []float32{0.1}}, &fakeSearcher{err: errors.New("pg down")}, llm)

	got := orch.Answer(context.Background(), "vid1", "question", "")
	if got.Confidence != 0 {
		t.Fatalf("failure answer should have zero confidence, got %v", got.Confidence)
	}
	if len(llm.prompts) != 0 {
		t.Fatalf("model should not be called when search failed")
	}
}
