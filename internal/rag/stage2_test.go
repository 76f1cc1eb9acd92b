package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testFiltered() []FilteredChunk {
	return []FilteredChunk{
		{ChunkID: 3, Text: "the key explanation", StartTime: 95, EndTime: 140, RelevanceScore: 0.95, Reason: "core"},
		{ChunkID: 7, Text: "a worked example", StartTime: 300, EndTime: 360, RelevanceScore: 0.8, Reason: "example"},
	}
}

func TestGenerateParsesAnswer(t *testing.T) {
	llm := &scriptedLLM{response: `{
		"answer": "The key idea is explained around the two minute mark.",
		"primary_timestamp": 95,
		"confidence": 0.85,
		"context": "Speaker defines the core concept",
		"secondary_timestamps": [
			{"time": 300, "topic": "Worked example"},
			{"time": 360, "topic": "Follow-up"},
			{"time": 400, "topic": "Extra"},
			{"time": 500, "topic": "Should be dropped"}
		]
	}`}
	stage := NewStageTwo(llm, "gemini-2.0-flash")

	got := stage.Generate(context.Background(), "what is the key idea?", testFiltered(), "")
	if got.PrimaryTimestamp != 95 {
		t.Fatalf("expected primary timestamp 95, got %v", got.PrimaryTimestamp)
	}
	if got.FormattedTime != "1:35" {
		t.Fatalf("expected formatted time 1:35, got %q", got.FormattedTime)
	}
	if got.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", got.Confidence)
	}
	if len(got.SecondaryTimestamps) != 3 {
		t.Fatalf("secondary timestamps should cap at 3, got %d", len(got.SecondaryTimestamps))
	}
	if got.SecondaryTimestamps[0].Formatted != "5:00" {
		t.Fatalf("expected formatted secondary 5:00, got %q", got.SecondaryTimestamps[0].Formatted)
	}
}

func TestGenerateFallbackOnError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("rate limited")}
	stage := NewStageTwo(llm, "gemini-2.0-flash")

	got := stage.Generate(context.Background(), "question", testFiltered(), "")
	if got.Confidence != 0 {
		t.Fatalf("fallback confidence should be 0, got %v", got.Confidence)
	}
	if got.PrimaryTimestamp != 95 {
		t.Fatalf("fallback should anchor at first chunk start, got %v", got.PrimaryTimestamp)
	}
	if !strings.Contains(got.Answer, "error processing your question") {
		t.Fatalf("unexpected fallback answer: %q", got.Answer)
	}
}

func TestGenerateFallbackOnMalformedJSON(t *testing.T) {
	llm := &scriptedLLM{response: "here is the answer in prose"}
	stage := NewStageTwo(llm, "gemini-2.0-flash")

	got := stage.Generate(context.Background(), "question", nil, "")
	if got.PrimaryTimestamp != 0 || got.Confidence != 0 {
		t.Fatalf("empty-chunk fallback should anchor at 0, got %v conf %v", got.PrimaryTimestamp, got.Confidence)
	}
}

func TestGenerateIncludesMetadataInPrompt(t *testing.T) {
	llm := &scriptedLLM{response: `{"answer":"ok","primary_timestamp":95,"confidence":0.5,"context":"c"}`}
	stage := NewStageTwo(llm, "gemini-2.0-flash")

	stage.Generate(context.Background(), "question", testFiltered(), "Video Title: Test Video\nChannel: Example")
	if len(llm.prompts) != 1 {
		t.Fatalf("expected one model call, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[0], "Video Title: Test Video") {
		t.Fatalf("prompt should include video metadata")
	}
}
