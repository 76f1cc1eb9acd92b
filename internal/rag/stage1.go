package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/internal/vectorstore"
)

// LLM is the structured-output completion contract both stages run on.
type LLM interface {
	GenerateJSON(ctx context.Context, model, prompt string, temperature float32, maxTokens int32) (string, error)
}

// FilteredChunk is a retrieved chunk that survived relevance filtering,
// annotated with the model's score and justification.
type FilteredChunk struct {
	ChunkID        int     `json:"chunkId"`
	Text           string  `json:"text"`
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	RelevanceScore float64 `json:"relevanceScore"`
	Reason         string  `json:"reason"`
}

// StageOne narrows retrieved candidates to the few most relevant to the
// question. It never fails outward: any LLM or parse error falls back to
// the top candidates by raw vector similarity.
type StageOne struct {
	llm   LLM
	model string
}

func NewStageOne(llm LLM, model string) *StageOne {
	return &StageOne{llm: llm, model: model}
}

type stage1Selection struct {
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason"`
}

type stage1Response struct {
	RelevantChunks []stage1Selection `json:"relevant_chunks"`
}

// Filter selects up to topK of the candidate chunks. Selections reference
// candidates by 1-based position; out-of-range references are dropped
// silently.
func (s *StageOne) Filter(ctx context.Context, question string, candidates []vectorstore.Match, topK int) []FilteredChunk {
	if len(candidates) == 0 {
		return nil
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}

	prompt := s.buildPrompt(question, candidates, topK)

	raw, err := s.llm.GenerateJSON(ctx, s.model, prompt, 0.1, 1000)
	if err != nil {
		logger.Warn("Relevance filtering failed, using similarity fallback", "error", err)
		return fallbackBySimilarity(candidates, topK)
	}

	var parsed stage1Response
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed.RelevantChunks) == 0 {
		logger.Warn("Relevance filter returned unparsable output, using similarity fallback")
		return fallbackBySimilarity(candidates, topK)
	}

	filtered := make([]FilteredChunk, 0, topK)
	for _, sel := range parsed.RelevantChunks {
		if len(filtered) == topK {
			break
		}
		idx := sel.ChunkIndex - 1 // model references candidates 1-based
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		c := candidates[idx]
		filtered = append(filtered, FilteredChunk{
			ChunkID:        c.ChunkID,
			Text:           c.Text,
			StartTime:      c.StartTime,
			EndTime:        c.EndTime,
			RelevanceScore: sel.RelevanceScore,
			Reason:         sel.Reason,
		})
	}

	if len(filtered) == 0 {
		return fallbackBySimilarity(candidates, topK)
	}
	return filtered
}

func (s *StageOne) buildPrompt(question string, candidates []vectorstore.Match, topK int) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] ChunkID: %d, Start: %s, End: %s, Score: %.3f\nText: %s\n\n",
			i+1, c.ChunkID, FormatTimestamp(c.StartTime), FormatTimestamp(c.EndTime), c.Score, c.Text)
	}

	return fmt.Sprintf(`You are a retrieval assistant for a video Q&A system. Your task is to select the %d MOST RELEVANT transcript chunks to answer the user's question.

USER QUESTION: "%s"

TRANSCRIPT CHUNKS (%d total):
%s
Analyze each chunk and select the %d most relevant ones. Consider:
1. Direct relevance to the question
2. Context that helps answer the question
3. Timestamp accuracy for video navigation

Return ONLY valid JSON in this exact format:
{
  "relevant_chunks": [
    {"chunk_index": 1, "relevance_score": 0.95, "reason": "Directly addresses..."},
    {"chunk_index": 5, "relevance_score": 0.88, "reason": "Provides context for..."}
  ]
}

Return exactly %d chunks, sorted by relevance (highest first).`,
		topK, question, len(candidates), b.String(), topK, topK)
}

// fallbackBySimilarity keeps the top candidates in their vector-score
// order, which the search already sorted by.
func fallbackBySimilarity(candidates []vectorstore.Match, topK int) []FilteredChunk {
	if topK > len(candidates) {
		topK = len(candidates)
	}
	filtered := make([]FilteredChunk, topK)
	for i := 0; i < topK; i++ {
		c := candidates[i]
		filtered[i] = FilteredChunk{
			ChunkID:        c.ChunkID,
			Text:           c.Text,
			StartTime:      c.StartTime,
			EndTime:        c.EndTime,
			RelevanceScore: c.Score,
			Reason:         "Fallback: top by vector similarity",
		}
	}
	return filtered
}
