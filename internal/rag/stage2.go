package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
)

// SecondaryTimestamp points at a related moment in the video.
type SecondaryTimestamp struct {
	Time      float64 `json:"time"`
	Formatted string  `json:"formatted"`
	Topic     string  `json:"topic"`
}

// Answer is the grounded response produced by the generation stage.
type Answer struct {
	Answer              string               `json:"answer"`
	PrimaryTimestamp    float64              `json:"primaryTimestamp"`
	FormattedTime       string               `json:"formattedTime"`
	Confidence          float64              `json:"confidence"`
	Context             string               `json:"context"`
	SecondaryTimestamps []SecondaryTimestamp `json:"secondaryTimestamps"`
}

// StageTwo turns the filtered chunks into a grounded answer with navigable
// timestamps. Like the filter stage it never fails outward; errors produce
// a fixed low-confidence answer anchored at the first chunk's start.
type StageTwo struct {
	llm   LLM
	model string
}

func NewStageTwo(llm LLM, model string) *StageTwo {
	return &StageTwo{llm: llm, model: model}
}

type stage2Timestamp struct {
	Time  float64 `json:"time"`
	Topic string  `json:"topic"`
}

type stage2Response struct {
	Answer              string            `json:"answer"`
	PrimaryTimestamp    float64           `json:"primary_timestamp"`
	Confidence          float64           `json:"confidence"`
	Context             string            `json:"context"`
	SecondaryTimestamps []stage2Timestamp `json:"secondary_timestamps"`
}

// Generate produces the final answer from the filtered chunks and optional
// video metadata text.
func (s *StageTwo) Generate(ctx context.Context, question string, chunks []FilteredChunk, videoMetadata string) Answer {
	prompt := s.buildPrompt(question, chunks, videoMetadata)

	raw, err := s.llm.GenerateJSON(ctx, s.model, prompt, 0.3, 800)
	if err != nil {
		logger.Warn("Answer generation failed, using fallback answer", "error", err)
		return fallbackAnswer(chunks)
	}

	var parsed stage2Response
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logger.Warn("Answer generation returned unparsable output, using fallback answer")
		return fallbackAnswer(chunks)
	}

	primary := parsed.PrimaryTimestamp
	if primary == 0 && len(chunks) > 0 {
		primary = chunks[0].StartTime
	}

	answer := parsed.Answer
	if answer == "" {
		answer = "Unable to generate answer from the provided context."
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	secondary := make([]SecondaryTimestamp, 0, 3)
	for _, ts := range parsed.SecondaryTimestamps {
		if len(secondary) == 3 {
			break
		}
		secondary = append(secondary, SecondaryTimestamp{
			Time:      ts.Time,
			Formatted: FormatTimestamp(ts.Time),
			Topic:     ts.Topic,
		})
	}

	return Answer{
		Answer:              answer,
		PrimaryTimestamp:    primary,
		FormattedTime:       FormatTimestamp(primary),
		Confidence:          confidence,
		Context:             parsed.Context,
		SecondaryTimestamps: secondary,
	}
}

func (s *StageTwo) buildPrompt(question string, chunks []FilteredChunk, videoMetadata string) string {
	var b strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[Segment %d] Time: %s - %s\nRelevance: %.0f%%\nContent: %s\n\n",
			i+1, FormatTimestamp(chunk.StartTime), FormatTimestamp(chunk.EndTime),
			chunk.RelevanceScore*100, chunk.Text)
	}

	metadataSection := ""
	if videoMetadata != "" {
		metadataSection = "\nVIDEO METADATA:\n" + videoMetadata + "\n"
	}

	return fmt.Sprintf(`You are a helpful video assistant. Answer the user's question based ONLY on the provided transcript segments and video metadata. Be precise and reference specific timestamps.%s
USER QUESTION: "%s"

RELEVANT TRANSCRIPT SEGMENTS:
%s
Provide a clear, accurate answer with exact timestamps. Return ONLY valid JSON:
{
  "answer": "Your 2-3 sentence answer here. Be specific and helpful.",
  "primary_timestamp": 123.5,
  "confidence": 0.85,
  "context": "Brief description of what's being discussed at this timestamp",
  "secondary_timestamps": [
    {"time": 145.2, "topic": "Related point about..."},
    {"time": 200.0, "topic": "Additional context on..."}
  ]
}

RULES:
- primary_timestamp must be a number (seconds) from one of the segments
- confidence should be 0.0-1.0 based on how well the segments answer the question
- Include 0-3 secondary timestamps only if they're genuinely relevant
- If the answer cannot be found, set confidence to 0.1 and explain in the answer`,
		metadataSection, question, b.String())
}

func fallbackAnswer(chunks []FilteredChunk) Answer {
	fallbackTime := 0.0
	if len(chunks) > 0 {
		fallbackTime = chunks[0].StartTime
	}
	return Answer{
		Answer:              "I encountered an error processing your question. Please try again.",
		PrimaryTimestamp:    fallbackTime,
		FormattedTime:       FormatTimestamp(fallbackTime),
		Confidence:          0,
		Context:             "Error occurred during answer generation",
		SecondaryTimestamps: []SecondaryTimestamp{},
	}
}
