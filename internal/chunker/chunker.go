package chunker

import (
	"math"
	"strings"

	"github.com/darshild078/ytvideo-chatbot/internal/transcript"
)

const (
	DefaultTargetTokens  = 300
	DefaultOverlapTokens = 50
)

// Chunk is a contiguous, timestamp-bounded span of transcript text sized
// for retrieval. IDs are dense and ordered 0..N-1 within one ingestion run.
type Chunk struct {
	ChunkID   int
	Text      string
	StartTime float64
	EndTime   float64
	Tokens    int
}

// EstimateTokens approximates the token cost of a text as ceil(words * 1.3).
// This is a fixed heuristic, not a real tokenizer; it determines chunk
// boundaries and must stay stable for reproducible indexing.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

// Split groups ordered transcript segments into token-bounded chunks with
// trailing overlap carried into the next chunk. Segments are never split:
// a single segment larger than targetTokens yields one oversized chunk,
// since timestamp precision matters more than strict sizing.
func Split(segments []transcript.Segment, targetTokens, overlapTokens int) []Chunk {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}

	chunks := make([]Chunk, 0)
	var currentTexts []string
	currentTokens := 0
	chunkStartTime := 0.0
	chunkEndTime := 0.0
	chunkID := 0

	for i, segment := range segments {
		segmentTokens := EstimateTokens(segment.Text)

		if len(currentTexts) == 0 {
			chunkStartTime = segment.Start
		}

		currentTexts = append(currentTexts, segment.Text)
		currentTokens += segmentTokens
		chunkEndTime = segment.Start + segment.Duration

		if currentTokens < targetTokens {
			continue
		}

		chunks = append(chunks, Chunk{
			ChunkID:   chunkID,
			Text:      strings.Join(currentTexts, " "),
			StartTime: chunkStartTime,
			EndTime:   chunkEndTime,
			Tokens:    currentTokens,
		})
		chunkID++

		// Seed the next buffer with a contiguous suffix of the closed chunk
		// whose cumulative token estimate stays within the overlap budget.
		var overlapTexts []string
		overlapCost := 0
		for j := len(currentTexts) - 1; j >= 0; j-- {
			cost := EstimateTokens(currentTexts[j])
			if overlapCost+cost > overlapTokens {
				break
			}
			overlapTexts = append([]string{currentTexts[j]}, overlapTexts...)
			overlapCost += cost
		}

		// Recover the overlap's original start time by matching its first
		// segment text against the source sequence.
		overlapStartTime := chunkEndTime
		if len(overlapTexts) > 0 {
			for k := i; k >= 0; k-- {
				if segments[k].Text == overlapTexts[0] {
					overlapStartTime = segments[k].Start
					break
				}
			}
		}

		currentTexts = overlapTexts
		currentTokens = overlapCost
		chunkStartTime = overlapStartTime
	}

	// Flush remaining content as a final chunk even if undersized.
	if len(currentTexts) > 0 {
		chunks = append(chunks, Chunk{
			ChunkID:   chunkID,
			Text:      strings.Join(currentTexts, " "),
			StartTime: chunkStartTime,
			EndTime:   chunkEndTime,
			Tokens:    currentTokens,
		})
	}

	return chunks
}
