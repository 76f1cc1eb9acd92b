package rag

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/internal/telemetry"
	"github.com/darshild078/ytvideo-chatbot/internal/vectorstore"
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the nearest chunks to an embedding across all videos.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]vectorstore.Match, error)
}

// Metrics captures per-stage wall-clock timings for one query, in
// milliseconds, plus retrieval counts.
type Metrics struct {
	EmbeddingTime    int64 `json:"embeddingTime"`
	VectorSearchTime int64 `json:"vectorSearchTime"`
	Stage1Time       int64 `json:"stage1Time"`
	Stage2Time       int64 `json:"stage2Time"`
	TotalTime        int64 `json:"totalTime"`
	ChunksRetrieved  int   `json:"chunksRetrieved"`
	ChunksFiltered   int   `json:"chunksFiltered"`
}

// Result is the full query response: the answer plus pipeline metrics.
type Result struct {
	Answer
	Metrics Metrics `json:"metrics"`
}

// Options tunes the retrieval pipeline. Zero values fall back to defaults
// matching typical transcript sizes.
type Options struct {
	Timeout         time.Duration
	SearchOverfetch int
	RetrieveTopK    int
	FilterTopK      int
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 90 * time.Second
	}
	if o.SearchOverfetch <= 0 {
		o.SearchOverfetch = 100
	}
	if o.RetrieveTopK <= 0 {
		o.RetrieveTopK = 10
	}
	if o.FilterTopK <= 0 {
		o.FilterTopK = 5
	}
}

// Orchestrator runs the full query pipeline: embed the question, search the
// vector store, filter candidates with the relevance stage, then generate a
// grounded answer. It never returns an error; every failure degrades to a
// low-confidence answer so the caller always has something to show.
type Orchestrator struct {
	embedder QueryEmbedder
	searcher Searcher
	stage1   *StageOne
	stage2   *StageTwo
	metrics  *telemetry.Metrics
	opts     Options
}

func NewOrchestrator(embedder QueryEmbedder, searcher Searcher, stage1 *StageOne, stage2 *StageTwo, metrics *telemetry.Metrics, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		embedder: embedder,
		searcher: searcher,
		stage1:   stage1,
		stage2:   stage2,
		metrics:  metrics,
		opts:     opts,
	}
}

// Answer runs the pipeline for one question against one video. The
// videoMetadata text, when present, is handed to the generation stage for
// extra grounding.
func (o *Orchestrator) Answer(ctx context.Context, videoID, question, videoMetadata string) Result {
	tracer := otel.Tracer("ytvideo-chatbot")
	ctx, span := tracer.Start(ctx, "rag.query")
	span.SetAttributes(attribute.String("video.id", videoID))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	totalStart := time.Now()
	var m Metrics

	embedStart := time.Now()
	embedding, err := o.embedder.EmbedQuery(ctx, question)
	m.EmbeddingTime = time.Since(embedStart).Milliseconds()
	o.recordStage("embedding", embedStart)
	if err != nil {
		logger.Error("Query embedding failed", "videoId", videoID, "error", err)
		return o.failureResult(m, totalStart, "Failed to process your question. Please try again.")
	}

	searchStart := time.Now()
	matches, err := o.searcher.Search(ctx, embedding, o.opts.SearchOverfetch)
	m.VectorSearchTime = time.Since(searchStart).Milliseconds()
	o.recordStage("vector_search", searchStart)
	if err != nil {
		logger.Error("Vector search failed", "videoId", videoID, "error", err)
		return o.failureResult(m, totalStart, "Failed to search the video transcript. Please try again.")
	}

	candidates := make([]vectorstore.Match, 0, o.opts.RetrieveTopK)
	for _, match := range matches {
		if match.VideoID != videoID {
			continue
		}
		candidates = append(candidates, match)
		if len(candidates) == o.opts.RetrieveTopK {
			break
		}
	}
	m.ChunksRetrieved = len(candidates)

	if len(candidates) == 0 {
		logger.Warn("No indexed chunks matched query", "videoId", videoID)
		m.TotalTime = time.Since(totalStart).Milliseconds()
		o.recordQuery(totalStart, true)
		return Result{
			Answer: Answer{
				Answer:              "No relevant content found in the video for this question.",
				PrimaryTimestamp:    0,
				FormattedTime:       FormatTimestamp(0),
				Confidence:          0.1,
				Context:             "No matching transcript segments",
				SecondaryTimestamps: []SecondaryTimestamp{},
			},
			Metrics: m,
		}
	}

	stage1Start := time.Now()
	filtered := o.stage1.Filter(ctx, question, candidates, o.opts.FilterTopK)
	m.Stage1Time = time.Since(stage1Start).Milliseconds()
	m.ChunksFiltered = len(filtered)
	o.recordStage("stage1_filter", stage1Start)

	stage2Start := time.Now()
	answer := o.stage2.Generate(ctx, question, filtered, videoMetadata)
	m.Stage2Time = time.Since(stage2Start).Milliseconds()
	o.recordStage("stage2_generate", stage2Start)

	m.TotalTime = time.Since(totalStart).Milliseconds()
	o.recordQuery(totalStart, true)

	logger.Info("Query answered",
		"videoId", videoID,
		"chunksRetrieved", m.ChunksRetrieved,
		"chunksFiltered", m.ChunksFiltered,
		"confidence", answer.Confidence,
		"totalMs", m.TotalTime)

	return Result{Answer: answer, Metrics: m}
}

func (o *Orchestrator) failureResult(m Metrics, totalStart time.Time, msg string) Result {
	m.TotalTime = time.Since(totalStart).Milliseconds()
	o.recordQuery(totalStart, false)
	return Result{
		Answer: Answer{
			Answer:              msg,
			PrimaryTimestamp:    0,
			FormattedTime:       FormatTimestamp(0),
			Confidence:          0,
			Context:             "Error occurred during query processing",
			SecondaryTimestamps: []SecondaryTimestamp{},
		},
		Metrics: m,
	}
}

func (o *Orchestrator) recordStage(stage string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordQueryStage(stage, time.Since(start).Seconds())
	}
}

func (o *Orchestrator) recordQuery(start time.Time, success bool) {
	if o.metrics != nil {
		o.metrics.RecordQuery(time.Since(start).Seconds(), success)
	}
}
