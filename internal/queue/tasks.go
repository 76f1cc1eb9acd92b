package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/darshild078/ytvideo-chatbot/internal/chunker"
	"github.com/darshild078/ytvideo-chatbot/internal/indexer"
	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/internal/progress"
	"github.com/darshild078/ytvideo-chatbot/internal/telemetry"
	"github.com/darshild078/ytvideo-chatbot/internal/transcript"
	"github.com/darshild078/ytvideo-chatbot/internal/youtube"
	"github.com/darshild078/ytvideo-chatbot/models"
)

const (
	// TypeVideoIngest is the asynq task type for full video ingestion.
	TypeVideoIngest = "video:ingest"

	// QueueCritical carries ingestion jobs so they are not starved by
	// lower-priority work.
	QueueCritical = "critical"

	defaultIngestTimeout = 30 * time.Minute
)

// IngestPayload is the JSON body of a video:ingest task.
type IngestPayload struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

// NewIngestTask builds the ingestion task for one video. The task ID is
// derived from the video ID so a video already queued or in flight cannot
// be enqueued twice.
func NewIngestTask(videoID, url string, timeout time.Duration) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(IngestPayload{VideoID: videoID, URL: url})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal ingest payload: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultIngestTimeout
	}
	opts := []asynq.Option{
		asynq.TaskID("ingest:" + videoID),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(2),
		asynq.Timeout(timeout),
	}
	return asynq.NewTask(TypeVideoIngest, payload), opts, nil
}

// VideoStore is the persistence surface the processor needs.
type VideoStore interface {
	MarkIndexed(ctx context.Context, video *models.Video) error
	MarkUnindexed(ctx context.Context, videoID string) error
	SaveTranscript(ctx context.Context, videoID string, segments []transcript.Segment, language string) error
}

// TranscriptExtractor fetches caption segments for a video.
type TranscriptExtractor interface {
	Extract(ctx context.Context, videoID string) ([]transcript.Segment, string, error)
}

// MetadataFetcher loads video metadata from the YouTube Data API.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (*youtube.VideoMetadata, error)
}

// Indexer embeds and stores chunks, reporting progress as it goes.
type Indexer interface {
	Run(ctx context.Context, videoID string, chunks []chunker.Chunk, report indexer.ProgressFunc) error
}

// ChunkDeleter removes a video's rows from the vector store.
type ChunkDeleter interface {
	DeleteVideo(ctx context.Context, videoID string) error
}

// IngestProcessor handles video:ingest tasks end to end: metadata,
// transcript, chunking, embedding, indexing. Any failure leaves the video
// marked unindexed with its partial chunks cleaned up, so a retry starts
// from a clean slate.
type IngestProcessor struct {
	store       VideoStore
	transcripts TranscriptExtractor
	metadata    MetadataFetcher
	pipeline    Indexer
	chunks      ChunkDeleter
	publisher   progress.Publisher
	metrics     *telemetry.Metrics

	targetTokens  int
	overlapTokens int
	maxSegments   int
}

func NewIngestProcessor(
	store VideoStore,
	transcripts TranscriptExtractor,
	metadata MetadataFetcher,
	pipeline Indexer,
	chunks ChunkDeleter,
	publisher progress.Publisher,
	metrics *telemetry.Metrics,
	targetTokens, overlapTokens, maxSegments int,
) *IngestProcessor {
	return &IngestProcessor{
		store:         store,
		transcripts:   transcripts,
		metadata:      metadata,
		pipeline:      pipeline,
		chunks:        chunks,
		publisher:     publisher,
		metrics:       metrics,
		targetTokens:  targetTokens,
		overlapTokens: overlapTokens,
		maxSegments:   maxSegments,
	}
}

// ProcessTask implements asynq.Handler.
func (p *IngestProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid ingest payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.VideoID == "" {
		return fmt.Errorf("ingest payload missing videoId: %w", asynq.SkipRetry)
	}

	tracer := otel.Tracer("ytvideo-chatbot")
	ctx, span := tracer.Start(ctx, "ingest.process")
	span.SetAttributes(attribute.String("video.id", payload.VideoID))
	defer span.End()

	start := time.Now()
	chunkCount, err := p.ingest(ctx, payload.VideoID)
	if err != nil {
		logger.Error("Ingestion failed", "videoId", payload.VideoID, "error", err)
		p.publisher.Error(payload.VideoID, err.Error())
		p.rollback(payload.VideoID)
		if p.metrics != nil {
			p.metrics.RecordIngestion(time.Since(start).Seconds(), "failed", 0)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordIngestion(time.Since(start).Seconds(), "completed", chunkCount)
	}
	logger.Info("Ingestion completed",
		"videoId", payload.VideoID,
		"chunks", chunkCount,
		"duration", time.Since(start).String())
	return nil
}

func (p *IngestProcessor) ingest(ctx context.Context, videoID string) (int, error) {
	p.publisher.Progress(videoID, 2, "Starting analysis...")

	p.publisher.Progress(videoID, 10, "Fetching video metadata...")
	meta, err := p.metadata.FetchMetadata(ctx, videoID)
	if err != nil {
		return 0, fmt.Errorf("metadata fetch failed: %w", err)
	}

	p.publisher.Progress(videoID, 12, "Extracting transcript...")
	segments, language, err := p.transcripts.Extract(ctx, videoID)
	if err != nil {
		return 0, fmt.Errorf("transcript extraction failed: %w", err)
	}
	if len(segments) > p.maxSegments {
		return 0, fmt.Errorf("transcript too large: %d segments exceeds limit of %d: %w",
			len(segments), p.maxSegments, asynq.SkipRetry)
	}
	p.publisher.Progress(videoID, 25, fmt.Sprintf("Transcript extracted (%d segments)", len(segments)))

	if err := p.store.SaveTranscript(ctx, videoID, segments, language); err != nil {
		// Checkpoint only; indexing can still proceed without it.
		logger.Warn("Transcript checkpoint failed", "videoId", videoID, "error", err)
	}

	chunks := chunker.Split(segments, p.targetTokens, p.overlapTokens)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("transcript produced no chunks: %w", asynq.SkipRetry)
	}
	// The pipeline's first embedding report lands exactly on 30; stay
	// below it so that event is not dropped as a non-advancing repeat.
	p.publisher.Progress(videoID, 29, fmt.Sprintf("Created %d chunks", len(chunks)))

	err = p.pipeline.Run(ctx, videoID, chunks, func(pct int, stage string) {
		p.publisher.Progress(videoID, pct, stage)
	})
	if err != nil {
		return 0, fmt.Errorf("indexing failed: %w", err)
	}

	p.publisher.Progress(videoID, 95, "Finalizing...")
	video := &models.Video{
		VideoID:         videoID,
		Title:           meta.Title,
		Description:     meta.Description,
		ChannelID:       meta.ChannelID,
		ChannelTitle:    meta.ChannelTitle,
		SubscriberCount: meta.SubscriberCount,
		ViewCount:       meta.ViewCount,
		LikeCount:       meta.LikeCount,
		PublishedAt:     meta.PublishedAt,
		Duration:        meta.Duration,
		ThumbnailURL:    meta.ThumbnailURL,
		ChunkCount:      len(chunks),
	}
	if err := p.store.MarkIndexed(ctx, video); err != nil {
		return 0, fmt.Errorf("failed to mark video indexed: %w", err)
	}

	p.publisher.Progress(videoID, 100, "Analysis complete")
	p.publisher.Complete(videoID, true)
	return len(chunks), nil
}

// rollback restores the not-indexed state after a failure. Both steps are
// best effort with a fresh context since the task context may be dead.
func (p *IngestProcessor) rollback(videoID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.store.MarkUnindexed(ctx, videoID); err != nil {
		logger.Error("Failed to mark video unindexed", "videoId", videoID, "error", err)
	}
	if err := p.chunks.DeleteVideo(ctx, videoID); err != nil {
		logger.Error("Failed to delete partial chunks", "videoId", videoID, "error", err)
	}
}
