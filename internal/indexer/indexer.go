package indexer

import (
	"context"
	"fmt"

	"github.com/darshild078/ytvideo-chatbot/internal/chunker"
	"github.com/darshild078/ytvideo-chatbot/internal/logger"
)

const DefaultBatchSize = 50 // stays under the index payload ceiling

// Progress bounds for the embed/index phase of an ingestion job. The
// stages before (metadata, transcript, chunking) own 0-30; persistence
// owns 95-100.
const (
	progressFloor = 30
	progressSpan  = 65
)

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Upserter interface {
	Upsert(ctx context.Context, videoID string, chunks []chunker.Chunk, embeddings [][]float32) error
}

// ProgressFunc receives a percentage and a human-readable stage label.
type ProgressFunc func(progress int, stage string)

// Pipeline streams chunks through the embedding provider and vector store
// in fixed-size batches. Each batch is embedded, upserted, and released
// before the next begins, bounding peak memory to one batch regardless of
// total chunk count.
type Pipeline struct {
	embedder  Embedder
	store     Upserter
	batchSize int
}

func NewPipeline(embedder Embedder, store Upserter, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{embedder: embedder, store: store, batchSize: batchSize}
}

// Run processes all chunks for one video. Progress moves strictly through
// the [30,95) band: within each batch's slice the first half signals
// embedding and the second half signals indexing, so an observer can tell
// the phases apart while the reported value never decreases.
func (p *Pipeline) Run(ctx context.Context, videoID string, chunks []chunker.Chunk, report ProgressFunc) error {
	if report == nil {
		report = func(int, string) {}
	}
	total := len(chunks)
	if total == 0 {
		return fmt.Errorf("no chunks to index for video %s", videoID)
	}

	batches := (total + p.batchSize - 1) / p.batchSize
	processed := 0

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := b * p.batchSize
		end := start + p.batchSize
		if end > total {
			end = total
		}
		batch := chunks[start:end]

		report(
			progressFloor+progressSpan*(2*b)/(2*batches),
			fmt.Sprintf("Generating embeddings %d-%d of %d...", start+1, end, total),
		)

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch %d failed: %w", b+1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding batch %d returned %d vectors for %d chunks", b+1, len(vectors), len(batch))
		}

		report(
			progressFloor+progressSpan*(2*b+1)/(2*batches),
			fmt.Sprintf("Indexing batch %d/%d...", b+1, batches),
		)

		if err := p.store.Upsert(ctx, videoID, batch, vectors); err != nil {
			return fmt.Errorf("upsert batch %d failed: %w", b+1, err)
		}

		processed += len(batch)

		logger.Debug("Indexed batch", "video_id", videoID, "batch", b+1, "processed", processed, "total", total)
	}

	return nil
}
