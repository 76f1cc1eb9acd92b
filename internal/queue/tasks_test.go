package queue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/darshild078/ytvideo-chatbot/internal/chunker"
	"github.com/darshild078/ytvideo-chatbot/internal/indexer"
	"github.com/darshild078/ytvideo-chatbot/internal/transcript"
	"github.com/darshild078/ytvideo-chatbot/internal/youtube"
	"github.com/darshild078/ytvideo-chatbot/models"
)

type fakeStore struct {
	indexed     *models.Video
	unindexed   []string
	transcripts int
}

func (f *fakeStore) MarkIndexed(ctx context.Context, video *models.Video) error {
	f.indexed = video
	return nil
}

func (f *fakeStore) MarkUnindexed(ctx context.Context, videoID string) error {
	f.unindexed = append(f.unindexed, videoID)
	return nil
}

func (f *fakeStore) SaveTranscript(ctx context.Context, videoID string, segments []transcript.Segment, language string) error {
	f.transcripts++
	return nil
}

type fakeExtractor struct {
	segments []transcript.Segment
	err      error
}

func (f *fakeExtractor) Extract(ctx context.Context, videoID string) ([]transcript.Segment, string, error) {
	return f.segments, "en", f.err
}

type fakeMetadata struct {
	err error
}

func (f *fakeMetadata) FetchMetadata(ctx context.Context, videoID string) (*youtube.VideoMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &youtube.VideoMetadata{VideoID: videoID, Title: "Test Video", ChannelTitle: "Test Channel"}, nil
}

type fakeIndexer struct {
	runs int
	err  error
}

func (f *fakeIndexer) Run(ctx context.Context, videoID string, chunks []chunker.Chunk, report indexer.ProgressFunc) error {
	f.runs++
	if f.err != nil {
		return f.err
	}
	report(30, "Generating embeddings 1-50 of 100...")
	report(62, "Indexing batch 1/2...")
	return nil
}

type fakeDeleter struct {
	deleted []string
}

func (f *fakeDeleter) DeleteVideo(ctx context.Context, videoID string) error {
	f.deleted = append(f.deleted, videoID)
	return nil
}

type recordingPublisher struct {
	progress  []int
	stages    []string
	completed []bool
	errors    []string
}

func (r *recordingPublisher) Progress(videoID string, progress int, stage string) {
	r.progress = append(r.progress, progress)
	r.stages = append(r.stages, stage)
}

func (r *recordingPublisher) Complete(videoID string, success bool) {
	r.completed = append(r.completed, success)
}

func (r *recordingPublisher) Error(videoID string, message string) {
	r.errors = append(r.errors, message)
}

func manySegments(n int) []transcript.Segment {
	segments := make([]transcript.Segment, n)
	for i := range segments {
		segments[i] = transcript.Segment{
			Text:     "some spoken words in this caption segment here",
			Start:    float64(i * 5),
			Duration: 5,
		}
	}
	return segments
}

func newTestProcessor(store *fakeStore, extractor *fakeExtractor, meta *fakeMetadata, idx *fakeIndexer, del *fakeDeleter, pub *recordingPublisher) *IngestProcessor {
	return NewIngestProcessor(store, extractor, meta, idx, del, pub, nil, 300, 50, 15000)
}

func ingestTask(t *testing.T, videoID string) *asynq.Task {
	t.Helper()
	task, opts, err := NewIngestTask(videoID, "https://www.youtube.com/watch?v="+videoID, 0)
	if err != nil {
		t.Fatalf("NewIngestTask failed: %v", err)
	}
	if len(opts) == 0 {
		t.Fatalf("expected enqueue options")
	}
	return task
}

func TestProcessTaskSuccess(t *testing.T) {
	store := &fakeStore{}
	pub := &recordingPublisher{}
	idx := &fakeIndexer{}
	del := &fakeDeleter{}
	proc := newTestProcessor(store, &fakeExtractor{segments: manySegments(40)}, &fakeMetadata{}, idx, del, pub)

	if err := proc.ProcessTask(context.Background(), ingestTask(t, "abc123DEF45")); err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}

	if store.indexed == nil {
		t.Fatalf("video should be marked indexed")
	}
	if store.indexed.Title != "Test Video" {
		t.Fatalf("metadata should flow into the indexed record, got %q", store.indexed.Title)
	}
	if store.indexed.ChunkCount == 0 {
		t.Fatalf("chunk count should be recorded")
	}
	if store.transcripts != 1 {
		t.Fatalf("transcript checkpoint should be saved once, got %d", store.transcripts)
	}
	if idx.runs != 1 {
		t.Fatalf("indexing should run once, got %d", idx.runs)
	}
	if len(pub.completed) != 1 || !pub.completed[0] {
		t.Fatalf("completion event should report success, got %v", pub.completed)
	}
	if len(del.deleted) != 0 {
		t.Fatalf("nothing should be deleted on success")
	}

	last := -1
	for i, p := range pub.progress {
		if p <= last {
			t.Fatalf("progress must be strictly increasing, got %v at %d after %v", p, i, last)
		}
		last = p
	}
	if pub.progress[0] != 2 || pub.progress[len(pub.progress)-1] != 100 {
		t.Fatalf("progress should run 2..100, got %v", pub.progress)
	}

	// The chunking event must sit below the pipeline's opening report at
	// 30, otherwise the first embedding stage never advances progress.
	seen29, seen30 := false, false
	for _, p := range pub.progress {
		if p == 29 {
			seen29 = true
		}
		if p == 30 {
			seen30 = true
		}
	}
	if !seen29 || !seen30 {
		t.Fatalf("expected both chunking (29) and first embedding (30) events, got %v", pub.progress)
	}
}

func TestNewIngestTaskTimeout(t *testing.T) {
	_, opts, err := NewIngestTask("abc123DEF45", "https://youtu.be/abc123DEF45", 45*time.Minute)
	if err != nil {
		t.Fatalf("NewIngestTask failed: %v", err)
	}
	var timeout time.Duration
	for _, opt := range opts {
		if opt.Type() == asynq.TimeoutOpt {
			timeout = opt.Value().(time.Duration)
		}
	}
	if timeout != 45*time.Minute {
		t.Fatalf("configured timeout should be used, got %v", timeout)
	}

	_, opts, err = NewIngestTask("abc123DEF45", "https://youtu.be/abc123DEF45", 0)
	if err != nil {
		t.Fatalf("NewIngestTask failed: %v", err)
	}
	for _, opt := range opts {
		if opt.Type() == asynq.TimeoutOpt && opt.Value().(time.Duration) != defaultIngestTimeout {
			t.Fatalf("zero timeout should fall back to the default, got %v", opt.Value())
		}
	}
}

func TestProcessTaskIndexingFailureRollsBack(t *testing.T) {
	store := &fakeStore{}
	pub := &recordingPublisher{}
	del := &fakeDeleter{}
	proc := newTestProcessor(store, &fakeExtractor{segments: manySegments(40)}, &fakeMetadata{},
		&fakeIndexer{err: errors.New("embedding API unavailable")}, del, pub)

	err := proc.ProcessTask(context.Background(), ingestTask(t, "abc123DEF45"))
	if err == nil {
		t.Fatalf("expected error from failed indexing")
	}
	if store.indexed != nil {
		t.Fatalf("video must not be marked indexed on failure")
	}
	if len(store.unindexed) != 1 {
		t.Fatalf("video should be marked unindexed, got %v", store.unindexed)
	}
	if len(del.deleted) != 1 {
		t.Fatalf("partial chunks should be cleaned up, got %v", del.deleted)
	}
	if len(pub.errors) != 1 || !strings.Contains(pub.errors[0], "embedding API unavailable") {
		t.Fatalf("error event should carry the cause, got %v", pub.errors)
	}
	if len(pub.completed) != 0 {
		t.Fatalf("no completion event on failure")
	}
}

func TestProcessTaskRejectsOversizedTranscript(t *testing.T) {
	store := &fakeStore{}
	pub := &recordingPublisher{}
	idx := &fakeIndexer{}
	proc := NewIngestProcessor(store, &fakeExtractor{segments: manySegments(11)}, &fakeMetadata{},
		idx, &fakeDeleter{}, pub, nil, 300, 50, 10)

	err := proc.ProcessTask(context.Background(), ingestTask(t, "abc123DEF45"))
	if err == nil {
		t.Fatalf("expected error for oversized transcript")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("oversized transcript should not be retried, got %v", err)
	}
	if idx.runs != 0 {
		t.Fatalf("nothing should be embedded for a rejected transcript")
	}
	if store.transcripts != 0 {
		t.Fatalf("no checkpoint for a rejected transcript")
	}
}

func TestProcessTaskInvalidPayload(t *testing.T) {
	proc := newTestProcessor(&fakeStore{}, &fakeExtractor{}, &fakeMetadata{}, &fakeIndexer{}, &fakeDeleter{}, &recordingPublisher{})

	task := asynq.NewTask(TypeVideoIngest, []byte("not json"))
	err := proc.ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("invalid payload should skip retries, got %v", err)
	}
}
