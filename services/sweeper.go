package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
)

// UnindexedLister reports videos whose ingestion failed or never finished.
type UnindexedLister interface {
	ListUnindexed(ctx context.Context) ([]string, error)
}

// VectorCleaner removes a video's chunks from the vector store.
type VectorCleaner interface {
	DeleteVideo(ctx context.Context, videoID string) error
}

// Sweeper periodically removes orphaned vector rows left behind by failed
// ingestions, so a stale partial index can never serve queries.
type Sweeper struct {
	videos    UnindexedLister
	vectors   VectorCleaner
	scheduler *gocron.Scheduler
	interval  time.Duration
}

func NewSweeper(videos UnindexedLister, vectors VectorCleaner, interval time.Duration) *Sweeper {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Sweeper{
		videos:    videos,
		vectors:   vectors,
		scheduler: s,
		interval:  interval,
	}
}

// Start schedules the sweep and runs the scheduler in the background.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.Every(s.interval).Tag("vector-sweep").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Info("Vector sweeper started", "interval", s.interval.String())
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// Sweep runs one pass: every video still marked unindexed gets its vector
// rows deleted. Failures are logged and retried on the next pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	videoIDs, err := s.videos.ListUnindexed(ctx)
	if err != nil {
		logger.Error("Sweep failed to list unindexed videos", "error", err)
		return
	}
	if len(videoIDs) == 0 {
		return
	}

	cleaned := 0
	for _, videoID := range videoIDs {
		if err := s.vectors.DeleteVideo(ctx, videoID); err != nil {
			logger.Error("Sweep failed to delete chunks", "videoId", videoID, "error", err)
			continue
		}
		cleaned++
	}
	logger.Info("Vector sweep completed", "candidates", len(videoIDs), "cleaned", cleaned)
}
