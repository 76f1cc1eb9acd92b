package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
)

// Publisher reports ingestion advancement to whoever is listening. All
// methods are fire-and-forget: if no observer is subscribed the event is
// dropped, never buffered or retried.
type Publisher interface {
	Progress(videoID string, progress int, stage string)
	Complete(videoID string, success bool)
	Error(videoID string, message string)
}

type ProgressEvent struct {
	VideoID  string `json:"videoId"`
	Progress int    `json:"progress"`
	Stage    string `json:"stage"`
}

type CompleteEvent struct {
	VideoID string `json:"videoId"`
	Success bool   `json:"success"`
}

type ErrorEvent struct {
	VideoID string `json:"videoId"`
	Error   string `json:"error"`
}

const progressTTL = 2 * time.Hour

func eventsChannel(videoID string) string {
	return "ingest:events:" + videoID
}

func progressKey(videoID string) string {
	return "ingest:progress:" + videoID
}

// RedisPublisher publishes events on a per-video pub/sub channel and keeps
// the latest percentage in a TTL'd key so the status endpoint can poll it.
type RedisPublisher struct {
	rdb *redis.Client

	mu   sync.Mutex
	last map[string]int // last published progress per video
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, last: make(map[string]int)}
}

// Progress publishes a progress event. Values that do not advance past the
// last published value for the video are suppressed so observers always
// see a strictly increasing sequence.
func (p *RedisPublisher) Progress(videoID string, progress int, stage string) {
	p.mu.Lock()
	if last, ok := p.last[videoID]; ok && progress <= last {
		p.mu.Unlock()
		return
	}
	p.last[videoID] = progress
	p.mu.Unlock()

	p.publish(videoID, ProgressEvent{VideoID: videoID, Progress: progress, Stage: stage})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.rdb.Set(ctx, progressKey(videoID), progress, progressTTL).Err(); err != nil {
		logger.Debug("Failed to store progress", "video_id", videoID, "error", err)
	}
}

func (p *RedisPublisher) Complete(videoID string, success bool) {
	p.forget(videoID)
	p.publish(videoID, CompleteEvent{VideoID: videoID, Success: success})
}

func (p *RedisPublisher) Error(videoID string, message string) {
	p.forget(videoID)
	p.publish(videoID, ErrorEvent{VideoID: videoID, Error: message})
}

// LatestProgress returns the last stored percentage for a video, or false
// when none is present (expired or never started).
func (p *RedisPublisher) LatestProgress(ctx context.Context, videoID string) (int, bool) {
	val, err := p.rdb.Get(ctx, progressKey(videoID)).Int()
	if err != nil {
		return 0, false
	}
	return val, true
}

func (p *RedisPublisher) publish(videoID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Debug("Failed to marshal progress event", "video_id", videoID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, eventsChannel(videoID), payload).Err(); err != nil {
		logger.Debug("Failed to publish progress event", "video_id", videoID, "error", err)
	}
}

func (p *RedisPublisher) forget(videoID string) {
	p.mu.Lock()
	delete(p.last, videoID)
	p.mu.Unlock()
}

// NopPublisher drops all events.
type NopPublisher struct{}

func (NopPublisher) Progress(string, int, string) {}
func (NopPublisher) Complete(string, bool)        {}
func (NopPublisher) Error(string, string)         {}

var _ Publisher = (*RedisPublisher)(nil)
var _ Publisher = NopPublisher{}

// Subscribe returns the raw pub/sub subscription for a video's event
// channel; callers own closing it.
func Subscribe(rdb *redis.Client, videoID string) *redis.PubSub {
	return rdb.Subscribe(context.Background(), eventsChannel(videoID))
}
