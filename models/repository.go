package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/darshild078/ytvideo-chatbot/internal/transcript"
)

var ErrNotFound = errors.New("not found")

// Repository wraps the Mongo collections used by the pipeline. It is the
// only place that touches persisted video, transcript and chat state.
type Repository struct {
	videos      *mongo.Collection
	transcripts *mongo.Collection
	chats       *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		videos:      db.Collection("videos"),
		transcripts: db.Collection("transcripts"),
		chats:       db.Collection("chat_history"),
	}
}

// FindVideo returns the persisted record, or ErrNotFound.
func (r *Repository) FindVideo(ctx context.Context, videoID string) (*Video, error) {
	var video Video
	err := r.videos.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&video)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// CreatePlaceholder inserts a stub record for a newly submitted video so
// status queries resolve before the job runs. Idempotent on video_id.
func (r *Repository) CreatePlaceholder(ctx context.Context, videoID string) error {
	now := time.Now()
	_, err := r.videos.UpdateOne(ctx,
		bson.M{"video_id": videoID},
		bson.M{
			"$setOnInsert": bson.M{
				"video_id":    videoID,
				"title":       "Video " + videoID,
				"indexed":     false,
				"chunk_count": 0,
				"created_at":  now,
				"updated_at":  now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// MarkIndexed upserts the full metadata with indexed=true and the final
// chunk count. Called exactly once, at the end of a fully successful job.
func (r *Repository) MarkIndexed(ctx context.Context, video *Video) error {
	video.Indexed = true
	video.UpdatedAt = time.Now()
	_, err := r.videos.UpdateOne(ctx,
		bson.M{"video_id": video.VideoID},
		bson.M{
			"$set": bson.M{
				"title":            video.Title,
				"description":      video.Description,
				"channel_id":       video.ChannelID,
				"channel_title":    video.ChannelTitle,
				"subscriber_count": video.SubscriberCount,
				"view_count":       video.ViewCount,
				"like_count":       video.LikeCount,
				"published_at":     video.PublishedAt,
				"duration":         video.Duration,
				"thumbnail_url":    video.ThumbnailURL,
				"indexed":          true,
				"chunk_count":      video.ChunkCount,
				"updated_at":       video.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": video.UpdatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// MarkUnindexed flips the video to the not-indexed state and clears the
// chunk count. Idempotent and safe when the record does not exist yet, so
// a failure at any stage leaves no partial "indexed" state behind.
func (r *Repository) MarkUnindexed(ctx context.Context, videoID string) error {
	now := time.Now()
	_, err := r.videos.UpdateOne(ctx,
		bson.M{"video_id": videoID},
		bson.M{
			"$set": bson.M{"indexed": false, "chunk_count": 0, "updated_at": now},
			"$setOnInsert": bson.M{
				"video_id":   videoID,
				"title":      "Video " + videoID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// ListUnindexed returns ids of videos currently not indexed. The sweeper
// uses this to clear orphaned vectors left by failed jobs.
func (r *Repository) ListUnindexed(ctx context.Context) ([]string, error) {
	cursor, err := r.videos.Find(ctx, bson.M{"indexed": false})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var video Video
		if err := cursor.Decode(&video); err != nil {
			continue
		}
		ids = append(ids, video.VideoID)
	}
	return ids, cursor.Err()
}

// SaveTranscript checkpoints the extracted segments.
func (r *Repository) SaveTranscript(ctx context.Context, videoID string, segments []transcript.Segment, language string) error {
	_, err := r.transcripts.UpdateOne(ctx,
		bson.M{"video_id": videoID},
		bson.M{"$set": bson.M{
			"video_id":   videoID,
			"segments":   segments,
			"language":   language,
			"updated_at": time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// FindTranscript returns the stored transcript, or ErrNotFound.
func (r *Repository) FindTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	var doc Transcript
	err := r.transcripts.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AppendChat pushes messages onto the per-session conversation, creating
// it on first use.
func (r *Repository) AppendChat(ctx context.Context, videoID, sessionID string, messages []ChatMessage) error {
	now := time.Now()
	_, err := r.chats.UpdateOne(ctx,
		bson.M{"video_id": videoID, "session_id": sessionID},
		bson.M{
			"$push":        bson.M{"messages": bson.M{"$each": messages}},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"video_id": videoID, "session_id": sessionID, "created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// FindChat returns a session's conversation; a missing session yields an
// empty history, not an error.
func (r *Repository) FindChat(ctx context.Context, videoID, sessionID string) (*ChatHistory, error) {
	var history ChatHistory
	err := r.chats.FindOne(ctx, bson.M{"video_id": videoID, "session_id": sessionID}).Decode(&history)
	if err == mongo.ErrNoDocuments {
		return &ChatHistory{VideoID: videoID, SessionID: sessionID, Messages: []ChatMessage{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &history, nil
}

// ListChats returns conversations matching the optional filters, newest
// first, for export.
func (r *Repository) ListChats(ctx context.Context, videoID, sessionID string, limit int) ([]ChatHistory, error) {
	filter := bson.M{}
	if videoID != "" {
		filter["video_id"] = videoID
	}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}

	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.chats.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	histories := make([]ChatHistory, 0)
	if err := cursor.All(ctx, &histories); err != nil {
		return nil, err
	}
	return histories, nil
}
