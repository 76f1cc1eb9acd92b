package models

import (
	"fmt"
	"time"

	"github.com/darshild078/ytvideo-chatbot/internal/transcript"
)

// Video is the persisted record for an analyzed video. `Indexed` is the
// single source of truth for query readiness: it flips to true only after
// every chunk is in the vector store, and back to false on any failure.
type Video struct {
	VideoID         string    `bson:"video_id" json:"videoId"`
	Title           string    `bson:"title" json:"title"`
	Description     string    `bson:"description,omitempty" json:"description,omitempty"`
	ChannelID       string    `bson:"channel_id,omitempty" json:"channelId,omitempty"`
	ChannelTitle    string    `bson:"channel_title,omitempty" json:"channelTitle,omitempty"`
	SubscriberCount uint64    `bson:"subscriber_count,omitempty" json:"subscriberCount,omitempty"`
	ViewCount       uint64    `bson:"view_count,omitempty" json:"viewCount,omitempty"`
	LikeCount       uint64    `bson:"like_count,omitempty" json:"likeCount,omitempty"`
	PublishedAt     time.Time `bson:"published_at,omitempty" json:"publishedAt,omitempty"`
	Duration        string    `bson:"duration,omitempty" json:"duration,omitempty"`
	ThumbnailURL    string    `bson:"thumbnail_url,omitempty" json:"thumbnailUrl,omitempty"`
	Indexed         bool      `bson:"indexed" json:"indexed"`
	ChunkCount      int       `bson:"chunk_count" json:"chunkCount"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updatedAt"`
}

// ContextText renders the stored metadata as the free-text block given
// to the answer-generation prompt.
func (v *Video) ContextText() string {
	if v == nil {
		return ""
	}
	published := "Unknown"
	if !v.PublishedAt.IsZero() {
		published = v.PublishedAt.Format("Jan 2, 2006")
	}
	return fmt.Sprintf("Video Title: %s\nChannel: %s\nSubscribers: %d\nViews: %d\nPublished: %s",
		v.Title, v.ChannelTitle, v.SubscriberCount, v.ViewCount, published)
}

// Transcript is the checkpoint of extracted segments, kept so the raw
// transcript can be served without re-hitting the sidecar.
type Transcript struct {
	VideoID   string               `bson:"video_id" json:"videoId"`
	Segments  []transcript.Segment `bson:"segments" json:"segments"`
	Language  string               `bson:"language" json:"language"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updatedAt"`
}

// AnalyzeRequest is the ingestion submission payload.
type AnalyzeRequest struct {
	URL string `json:"url" binding:"required"`
}
