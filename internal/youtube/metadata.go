package youtube

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// VideoMetadata is the subset of YouTube Data API fields persisted with a
// video and fed to the answer-generation stage as context.
type VideoMetadata struct {
	VideoID         string
	Title           string
	Description     string
	ChannelID       string
	ChannelTitle    string
	SubscriberCount uint64
	ViewCount       uint64
	LikeCount       uint64
	PublishedAt     time.Time
	Duration        string
	ThumbnailURL    string
}

type Client struct {
	service *youtube.Service
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing YOUTUBE_API_KEY")
	}
	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &Client{service: service}, nil
}

// FetchMetadata loads video details plus the channel's subscriber count.
func (c *Client) FetchMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	videoResp, err := c.service.Videos.
		List([]string{"snippet", "statistics", "contentDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("YouTube API error: %w", err)
	}
	if len(videoResp.Items) == 0 {
		return nil, fmt.Errorf("video not found or is private")
	}

	item := videoResp.Items[0]
	meta := &VideoMetadata{
		VideoID:      videoID,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ChannelID:    item.Snippet.ChannelId,
		ChannelTitle: item.Snippet.ChannelTitle,
		Duration:     item.ContentDetails.Duration,
	}
	if item.Statistics != nil {
		meta.ViewCount = item.Statistics.ViewCount
		meta.LikeCount = item.Statistics.LikeCount
	}
	if published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
		meta.PublishedAt = published
	}
	if item.Snippet.Thumbnails != nil {
		if item.Snippet.Thumbnails.High != nil {
			meta.ThumbnailURL = item.Snippet.Thumbnails.High.Url
		} else if item.Snippet.Thumbnails.Default != nil {
			meta.ThumbnailURL = item.Snippet.Thumbnails.Default.Url
		}
	}

	// Subscriber count lives on the channel resource
	channelResp, err := c.service.Channels.
		List([]string{"statistics"}).
		Id(meta.ChannelID).
		Context(ctx).
		Do()
	if err == nil && len(channelResp.Items) > 0 && channelResp.Items[0].Statistics != nil {
		meta.SubscriberCount = channelResp.Items[0].Statistics.SubscriberCount
	}

	return meta, nil
}

// ContextText renders metadata as the free-text block given to the
// answer-generation prompt.
func (m *VideoMetadata) ContextText() string {
	if m == nil {
		return ""
	}
	published := "Unknown"
	if !m.PublishedAt.IsZero() {
		published = m.PublishedAt.Format("Jan 2, 2006")
	}
	return fmt.Sprintf("Video Title: %s\nChannel: %s\nSubscribers: %d\nViews: %d\nPublished: %s",
		m.Title, m.ChannelTitle, m.SubscriberCount, m.ViewCount, published)
}
