package models

import "time"

// ChatMessage is one turn in a per-session conversation. Assistant turns
// carry the answer's primary timestamp and confidence for replay in the UI.
type ChatMessage struct {
	Role          string    `bson:"role" json:"role"` // "user" or "assistant"
	Content       string    `bson:"content" json:"content"`
	Timestamp     float64   `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	FormattedTime string    `bson:"formatted_time,omitempty" json:"formattedTime,omitempty"`
	Confidence    float64   `bson:"confidence,omitempty" json:"confidence,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
}

type ChatHistory struct {
	VideoID   string        `bson:"video_id" json:"videoId"`
	SessionID string        `bson:"session_id" json:"sessionId"`
	Messages  []ChatMessage `bson:"messages" json:"messages"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// QueryRequest is the question submission payload. SessionID is generated
// server-side when absent.
type QueryRequest struct {
	VideoID   string `json:"videoId" binding:"required"`
	Question  string `json:"question" binding:"required,min=1,max=2000"`
	SessionID string `json:"sessionId,omitempty"`
}

// ExportRequest selects chat history for export as JSON or XLSX.
type ExportRequest struct {
	Format    string `json:"format" binding:"required,oneof=json excel"`
	VideoID   string `json:"video_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}
