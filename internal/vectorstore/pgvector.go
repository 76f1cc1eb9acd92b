package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/darshild078/ytvideo-chatbot/internal/chunker"
)

// Match is a nearest-neighbor hit with its chunk metadata. Score is cosine
// similarity in [0,1]. VideoID is carried so callers can filter after an
// over-fetched search; the store itself does not pre-filter by video.
type Match struct {
	VideoID   string
	ChunkID   int
	Text      string
	StartTime float64
	EndTime   float64
	Tokens    int
	Score     float64
}

type Store struct {
	pool      *pgxpool.Pool
	tableName string
	vectorDim int
}

func NewStore(pool *pgxpool.Pool, tableName string, vectorDim int) *Store {
	if tableName == "" {
		tableName = "video_chunks"
	}
	if vectorDim == 0 {
		vectorDim = 768
	}
	return &Store{pool: pool, tableName: tableName, vectorDim: vectorDim}
}

// EnsureSchema enables the pgvector extension and creates the chunk table
// and its ANN index if missing. Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			video_id TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			start_time DOUBLE PRECISION NOT NULL,
			end_time DOUBLE PRECISION NOT NULL,
			tokens INTEGER NOT NULL,
			embedding vector(%d)
		)`, s.tableName, s.vectorDim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, s.tableName, s.tableName)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	createVideoIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_video_id_idx ON %s (video_id)`,
		s.tableName, s.tableName)
	if _, err := s.pool.Exec(ctx, createVideoIndex); err != nil {
		return fmt.Errorf("failed to create video index: %v", err)
	}

	return nil
}

// Upsert writes one record per chunk in a single transaction. Embeddings
// are index-aligned with chunks.
func (s *Store) Upsert(ctx context.Context, videoID string, chunks []chunker.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, video_id, chunk_id, text, start_time, end_time, tokens, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			tokens = EXCLUDED.tokens,
			embedding = EXCLUDED.embedding`, s.tableName)

	for i, chunk := range chunks {
		id := fmt.Sprintf("%s_chunk_%d", videoID, chunk.ChunkID)
		_, err = tx.Exec(ctx, stmt,
			id,
			videoID,
			chunk.ChunkID,
			chunk.Text,
			chunk.StartTime,
			chunk.EndTime,
			chunk.Tokens,
			pgvector.NewVector(embeddings[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %d: %v", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// Search returns the limit nearest chunks across all videos by cosine
// distance. Callers filter by video id and cap afterward; the broad fetch
// keeps the two-step retrieve-then-filter contract explicit.
func (s *Store) Search(ctx context.Context, embedding []float32, limit int) ([]Match, error) {
	query := fmt.Sprintf(`
		SELECT video_id, chunk_id, text, start_time, end_time, tokens,
		       1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.tableName)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %v", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.VideoID, &m.ChunkID, &m.Text, &m.StartTime, &m.EndTime, &m.Tokens, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %v", err)
		}
		if m.Score < 0 {
			m.Score = 0
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteVideo removes all records for a video. Used on ingestion failure
// and by the sweeper so no partial index survives a failed job.
func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE video_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, stmt, videoID); err != nil {
		return fmt.Errorf("failed to delete vectors for %s: %v", videoID, err)
	}
	return nil
}

// CountVideo reports the number of indexed chunks for a video.
func (s *Store) CountVideo(ctx context.Context, videoID string) (int, error) {
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE video_id = $1", s.tableName)
	var count int
	if err := s.pool.QueryRow(ctx, stmt, videoID).Scan(&count); err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}
