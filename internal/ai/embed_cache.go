package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
)

const embedCacheTTL = 15 * time.Minute

// CachedQueryEmbedder fronts query embedding with a short-lived Redis
// cache keyed by the question's SHA-256. Repeated or rephrased-identical
// questions skip the embedding API entirely. Cache failures fall through
// to the live call.
type CachedQueryEmbedder struct {
	inner *EmbeddingClient
	rdb   *redis.Client
}

func NewCachedQueryEmbedder(inner *EmbeddingClient, rdb *redis.Client) *CachedQueryEmbedder {
	return &CachedQueryEmbedder{inner: inner, rdb: rdb}
}

func embedCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:query:" + hex.EncodeToString(sum[:])
}

func (c *CachedQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := embedCacheKey(text)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var vector []float32
		if err := json.Unmarshal(raw, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
	}

	vector, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(vector); err == nil {
		if err := c.rdb.Set(ctx, key, raw, embedCacheTTL).Err(); err != nil {
			logger.Debug("Failed to cache query embedding", "error", err)
		}
	}
	return vector, nil
}
