package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"chinese-srs/internal/scheduler"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AnalysisCache is the advisory, short-TTL cache for the Performance
// Analyzer (component E, spec §4.E / §5: "tolerate staleness up to 5
// min"). A cache miss or Redis error is never fatal — Analyze() just
// recomputes, matching the teacher's tolerant-of-cache-failure posture in
// its rate limiter.
type AnalysisCache struct {
	client *redis.Client
}

// NewAnalysisCache wraps a Redis client as a scheduler.AnalysisCache.
func NewAnalysisCache(client *redis.Client) *AnalysisCache {
	return &AnalysisCache{client: client}
}

func analysisKey(userID uuid.UUID) string {
	return "scheduler:analysis:" + userID.String()
}

// Get implements scheduler.AnalysisCache.
func (c *AnalysisCache) Get(ctx context.Context, userID uuid.UUID) (*scheduler.Analysis, bool) {
	data, err := c.client.Get(ctx, analysisKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var a scheduler.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		log.Printf("⚠️ analysis cache: corrupt entry for user %s: %v", userID, err)
		return nil, false
	}
	return &a, true
}

// Set implements scheduler.AnalysisCache.
func (c *AnalysisCache) Set(ctx context.Context, userID uuid.UUID, analysis *scheduler.Analysis, ttl time.Duration) {
	data, err := json.Marshal(analysis)
	if err != nil {
		log.Printf("⚠️ analysis cache: failed to marshal for user %s: %v", userID, err)
		return
	}
	if err := c.client.Set(ctx, analysisKey(userID), data, ttl).Err(); err != nil {
		log.Printf("⚠️ analysis cache: failed to set for user %s: %v", userID, err)
	}
}
