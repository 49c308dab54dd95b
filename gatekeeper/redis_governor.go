// Copyright 2026 AegisGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gatekeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"aegisgate/pipeline/shared/logger"
)

// RedisGovernor enforces rate limits across multiple pipeline instances
// with a Redis sliding window. Each request is a timestamped member of
// a per-key sorted set; members older than the window are pruned before
// counting. A Redis failure falls back to the local in-memory governor
// rather than failing the request path.
type RedisGovernor struct {
	client   *redis.Client
	fallback *Governor
	log      *logger.Logger
}

// NewRedisGovernor connects to Redis and verifies the connection.
// fallback must be non-nil; it takes over whenever Redis is unreachable.
func NewRedisGovernor(redisURL string, fallback *Governor) (*RedisGovernor, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisGovernor{
		client:   client,
		fallback: fallback,
		log:      logger.New("redis-governor"),
	}, nil
}

// Allow admits or rejects one request against the sliding window. The
// request's timestamp is added before counting, so a rejected request
// still occupies the window.
func (rg *RedisGovernor) Allow(ctx context.Context, identity, policyID string, rule RateLimitRule) (bool, time.Duration) {
	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s:%s", policyID, identity)

	pipe := rg.client.Pipeline()
	windowStart := now.Add(-rule.Window).UnixNano()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rule.Window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		rg.log.Warn(identity, "", "redis unavailable, using local window", map[string]interface{}{
			"error": err.Error(),
		})
		return rg.fallback.Allow(identity, policyID, rule)
	}

	if int(count.Val()) > rule.MaxRequests {
		oldest, err := rg.client.ZRangeWithScores(ctx, key, 0, 0).Result()
		retryAfter := rule.Window
		if err == nil && len(oldest) > 0 {
			oldestAt := time.Unix(0, int64(oldest[0].Score))
			retryAfter = oldestAt.Add(rule.Window).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return false, retryAfter
	}
	return true, 0
}

// Close releases the Redis connection.
func (rg *RedisGovernor) Close() error {
	return rg.client.Close()
}
