package cache

import (
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/bookwormhq/bookworm-service/internal/utils/response"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	RedisConnected bool     `json:"redis_connected"`
	CacheKeys      []string `json:"cache_keys_sample"`
	KeyCount       int      `json:"total_keys"`
}

// GetCacheStats returns cache performance statistics
// @Summary Get cache statistics
// @Description Inspect redis connectivity and a sample of cache keys
// @Tags admin
// @Produce json
// @Success 200 {object} CacheStats "Cache stats"
// @Security BearerAuth
// @Router /admin/cache/stats [get]
func GetCacheStats(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats := CacheStats{RedisConnected: true}

		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			stats.RedisConnected = false
			response.WriteJSON(w, http.StatusOK, stats)
			return
		}

		keys := redisClient.Keys(ctx, "feed:*")
		if keys.Err() == nil {
			stats.CacheKeys = keys.Val()
			if len(stats.CacheKeys) > 10 {
				stats.CacheKeys = stats.CacheKeys[:10]
			}
		}

		dbSize := redisClient.DBSize(ctx)
		if dbSize.Err() == nil {
			stats.KeyCount = int(dbSize.Val())
		}

		response.WriteJSON(w, http.StatusOK, stats)
	}
}
