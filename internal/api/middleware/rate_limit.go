package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/pkg/redis"
	"github.com/taksh05/Assignment-Portal/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// scope 区分不同限额的路由组（如 auth 与 api），同一 IP 在各组内独立计数
// rdb 为 nil 或 Redis 出错时降级放行
func RateLimit(rdb *redis.Client, scope string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		key := "rate_limit:" + scope + ":" + c.ClientIP()
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("限流检查失败，降级放行", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

