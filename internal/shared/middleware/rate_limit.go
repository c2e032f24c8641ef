package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"repairshop-backend/internal/shared/response"
	"repairshop-backend/pkg/cache"
	"repairshop-backend/pkg/logger"
)

// RateLimit giới hạn số request mỗi IP trong một cửa sổ thời gian.
// Dùng cho preview endpoint - mỗi lần khách gõ mã là một request.
//
// Fixed-window counter trên Redis: INCR + EXPIRE lần đầu. Redis lỗi thì
// cho qua - rate limit là lớp bảo vệ, không phải điều kiện sống còn.
func RateLimit(cacheClient cache.Cache, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), c.ClientIP())

		count, err := cacheClient.Increment(c.Request.Context(), key)
		if err != nil {
			logger.Error("rate limit increment thất bại, cho request qua", err)
			c.Next()
			return
		}

		if count == 1 {
			if err := cacheClient.Expire(c.Request.Context(), key, window); err != nil {
				logger.Error("rate limit expire thất bại", err)
			}
		}

		if count > limit {
			response.TooManyRequests(c, "Quá nhiều request, vui lòng thử lại sau")
			c.Abort()
			return
		}

		c.Next()
	}
}
