package utils

import (
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/didip/tollbooth_gin"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware limits requests per client address on the
// credential-bearing endpoints.
func RateLimitMiddleware(cfg *RateLimitConfig) gin.HandlerFunc {
	lmt := tollbooth.NewLimiter(cfg.RequestsPerSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: cfg.TTL,
	})
	lmt.SetIPLookups([]string{"RemoteAddr"})
	lmt.SetMessageContentType("application/json; charset=utf-8")
	lmt.SetMessage(`{"error":"too many requests"}`)
	return tollbooth_gin.LimitHandler(lmt)
}
