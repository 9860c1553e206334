package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meverapp/media-gateway/internal/ratelimit"
)

// RateLimit charges every gated request against the tiered limiter, keyed
// by caller IP. isDownload decides which paths also pay the burst and
// sustained tiers. When skipFailed is set, a request whose upstream call
// failed (5xx response) gets its admission charge refunded.
func RateLimit(limiter *ratelimit.TieredLimiter, isDownload func(path string) bool, skipFailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ClientIdentity(c)
		download := isDownload(c.Request.URL.Path)

		dec := limiter.Check(id.IP, download)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", dec.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", dec.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", dec.ResetAt.Unix()))
		c.Header("X-RateLimit-Tier", dec.Tier)

		if !dec.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(dec.RetryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later.",
				"tier":  dec.Tier,
			})
			c.Abort()
			return
		}

		c.Next()

		if skipFailed && c.Writer.Status() >= http.StatusInternalServerError {
			limiter.Refund(id.IP, download)
		}
	}
}
