package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meverapp/media-gateway/internal/models"
	"github.com/meverapp/media-gateway/internal/service"
)

// UsageRecorder emits one usage record per API request after the response
// is written. Recording is best-effort; a full buffer or a dead sink never
// touches the response path.
func UsageRecorder(usage *service.UsageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if usage == nil || !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			return
		}

		id := ClientIdentity(c)
		usage.Record(models.UsageRecord{
			Timestamp:      start,
			Endpoint:       strings.TrimPrefix(c.Request.URL.Path, "/api/"),
			ClientIP:       id.IP,
			AppID:          id.AppID,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
		})
	}
}
