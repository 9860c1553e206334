package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meverapp/media-gateway/internal/forward"
)

// DownloadEndpoints are the media extraction endpoints exposed under /api.
// These are the "download" class for rate limiting purposes.
var DownloadEndpoints = []string{
	"facebook", "instagram", "tiktok", "twitter", "pinterest",
	"spotify", "terabox", "threads", "generic-video", "youtube",
}

// upstreamNames maps gateway endpoint names to the upstream's short names.
var upstreamNames = map[string]string{
	"facebook":      "fb",
	"instagram":     "ig",
	"generic-video": "savefrom",
}

// IsDownloadPath reports whether a request path belongs to a download
// endpoint.
func IsDownloadPath(path string) bool {
	for _, ep := range DownloadEndpoints {
		if path == "/api/"+ep {
			return true
		}
	}
	return false
}

type DownloadHandler struct {
	engine *forward.Engine
}

func NewDownloadHandler(engine *forward.Engine) *DownloadHandler {
	return &DownloadHandler{engine: engine}
}

// Handle returns the gin handler for one download endpoint.
func (h *DownloadHandler) Handle(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mediaURL := c.Query("url")
		if mediaURL == "" || !strings.HasPrefix(mediaURL, "http") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing url parameter"})
			return
		}

		params := url.Values{}
		params.Set("url", mediaURL)

		if endpoint == "youtube" {
			mediaType := c.DefaultQuery("type", "video")
			if mediaType != "video" && mediaType != "audio" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "type must be video or audio"})
				return
			}
			params.Set("type", mediaType)

			if quality := c.Query("quality"); quality != "" {
				params.Set("quality", quality)
			}
		}

		Forward(c, h.engine, upstreamName(endpoint), params)
	}
}

func upstreamName(endpoint string) string {
	if name, ok := upstreamNames[endpoint]; ok {
		return name
	}
	return endpoint
}

// Forward runs the engine and writes the upstream body, or a translated
// error, to the client.
func Forward(c *gin.Context, engine *forward.Engine, endpoint string, params url.Values) {
	body, err := engine.Forward(c.Request.Context(), endpoint, params)
	if err != nil {
		WriteForwardError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", body)
}

// WriteForwardError translates an engine error into a client response.
// Details never include the credential or the upstream URL.
func WriteForwardError(c *gin.Context, err error) {
	if errors.Is(err, forward.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API key configuration error"})
		return
	}

	var terr *forward.TerminalError
	if errors.As(err, &terr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch data from upstream",
			"details": terr.Detail,
		})
		return
	}

	var rerr *forward.RetriesExhaustedError
	if errors.As(err, &rerr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "Failed to fetch data from upstream",
			"details":  rerr.Detail,
			"attempts": rerr.Attempts,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data from upstream"})
}
