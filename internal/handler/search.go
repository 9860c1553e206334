package handler

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/meverapp/media-gateway/internal/appconfig"
	"github.com/meverapp/media-gateway/internal/forward"
)

// Session identifier the upstream meta endpoint expects on every call.
const metaSessionID = "bb286368-37d4-485d-9522-fb88ee8f92b4"

// Fallback queries used when an image search arrives without one.
var defaultImageQueries = []string{
	"nature wallpaper", "city skyline", "abstract art", "cute animals", "mountain sunrise",
}

type SearchHandler struct {
	engine *forward.Engine
	store  *appconfig.Store
}

func NewSearchHandler(engine *forward.Engine, store *appconfig.Store) *SearchHandler {
	return &SearchHandler{engine: engine, store: store}
}

// Meta proxies the text-search endpoint.
func (h *SearchHandler) Meta(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing q parameter"})
		return
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("session", metaSessionID)
	params.Set("lang", c.DefaultQuery("lang", "en"))

	Forward(c, h.engine, "meta", params)
}

// ImageSearch proxies the image search endpoint. It consults the feature
// config on every call; a missing query is substituted with a default one
// and the substitution is reported alongside the result.
func (h *SearchHandler) ImageSearch(c *gin.Context) {
	doc := h.store.Read()
	if !doc.HasFeature(appconfig.FeatureImageSearch) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image search is temporarily disabled"})
		return
	}

	q := c.Query("q")
	substituted := false
	if q == "" {
		q = defaultImageQueries[rand.Intn(len(defaultImageQueries))]
		substituted = true
	}

	params := url.Values{}
	params.Set("q", q)

	if !substituted {
		Forward(c, h.engine, "image", params)
		return
	}

	body, err := h.engine.Forward(c.Request.Context(), "image", params)
	if err != nil {
		WriteForwardError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"substituted_query": q,
		"result":            json.RawMessage(body),
	})
}
