package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meverapp/media-gateway/internal/appconfig"
)

type AppConfigHandler struct {
	store *appconfig.Store
}

func NewAppConfigHandler(store *appconfig.Store) *AppConfigHandler {
	return &AppConfigHandler{store: store}
}

// Get serves the current document plus the live weekday. Public: clients
// check maintenance and version status here before anything else.
func (h *AppConfigHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Read())
}

// Update merges a partial document and echoes the result. Admin only.
func (h *AppConfigHandler) Update(c *gin.Context) {
	var partial appconfig.Partial
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config payload"})
		return
	}

	doc, err := h.store.Update(partial)
	if err != nil {
		if errors.Is(err, appconfig.ErrInvalidDay) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save config"})
		return
	}

	c.JSON(http.StatusOK, doc)
}
