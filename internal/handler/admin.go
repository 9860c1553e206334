package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meverapp/media-gateway/internal/service"
)

type AdminHandler struct {
	auth  *service.AuthService
	usage *service.UsageService
}

func NewAdminHandler(auth *service.AuthService, usage *service.UsageService) *AdminHandler {
	return &AdminHandler{auth: auth, usage: usage}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// AuthCheck lets the admin UI probe whether its token is still good.
func (h *AdminHandler) AuthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// UsageSummary reports aggregate usage over the last N hours (default 24).
func (h *AdminHandler) UsageSummary(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}

	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	summary, err := h.usage.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load usage summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
