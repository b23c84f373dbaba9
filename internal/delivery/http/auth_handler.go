package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/authcache"
	"github.com/alexchen1337/SpeakWell/internal/domain"
)

// AuthHandler exposes the identity the service polls the grading API as.
type AuthHandler struct {
	cache  *authcache.Cache
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cache *authcache.Cache, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{cache: cache, logger: logger}
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.cache.CurrentUser(c.Request.Context())
	if err != nil {
		if domain.IsTransient(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Grading API temporarily unavailable"})
			return
		}
		h.logger.Error("Current user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}
