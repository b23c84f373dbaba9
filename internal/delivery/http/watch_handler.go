package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/coordinator"
	"github.com/alexchen1337/SpeakWell/internal/domain"
)

// WatchHandler handles HTTP requests for transcription watches.
type WatchHandler struct {
	manager *coordinator.Manager
	logger  *zap.Logger
}

// NewWatchHandler creates a new WatchHandler.
func NewWatchHandler(manager *coordinator.Manager, logger *zap.Logger) *WatchHandler {
	return &WatchHandler{manager: manager, logger: logger}
}

type createWatchRequest struct {
	AudioID string `json:"audio_id" binding:"required"`
}

type initiateGradingRequest struct {
	RubricID        string `json:"rubric_id" binding:"required"`
	ReplaceExisting bool   `json:"replace_existing"`
}

// List handles GET /api/v1/watches
func (h *WatchHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"watches": h.manager.Snapshots()})
}

// Create handles POST /api/v1/watches
func (h *WatchHandler) Create(c *gin.Context) {
	var req createWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	coord, err := h.manager.Watch(c.Request.Context(), req.AudioID)
	if err != nil {
		h.writeError(c, err, req.AudioID)
		return
	}

	c.JSON(http.StatusCreated, coord.Snapshot())
}

// GetByID handles GET /api/v1/watches/:id
func (h *WatchHandler) GetByID(c *gin.Context) {
	coord, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	c.JSON(http.StatusOK, coord.Snapshot())
}

// Delete handles DELETE /api/v1/watches/:id
func (h *WatchHandler) Delete(c *gin.Context) {
	if err := h.manager.Unwatch(c.Param("id")); err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	c.Status(http.StatusNoContent)
}

// Retry handles POST /api/v1/watches/:id/retry
func (h *WatchHandler) Retry(c *gin.Context) {
	coord, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	if err := coord.RetryTranscription(c.Request.Context()); err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	c.JSON(http.StatusAccepted, coord.Snapshot())
}

// InitiateGrading handles POST /api/v1/watches/:id/gradings
func (h *WatchHandler) InitiateGrading(c *gin.Context) {
	var req initiateGradingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	coord, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	job, err := coord.InitiateGrading(c.Request.Context(), req.RubricID, req.ReplaceExisting)
	if err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	c.JSON(http.StatusCreated, job)
}

// DeleteGrading handles DELETE /api/v1/watches/:id/gradings/:gradingId
func (h *WatchHandler) DeleteGrading(c *gin.Context) {
	coord, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	if err := coord.DeleteGrading(c.Request.Context(), c.Param("gradingId")); err != nil {
		h.writeError(c, err, c.Param("id"))
		return
	}

	c.Status(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP status codes.
func (h *WatchHandler) writeError(c *gin.Context, err error, audioID string) {
	var rejected *domain.RejectedError
	switch {
	case errors.Is(err, domain.ErrWatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Watch not found"})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, domain.ErrTranscriptNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "Transcript is not completed yet"})
	case errors.Is(err, domain.ErrTornDown):
		c.JSON(http.StatusConflict, gin.H{"error": "Watch has been torn down"})
	case errors.As(err, &rejected):
		c.JSON(rejected.StatusCode, gin.H{"error": rejected.Message})
	case domain.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Grading API temporarily unavailable"})
	default:
		h.logger.Error("Watch operation failed", zap.Error(err), zap.String("audio_id", audioID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
