package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/coordinator"
	"github.com/alexchen1337/SpeakWell/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development; restrict in production
	},
}

// WebSocketHandler streams watch updates to clients in real time.
type WebSocketHandler struct {
	manager *coordinator.Manager
	logger  *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(manager *coordinator.Manager, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{manager: manager, logger: logger}
}

// Stream handles GET /api/v1/watches/:id/stream (WebSocket upgrade)
func (h *WebSocketHandler) Stream(c *gin.Context) {
	audioID := c.Param("id")
	coord, err := h.manager.Get(audioID)
	if err != nil {
		if errors.Is(err, domain.ErrWatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Watch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("audio_id", audioID))

	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	// Send the current snapshot first so clients never start blind.
	snapshot := coord.Snapshot()
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}
	if isFinal(snapshot.State) {
		return
	}

	for update := range updates {
		if err := conn.WriteJSON(update); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			return
		}

		// Stop streaming once the watch reaches a final state
		if isFinal(update.State) {
			h.logger.Debug("Watch reached final state, closing WebSocket", zap.String("audio_id", audioID))
			return
		}
	}
}

func isFinal(s coordinator.State) bool {
	return s == coordinator.StateSettled || s == coordinator.StateFailed || s == coordinator.StateNotFound
}
