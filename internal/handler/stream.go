package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ridebroker/internal/bus"
	"ridebroker/internal/logging"
	"ridebroker/internal/middleware"
	"ridebroker/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin is allowed; identity still gates the subscription.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler serves the realtime session event stream over
// WebSocket. A client subscribes to one session and receives
// offer_inserted and status_changed events as JSON frames.
type StreamHandler struct {
	sessionService *service.SessionService
	eventBus       bus.Bus
	logger         *logging.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(sessionService *service.SessionService, eventBus bus.Bus, logger *logging.Logger) *StreamHandler {
	return &StreamHandler{sessionService: sessionService, eventBus: eventBus, logger: logger}
}

// Stream handles GET /v1/sessions/:id/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	sessionID := c.Param("id")

	// Same visibility rule as reads: owner or selected driver.
	if _, err := h.sessionService.Get(c.Request.Context(), middleware.CallerID(c), sessionID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			logging.String("session_id", sessionID), logging.Err(err))
		return
	}
	defer conn.Close()

	sub := h.eventBus.Subscribe(sessionID)
	defer sub.Unsubscribe()

	// Reader goroutine drains control frames and signals close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
