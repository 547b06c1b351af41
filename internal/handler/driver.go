package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridebroker/internal/geo"
	"ridebroker/internal/middleware"
	redisstore "ridebroker/internal/redis"
	"ridebroker/internal/repository"
)

const defaultInboxLimit = 50

// DriverHandler handles the driver-facing surface: the GEO presence
// feed and the durable notification inbox.
type DriverHandler struct {
	locations     redisstore.LocationStoreInterface
	notifications repository.NotificationRepository
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(locations redisstore.LocationStoreInterface, notifications repository.NotificationRepository) *DriverHandler {
	return &DriverHandler{locations: locations, notifications: notifications}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Wave      int    `json:"wave"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
}

// UpdateLocation handles PUT /v1/drivers/me/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !geo.ValidLatitude(req.Lat) || !geo.ValidLongitude(req.Lng) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid coordinates"})
		return
	}

	if err := h.locations.UpdateLocation(c.Request.Context(), middleware.CallerID(c), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveLocation handles DELETE /v1/drivers/me/location
func (h *DriverHandler) RemoveLocation(c *gin.Context) {
	if err := h.locations.RemoveLocation(c.Request.Context(), middleware.CallerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListNotifications handles GET /v1/drivers/me/notifications
func (h *DriverHandler) ListNotifications(c *gin.Context) {
	limit := defaultInboxLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	rows, err := h.notifications.ListByDriver(c.Request.Context(), middleware.CallerID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NotificationResponse, 0, len(rows))
	for _, n := range rows {
		response = append(response, NotificationResponse{
			ID:        n.ID,
			SessionID: n.SessionID,
			Kind:      string(n.Kind),
			Wave:      n.Wave,
			Message:   n.Message,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(c, http.StatusOK, response)
}
