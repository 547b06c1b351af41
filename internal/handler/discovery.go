package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebroker/internal/middleware"
	"ridebroker/internal/service"
)

// DiscoveryHandler handles HTTP requests for the wave engine.
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
}

// NewDiscoveryHandler creates a new DiscoveryHandler.
func NewDiscoveryHandler(discoveryService *service.DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{discoveryService: discoveryService}
}

// DiscoveryResponse reports the waves a discovery call ran.
type DiscoveryResponse struct {
	Waves []service.WaveResult `json:"waves"`
}

// StartDiscovery handles POST /v1/sessions/:id/discovery
func (h *DiscoveryHandler) StartDiscovery(c *gin.Context) {
	waves, err := h.discoveryService.Start(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DiscoveryResponse{Waves: waves})
}

// ExpandWave handles POST /v1/sessions/:id/discovery/expand
func (h *DiscoveryHandler) ExpandWave(c *gin.Context) {
	result, err := h.discoveryService.Expand(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DiscoveryResponse{Waves: []service.WaveResult{*result}})
}
