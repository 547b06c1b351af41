package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebroker/internal/service"
)

// TokenHandler handles QR credential resolution.
type TokenHandler struct {
	sessionService *service.SessionService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(sessionService *service.SessionService) *TokenHandler {
	return &TokenHandler{sessionService: sessionService}
}

// ResolveTokenRequest is the HTTP request body for resolving a scanned
// QR credential.
type ResolveTokenRequest struct {
	Token string `json:"token"`
}

// ResolveTokenResponse is the display-only session view a scan yields.
type ResolveTokenResponse struct {
	SessionID        string  `json:"session_id"`
	Status           string  `json:"status"`
	OriginLabel      string  `json:"origin_label"`
	DestinationLabel string  `json:"destination_label"`
	FareAmount       float64 `json:"fare_amount"`
}

// ResolveToken handles POST /v1/tokens/resolve
func (h *TokenHandler) ResolveToken(c *gin.Context) {
	var req ResolveTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	summary, err := h.sessionService.ResolveToken(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, ResolveTokenResponse{
		SessionID:        summary.SessionID,
		Status:           summary.Status,
		OriginLabel:      summary.OriginLabel,
		DestinationLabel: summary.DestinationLabel,
		FareAmount:       summary.FareAmount,
	})
}
