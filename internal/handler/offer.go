package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridebroker/internal/domain"
	"ridebroker/internal/middleware"
	"ridebroker/internal/service"
)

// OfferHandler handles HTTP requests for the offer ledger.
type OfferHandler struct {
	offerService     *service.OfferService
	selectionService *service.SelectionService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerService *service.OfferService, selectionService *service.SelectionService) *OfferHandler {
	return &OfferHandler{offerService: offerService, selectionService: selectionService}
}

// SubmitOfferRequest is the HTTP request body for submitting an offer.
type SubmitOfferRequest struct {
	Type   string  `json:"type"` // accept or counter
	Amount float64 `json:"amount,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// SelectOfferRequest is the HTTP request body for accepting an offer.
type SelectOfferRequest struct {
	OfferID string `json:"offer_id"`
}

// OfferResponse is the HTTP representation of an offer.
type OfferResponse struct {
	ID              string  `json:"id"`
	SessionID       string  `json:"session_id"`
	DriverID        string  `json:"driver_id"`
	Type            string  `json:"type"`
	Amount          float64 `json:"amount,omitempty"`
	EffectiveAmount float64 `json:"effective_amount,omitempty"`
	Note            string  `json:"note,omitempty"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	ExpiresAt       string  `json:"expires_at"`
}

// SelectOfferResponse is the HTTP response for a committed selection.
type SelectOfferResponse struct {
	Session SessionResponse `json:"session"`
	Offer   OfferResponse   `json:"offer"`
}

// SubmitOffer handles POST /v1/sessions/:id/offers
func (h *OfferHandler) SubmitOffer(c *gin.Context) {
	var req SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	offer, err := h.offerService.Submit(c.Request.Context(), service.SubmitOfferInput{
		DriverID:  middleware.CallerID(c),
		SessionID: c.Param("id"),
		Type:      domain.OfferType(req.Type),
		Amount:    req.Amount,
		Note:      req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toOfferResponse(offer, 0))
}

// ListOffers handles GET /v1/sessions/:id/offers
func (h *OfferHandler) ListOffers(c *gin.Context) {
	all := c.Query("all") == "true"

	ranked, err := h.offerService.List(c.Request.Context(), middleware.CallerID(c), c.Param("id"), all)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OfferResponse, 0, len(ranked))
	for _, r := range ranked {
		response = append(response, toOfferResponse(r.Offer, r.EffectiveAmount))
	}
	respondJSON(c, http.StatusOK, response)
}

// SelectOffer handles POST /v1/sessions/:id/select
func (h *OfferHandler) SelectOffer(c *gin.Context) {
	var req SelectOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.selectionService.Select(c.Request.Context(), middleware.CallerID(c), c.Param("id"), req.OfferID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, SelectOfferResponse{
		Session: toSessionResponse(result.Session),
		Offer:   toOfferResponse(result.Offer, result.Session.FinalAmount),
	})
}

func toOfferResponse(o *domain.Offer, effectiveAmount float64) OfferResponse {
	return OfferResponse{
		ID:              o.ID,
		SessionID:       o.SessionID,
		DriverID:        o.DriverID,
		Type:            string(o.Type),
		Amount:          o.Amount,
		EffectiveAmount: effectiveAmount,
		Note:            o.Note,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		ExpiresAt:       o.ExpiresAt.Format(time.RFC3339),
	}
}
