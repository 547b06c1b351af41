package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridebroker/internal/domain"
	"ridebroker/internal/middleware"
	"ridebroker/internal/service"
)

// SessionHandler handles HTTP requests for ride sessions.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// PlaceRequest is a coordinate with a display label.
type PlaceRequest struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
	Name  string  `json:"name,omitempty"`
}

// CreateSessionRequest is the HTTP request body for creating a session.
type CreateSessionRequest struct {
	Origin         PlaceRequest    `json:"origin"`
	Destination    PlaceRequest    `json:"destination"`
	FareAmount     float64         `json:"fare_amount"`
	FareMetadata   json.RawMessage `json:"fare_metadata,omitempty"`
	RequestType    string          `json:"request_type"`
	TargetDriverID string          `json:"target_driver_id,omitempty"`
}

// CancelSessionRequest is the HTTP request body for cancelling a session.
type CancelSessionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SessionResponse is the HTTP representation of a session.
type SessionResponse struct {
	ID               string       `json:"id"`
	OwnerID          string       `json:"owner_id"`
	Origin           PlaceRequest `json:"origin"`
	Destination      PlaceRequest `json:"destination"`
	FareAmount       float64      `json:"fare_amount"`
	RequestType      string       `json:"request_type"`
	TargetDriverID   string       `json:"target_driver_id,omitempty"`
	Status           string       `json:"status"`
	Wave             int          `json:"wave"`
	SelectedDriverID string       `json:"selected_driver_id,omitempty"`
	SelectedOfferID  string       `json:"selected_offer_id,omitempty"`
	FinalAmount      float64      `json:"final_amount,omitempty"`
	CreatedAt        string       `json:"created_at"`
	CanceledAt       string       `json:"canceled_at,omitempty"`
	CancelReason     string       `json:"cancel_reason,omitempty"`
}

// CreateSessionResponse is the HTTP response for creating a session.
type CreateSessionResponse struct {
	Session SessionResponse `json:"session"`
	QRToken string          `json:"qr_token"`
}

// EventResponse is one audit trail entry.
type EventResponse struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	ActorID   string            `json:"actor_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// CreateSession handles POST /v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.sessionService.Create(c.Request.Context(), service.CreateSessionInput{
		OwnerID:        middleware.CallerID(c),
		Origin:         toPlace(req.Origin),
		Destination:    toPlace(req.Destination),
		FareAmount:     req.FareAmount,
		FareMetadata:   req.FareMetadata,
		RequestType:    domain.RequestType(req.RequestType),
		TargetDriverID: req.TargetDriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CreateSessionResponse{
		Session: toSessionResponse(result.Session),
		QRToken: result.QRToken,
	})
}

// GetSession handles GET /v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessionService.Get(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toSessionResponse(session))
}

// GetEvents handles GET /v1/sessions/:id/events
func (h *SessionHandler) GetEvents(c *gin.Context) {
	events, err := h.sessionService.Events(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]EventResponse, 0, len(events))
	for _, e := range events {
		response = append(response, EventResponse{
			ID:        e.ID,
			Type:      string(e.Type),
			ActorID:   e.ActorID,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// CancelSession handles POST /v1/sessions/:id/cancel
func (h *SessionHandler) CancelSession(c *gin.Context) {
	var req CancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.sessionService.Cancel(c.Request.Context(), middleware.CallerID(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toSessionResponse(session))
}

// ConfirmSession handles POST /v1/sessions/:id/confirm
func (h *SessionHandler) ConfirmSession(c *gin.Context) {
	session, err := h.sessionService.Confirm(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toSessionResponse(session))
}

// StartTrip handles POST /v1/sessions/:id/start
func (h *SessionHandler) StartTrip(c *gin.Context) {
	session, err := h.sessionService.StartTrip(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toSessionResponse(session))
}

// CompleteTrip handles POST /v1/sessions/:id/complete
func (h *SessionHandler) CompleteTrip(c *gin.Context) {
	session, err := h.sessionService.CompleteTrip(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toSessionResponse(session))
}

func toPlace(p PlaceRequest) domain.Place {
	return domain.Place{Lat: p.Lat, Lng: p.Lng, Label: p.Label, Name: p.Name}
}

func toSessionResponse(s *domain.RideSession) SessionResponse {
	resp := SessionResponse{
		ID:      s.ID,
		OwnerID: s.OwnerID,
		Origin: PlaceRequest{
			Lat: s.Origin.Lat, Lng: s.Origin.Lng, Label: s.Origin.Label,
		},
		Destination: PlaceRequest{
			Lat: s.Destination.Lat, Lng: s.Destination.Lng, Label: s.Destination.Label, Name: s.Destination.Name,
		},
		FareAmount:       s.FareAmount,
		RequestType:      string(s.RequestType),
		TargetDriverID:   s.TargetDriverID,
		Status:           string(s.Status),
		Wave:             s.Wave,
		SelectedDriverID: s.SelectedDriverID,
		SelectedOfferID:  s.SelectedOfferID,
		FinalAmount:      s.FinalAmount,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
	}
	if !s.CanceledAt.IsZero() {
		resp.CanceledAt = s.CanceledAt.Format(time.RFC3339)
		resp.CancelReason = s.CancelReason
	}
	return resp
}
