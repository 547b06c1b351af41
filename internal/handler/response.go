package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebroker/internal/repository"
	"ridebroker/internal/service"
	"ridebroker/internal/token"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrOfferNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Ownership errors
	case errors.Is(err, service.ErrNotSessionOwner),
		errors.Is(err, service.ErrNotSelectedDriver):
		return http.StatusForbidden

	// State conflicts
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrSessionNotAcceptingOffers),
		errors.Is(err, service.ErrSessionNotInDiscovery),
		errors.Is(err, service.ErrNoFurtherWaves),
		errors.Is(err, service.ErrOfferNotPending),
		errors.Is(err, service.ErrOfferExpired),
		errors.Is(err, service.ErrOfferSessionMismatch):
		return http.StatusConflict

	// QR token errors
	case errors.Is(err, token.ErrMalformedEncoding),
		errors.Is(err, token.ErrMalformedContents),
		errors.Is(err, token.ErrMissingFields):
		return http.StatusBadRequest
	case errors.Is(err, token.ErrExpired):
		return http.StatusGone

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidOwnerID),
		errors.Is(err, service.ErrInvalidSessionID),
		errors.Is(err, service.ErrInvalidOfferID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidOriginLocation),
		errors.Is(err, service.ErrInvalidDestinationLocation),
		errors.Is(err, service.ErrInvalidFareAmount),
		errors.Is(err, service.ErrInvalidRequestType),
		errors.Is(err, service.ErrMissingTargetDriver),
		errors.Is(err, service.ErrInvalidOfferType),
		errors.Is(err, service.ErrInvalidOfferAmount):
		return http.StatusBadRequest

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
