package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an issued QR token stays valid.
const DefaultTTL = 10 * time.Minute

// Decode failure modes. Callers need to tell these apart: a truncated
// scan, a forged payload and a stale token each get different UI.
var (
	ErrMalformedEncoding = errors.New("qr token: malformed encoding")
	ErrMalformedContents = errors.New("qr token: malformed contents")
	ErrMissingFields     = errors.New("qr token: missing required fields")
	ErrExpired           = errors.New("qr token: expired")
)

// Payload is the self-contained QR credential. It seeds a driver-side
// direct session lookup; it is not an authorization grant, so
// mutations still require the owning identity. The origin/destination
// labels and fare are display-only.
//
// The encoding is unsigned and client-decodable. Hardening to a
// server-verified signature is a prerequisite for production; see
// DESIGN.md.
type Payload struct {
	TokenID          string    `json:"token_id"`
	SessionID        string    `json:"session_id"`
	OriginLabel      string    `json:"origin_label"`
	DestinationLabel string    `json:"destination_label"`
	FareAmount       float64   `json:"fare_amount"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Service issues and validates QR tokens.
type Service struct {
	ttl time.Duration
	now func() time.Time
}

// NewService creates a token service. A zero ttl uses DefaultTTL.
func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{ttl: ttl, now: time.Now}
}

// WithClock overrides the time source. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue creates a payload for the session and returns it alongside its
// encoded form.
func (s *Service) Issue(sessionID, originLabel, destLabel string, fareAmount float64) (*Payload, string, error) {
	issued := s.now().UTC()
	p := &Payload{
		TokenID:          uuid.New().String(),
		SessionID:        sessionID,
		OriginLabel:      originLabel,
		DestinationLabel: destLabel,
		FareAmount:       fareAmount,
		IssuedAt:         issued,
		ExpiresAt:        issued.Add(s.ttl),
	}
	encoded, err := Encode(p)
	if err != nil {
		return nil, "", err
	}
	return p, encoded, nil
}

// Decode parses an encoded token and validates its expiry. Each failure
// mode yields its own sentinel error; a decode never panics and never
// returns a payload together with an error.
func (s *Service) Decode(encoded string) (*Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformedEncoding
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrMalformedContents
	}

	if p.TokenID == "" || p.SessionID == "" || p.IssuedAt.IsZero() || p.ExpiresAt.IsZero() {
		return nil, ErrMissingFields
	}

	if s.now().After(p.ExpiresAt) {
		return nil, ErrExpired
	}

	return &p, nil
}

// Encode serializes a payload to its transportable form.
func Encode(p *Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
