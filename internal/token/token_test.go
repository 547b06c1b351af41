package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndDecode(t *testing.T) {
	svc := NewService(10 * time.Minute)

	payload, encoded, err := svc.Issue("session-1", "MG Road", "Koramangala", 20)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)
	assert.NotEmpty(t, payload.TokenID)
	assert.Equal(t, "session-1", payload.SessionID)
	assert.Equal(t, payload.IssuedAt.Add(10*time.Minute), payload.ExpiresAt)

	decoded, err := svc.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload.TokenID, decoded.TokenID)
	assert.Equal(t, "MG Road", decoded.OriginLabel)
	assert.Equal(t, "Koramangala", decoded.DestinationLabel)
	assert.Equal(t, 20.0, decoded.FareAmount)
}

func TestDecode_MalformedEncoding(t *testing.T) {
	svc := NewService(0)

	_, err := svc.Decode("not base64 at all!!")
	assert.ErrorIs(t, err, ErrMalformedEncoding)
}

func TestDecode_MalformedContents(t *testing.T) {
	svc := NewService(0)

	garbage := base64.RawURLEncoding.EncodeToString([]byte("{truncated"))
	_, err := svc.Decode(garbage)
	assert.ErrorIs(t, err, ErrMalformedContents)
}

func TestDecode_MissingFields(t *testing.T) {
	svc := NewService(0)

	// Valid JSON, but no session or token id.
	empty := base64.RawURLEncoding.EncodeToString([]byte(`{"fare_amount":20}`))
	_, err := svc.Decode(empty)
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestDecode_Expired(t *testing.T) {
	now := time.Now().UTC()
	svc := NewService(time.Minute).WithClock(func() time.Time { return now })

	_, encoded, err := svc.Issue("session-1", "A", "B", 20)
	require.NoError(t, err)

	// Advance past the ttl.
	svc.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = svc.Decode(encoded)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDecode_NeverReturnsPayloadWithError(t *testing.T) {
	svc := NewService(0)

	for _, input := range []string{"", "!!!", base64.RawURLEncoding.EncodeToString([]byte("[]"))} {
		payload, err := svc.Decode(input)
		assert.Error(t, err)
		assert.Nil(t, payload)
	}
}

func TestNewService_ZeroTTLUsesDefault(t *testing.T) {
	svc := NewService(0)

	payload, _, err := svc.Issue("session-1", "A", "B", 20)
	require.NoError(t, err)
	assert.Equal(t, payload.IssuedAt.Add(DefaultTTL), payload.ExpiresAt)
}
