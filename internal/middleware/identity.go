package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	userHeader       = "X-User-ID"
	guestTokenHeader = "X-Guest-Token"

	// CallerIDKey is the gin context key holding the authenticated
	// caller identity.
	CallerIDKey = "callerID"
)

// IdentityMiddleware resolves the caller identity. Authenticated users
// present X-User-ID; guests present the opaque X-Guest-Token minted at
// session creation time. Requests with neither are rejected. Identity
// verification itself happens at the gateway; this service trusts the
// forwarded headers.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(userHeader)
		if id == "" {
			if guest := c.GetHeader(guestTokenHeader); guest != "" {
				id = "guest:" + guest
			}
		}
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		c.Set(CallerIDKey, id)
		c.Next()
	}
}

// CallerID returns the identity set by IdentityMiddleware.
func CallerID(c *gin.Context) string {
	return c.GetString(CallerIDKey)
}
