package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the cookie carrying the session ID.
const SessionCookieName = "session_id"

const contextKeyPrincipal = "principal"

// PrincipalFromContext returns the current principal set by RequireSession.
// The zero Principal means unauthenticated.
func PrincipalFromContext(c *gin.Context) Principal {
	v, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return Principal{}
	}
	p, ok := v.(Principal)
	if !ok {
		return Principal{}
	}
	return p
}

// RequireSession returns a middleware that checks for a valid session cookie
// and sets the current principal in context. If missing or invalid, responds
// with 401.
func RequireSession(sessions *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil || sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		p, ok := sessions.Get(c.Request.Context(), sessionID)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Set(contextKeyPrincipal, p)
		c.Next()
	}
}

// WithPrincipal returns a middleware that injects a fixed principal,
// bypassing session lookup. Used by tests and local tooling.
func WithPrincipal(p Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKeyPrincipal, p)
		c.Next()
	}
}
