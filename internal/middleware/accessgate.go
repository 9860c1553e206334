package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meverapp/media-gateway/internal/gate"
	"github.com/meverapp/media-gateway/internal/identity"
)

const identityKey = "client_identity"

// AccessGate resolves the caller identity and applies the allowlist
// decision before anything downstream runs. The denial body is deliberately
// generic so it reveals neither allowlist.
func AccessGate(g *gate.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity.FromRequest(c.Request)
		c.Set(identityKey, id)

		dec := g.Decide(id, c.Request.Method, c.Request.URL.Path)
		if !dec.Allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access denied",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ClientIdentity returns the identity resolved by AccessGate, resolving it
// on the spot for routes the gate does not cover.
func ClientIdentity(c *gin.Context) identity.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	return identity.FromRequest(c.Request)
}
