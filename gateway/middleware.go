package gateway

import (
	"strings"

	"github.com/example/storefront/pkg/apperror"
	"github.com/example/storefront/pkg/auth"
	"github.com/gin-gonic/gin"
)

const (
	claimsKey         = "claims"
	bearerPrefix      = "Bearer "
	idempotencyHeader = "Idempotency-Key"
)

// authMiddleware verifies the bearer token and stores its claims on the
// context. Every failure is answered with 401.
func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := ""
		if strings.HasPrefix(header, bearerPrefix) {
			token = strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		}

		claims, err := g.service.Authenticate(c.Request.Context(), token)
		if err != nil {
			g.respondError(c, err)
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*auth.Claims)
	return claims
}

func (g *Gateway) requireUser(c *gin.Context) (string, bool) {
	claims := claimsFrom(c)
	if claims == nil || claims.UserID == "" {
		g.respondError(c, apperror.Unauthenticated("Invalid token"))
		return "", false
	}
	return claims.UserID, true
}
