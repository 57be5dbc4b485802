package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth guards admin routes with a shared token. Clients send the token
// either as `Authorization: Bearer <token>` or in the `X-Admin-Token` header.
// An empty configured token disables the guard, which is the expected setup
// in local development.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-Admin-Token")
		if provided == "" {
			header := c.GetHeader("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				provided = strings.TrimPrefix(header, "Bearer ")
			}
		}

		if provided != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Unauthorized",
			})
			return
		}
		c.Next()
	}
}
