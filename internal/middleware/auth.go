package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// RequireMasterToken guards the administrative endpoints. The master token
// is compared in constant time and never logged.
func RequireMasterToken(masterToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractBearerToken(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		if masterToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(masterToken)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Master token required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
