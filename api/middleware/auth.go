package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectKey holds the JWT subject in the gin context.
const SubjectKey = "auth_subject"

// Auth guards routes with a bearer credential: either the static token or an
// HS256 JWT signed with secret carrying an expiry. With neither configured
// every request passes. The access_token query parameter is accepted for
// WebSocket clients.
func Auth(token, secret string) gin.HandlerFunc {
	if token == "" && secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	key := func(*jwt.Token) (any, error) { return []byte(secret), nil }

	return func(c *gin.Context) {
		cred := bearer(c)
		if cred == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		if token != "" && subtle.ConstantTimeCompare([]byte(cred), []byte(token)) == 1 {
			c.Next()
			return
		}
		if secret != "" {
			claims := &jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(cred, claims, key); err == nil {
				c.Set(SubjectKey, claims.Subject)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	}
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("access_token")
}
