package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// bearerToken pulls the token out of the Authorization header,
// accepting both "Bearer <token>" and a raw token
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// Middleware validates the JWT on every request and aborts with 401
// when it is missing or invalid. On success the user and user_id land
// in the Gin context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
			c.Abort()
			return
		}

		user, err := s.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// OptionalMiddleware populates the user context when valid
// credentials are present but lets anonymous requests through. Used
// on read endpoints where public feeds are visible without an
// account.
func (s *Service) OptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if user, err := s.ValidateToken(token); err == nil {
				c.Set("user", user)
				c.Set("user_id", user.ID)
			}
		}
		c.Next()
	}
}
