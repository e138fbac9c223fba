package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/expensit/auth"
	"github.com/poiesic/expensit/core"
)

const claimsKey = "expensit.claims"

// requireAuth validates the bearer token and stores the verified claims
// on the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, err := s.auth.Verify(parts[1])
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "expired token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireAdmin gates the admin surface. Must run after requireAuth.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claimsFrom(c).Role != core.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// claimsFrom returns the verified claims set by requireAuth.
func claimsFrom(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}
