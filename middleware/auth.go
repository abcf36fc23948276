package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stock-ledger/auth"
	"stock-ledger/models"
)

const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
	RoleKey     = "role"
)

// JWTAuth rejects requests without a valid bearer token and stores the
// token's user id, username and role on the context.
func JWTAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be a Bearer token"})
			return
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token",
				"details": err.Error(),
			})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after JWTAuth.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, _ := c.Get(RoleKey); got != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: " + string(role) + " role required"})
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) uint {
	return c.MustGet(UserIDKey).(uint)
}
