package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tablohq/backupd/internal/api/dto"
)

const (
	AuthHeaderKey  = "Authorization"
	AuthContextKey = "auth"
)

// TokenClaims are the claims backupd consumes from platform-issued tokens.
// Token issuance lives in the platform's auth service; this middleware only
// validates.
type TokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates HS256 bearer tokens against the shared secret.
func AuthMiddleware(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			unauthorized(c, "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'")
			return
		}

		claims := &TokenClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(AuthContextKey, claims)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
		Code:    http.StatusUnauthorized,
	})
	c.Abort()
}

// GetAuthClaims retrieves validated claims from the request context.
func GetAuthClaims(c *gin.Context) (*TokenClaims, bool) {
	claims, exists := c.Get(AuthContextKey)
	if !exists {
		return nil, false
	}
	tokenClaims, ok := claims.(*TokenClaims)
	return tokenClaims, ok
}

// UserEmail returns the authenticated user's email, or nil for requests
// authenticated without one (or test routes registered without auth).
func UserEmail(c *gin.Context) *string {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.Email == "" {
		return nil
	}
	return &claims.Email
}
