package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/service"
)

const userIDKey = "user_id"

// RequireAuth validates the session token and aborts unauthenticated
// requests. The token comes from the auth cookie or a Bearer header.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := resolveCaller(c, authService)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuth resolves the caller identity when a valid token is
// present and stays silent otherwise. Used on public routes that behave
// differently for signed-in users.
func OptionalAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := resolveCaller(c, authService); ok {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

func resolveCaller(c *gin.Context, authService *service.AuthService) (uuid.UUID, bool) {
	token := ""

	if cookie, err := c.Cookie("token"); err == nil {
		token = cookie
	}
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return uuid.Nil, false
	}

	claims, err := authService.ValidateToken(token)
	if err != nil {
		return uuid.Nil, false
	}

	idClaim, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(idClaim)
	if err != nil {
		return uuid.Nil, false
	}

	return userID, true
}

// CallerID returns the authenticated caller, or nil for anonymous
// requests.
func CallerID(c *gin.Context) *uuid.UUID {
	value, exists := c.Get(userIDKey)
	if !exists {
		return nil
	}

	userID, ok := value.(uuid.UUID)
	if !ok {
		return nil
	}

	return &userID
}
