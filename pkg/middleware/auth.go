package middleware

import (
	"strings"

	"ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthCookieName is the session cookie set on login/register and refreshed
// by /auth/me. Browser tabs share it, which is why a broadcast logout must
// force every tab back to the login view.
const AuthCookieName = "auth"

// TokenFromRequest extracts the session token from the auth cookie, falling
// back to an Authorization bearer header for non-browser clients.
func TokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(AuthCookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

// JWTAuthMiddleware checks that the request has a valid session token and
// adds the claims to the context
func JWTAuthMiddleware(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Not authenticated"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid session token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Not authenticated"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userId", claims.UserID)
		c.Set("email", claims.Email)

		c.Next()
	}
}

// UserID returns the authenticated user id set by JWTAuthMiddleware
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userId")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
