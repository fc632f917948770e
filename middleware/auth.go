package middleware

import (
	"strings"

	"altotrafico-web/internal/auth"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

// SessionCookie carries the admin session token.
const SessionCookie = "admin_session"

type AuthMiddleware struct {
	tokens *auth.TokenIssuer
}

func NewAuthMiddleware(tokens *auth.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAdmin rejects requests without a valid, unrevoked session token.
func (a *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c)
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "No autorizado")
			c.Abort()
			return
		}

		claims, err := a.tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			utils.RespondWithError(c, 401, "session_expired", "Tu sesión ha expirado. Inicia sesión de nuevo.", nil)
			c.Abort()
			return
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("claims", claims)

		c.Next()
	}
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// GetClaims returns the claims stored by RequireAdmin.
func GetClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get("claims"); exists {
		if cl, ok := v.(*auth.Claims); ok {
			return cl
		}
	}
	return nil
}

// Helper function to get user ID from context
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func GetUsername(c *gin.Context) string {
	return c.GetString("username")
}
