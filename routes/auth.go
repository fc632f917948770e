package routes

import (
	"errors"
	"net/http"
	"time"

	"altotrafico-web/internal/auth"
	"altotrafico-web/internal/logger"
	"altotrafico-web/middleware"
	"altotrafico-web/models"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes mounts login, logout and session under /api/auth.
// Extra middleware (audit) runs on the whole group.
func SetupAuthRoutes(
	router *gin.Engine,
	authenticator *auth.Authenticator,
	tokens *auth.TokenIssuer,
	authMiddleware *middleware.AuthMiddleware,
	secureCookies bool,
	extra ...gin.HandlerFunc,
) {
	group := router.Group("/api/auth")
	group.Use(extra...)

	group.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Datos inválidos", nil)
			return
		}

		id, err := authenticator.Authorize(c.Request.Context(), req.Username, req.Password, utils.GetClientIP(c.Request))
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Credenciales inválidas", nil)
			return
		}
		if err != nil {
			logger.Error("login failed", "error", err)
			utils.RespondWithInternalError(c, "Error al iniciar sesión", nil)
			return
		}

		token, exp, err := tokens.Issue(c.Request.Context(), *id)
		if err != nil {
			logger.Error("issue session token failed", "error", err)
			utils.RespondWithInternalError(c, "Error al iniciar sesión", nil)
			return
		}

		c.Set("user_id", id.ID)
		c.Set("username", id.Username)

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, token, int(time.Until(exp).Seconds()), "/", "", secureCookies, true)

		c.JSON(http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: exp, User: *id})
	})

	group.POST("/logout", func(c *gin.Context) {
		// Logout always succeeds; a missing or expired token has nothing to revoke.
		if tokenString := middleware.TokenFromRequest(c); tokenString != "" {
			if claims, err := tokens.Validate(c.Request.Context(), tokenString); err == nil {
				c.Set("user_id", claims.UserID)
				c.Set("username", claims.Username)
				if err := tokens.Revoke(c.Request.Context(), claims.ID); err != nil {
					logger.Warn("revoke session failed", "error", err)
				}
			}
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", secureCookies, true)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	group.GET("/session", authMiddleware.RequireAdmin(), func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"user":       claims.Identity(),
			"expires_at": claims.ExpiresAt.Time,
		})
	})
}
