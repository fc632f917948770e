package routes

import (
	"context"
	"errors"
	"net/http"

	"altotrafico-web/internal/hubspot"
	"altotrafico-web/internal/logger"
	"altotrafico-web/internal/queue"
	"altotrafico-web/internal/storage"
	"altotrafico-web/middleware"
	"altotrafico-web/models"
	"altotrafico-web/services"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

// AdminDeps are the collaborators of the admin API.
type AdminDeps struct {
	Store   *storage.Store
	Users   *services.UsersService
	Blog    BlogService
	Auditor *models.AuditLogger

	// Queue runs blog syncs in the worker. When nil, syncs run inline.
	Queue queue.Enqueuer
	// ChatTester overrides the webchat connection test.
	ChatTester ChatTester
}

// SetupAdminRoutes mounts the admin API under /api/admin. Every route requires
// an admin session; extra middleware (audit) runs after authentication.
func SetupAdminRoutes(router *gin.Engine, deps AdminDeps, authMiddleware *middleware.AuthMiddleware, extra ...gin.HandlerFunc) {
	admin := router.Group("/api/admin")
	admin.Use(authMiddleware.RequireAdmin())
	admin.Use(extra...)

	admin.GET("/settings", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		settings, err := deps.Store.ReadSettings(ctx)
		if err != nil {
			logger.Error("read settings failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer la configuración", nil)
			return
		}
		c.JSON(http.StatusOK, settings)
	})

	admin.PUT("/settings", saveDocument(services.ValidateSettings, deps.Store.WriteSettings))
	admin.GET("/footer-links", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		data, err := deps.Store.ReadFooterLinks(ctx)
		if err != nil {
			logger.Error("read footer links failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer los enlaces", nil)
			return
		}
		c.JSON(http.StatusOK, data)
	})
	admin.PUT("/footer-links", saveDocument(services.ValidateFooterLinks, deps.Store.WriteFooterLinks))
	admin.GET("/cases", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		data, err := deps.Store.ReadCases(ctx)
		if err != nil {
			logger.Error("read cases failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer los casos", nil)
			return
		}
		c.JSON(http.StatusOK, data)
	})
	admin.PUT("/cases", saveDocument(services.ValidateCases, deps.Store.WriteCases))

	admin.GET("/blog", handleAdminBlog(deps.Blog))
	admin.POST("/blog", handleBlogSync(deps.Blog, deps.Queue))

	hs := admin.Group("/hubspot-config")
	hs.GET("", handleHubSpotStatus(deps.Store))
	hs.PUT("", handleHubSpotSave(deps.Store, deps.Blog))
	hs.POST("", handleHubSpotTest(deps.Store, deps.Blog))
	hs.DELETE("", handleHubSpotDelete(deps.Store))

	admin.GET("/users", handleListUsers(deps.Users))
	admin.PUT("/users", handleUserAction(deps.Users))

	admin.POST("/chat/test", handleChatTest(deps.Store, deps.ChatTester))

	admin.GET("/audit", ListAuditLogs(deps.Auditor))
	admin.GET("/audit/verify", VerifyAuditChain(deps.Auditor))
	admin.GET("/audit/export", ExportAuditLogs(deps.Auditor))
}

// saveDocument validates the raw body and writes the cleaned document.
func saveDocument[T any](validate func([]byte) (T, error), write func(context.Context, T) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			utils.RespondWithBadRequest(c, "Datos inválidos", nil)
			return
		}
		doc, err := validate(raw)
		if err != nil {
			utils.RespondWithBadRequest(c, "Datos inválidos", nil)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := write(ctx, doc); err != nil {
			logger.Error("save document failed", "path", c.FullPath(), "error", err)
			_ = c.Error(err)
			utils.RespondWithInternalError(c, "Error al guardar", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func handleAdminBlog(blog BlogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithUpstreamTimeout(c.Request.Context())
		defer cancel()

		page, err := blog.FetchPosts(ctx, 20, 0)
		if errors.Is(err, hubspot.ErrNotConfigured) {
			utils.RespondWithBadRequest(c, "No hay token configurado", nil)
			return
		}
		if err != nil {
			logger.Error("fetch blog posts failed", "error", err)
			utils.RespondWithInternalError(c, "Error al conectar con el servicio de blog", nil)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func handleBlogSync(blog BlogService, q queue.Enqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q != nil {
			queued, err := queue.EnqueueBlogSync(c.Request.Context(), q, middleware.GetUsername(c), middleware.GetRequestID(c))
			if err == nil {
				c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": queued})
				return
			}
			logger.Warn("blog sync enqueue failed, running inline", "error", err)
		}

		ctx, cancel := utils.WithUpstreamTimeout(c.Request.Context())
		defer cancel()

		total, err := blog.Sync(ctx)
		if err != nil {
			logger.Error("blog sync failed", "error", err)
			_ = c.Error(err)
			utils.RespondWithInternalError(c, "Error al sincronizar", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "total": total})
	}
}

func handleHubSpotStatus(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		cfg, err := store.ReadHubSpotConfig(ctx)
		if err != nil {
			logger.Error("read hubspot config failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer la configuración", nil)
			return
		}
		c.JSON(http.StatusOK, models.HubSpotStatus{
			Configured:   cfg.AccessToken != "",
			TokenPreview: models.MaskToken(cfg.AccessToken),
		})
	}
}

// handleHubSpotSave tests a token against HubSpot and only stores it when it works.
func handleHubSpotSave(store *storage.Store, blog BlogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AccessToken string `json:"accessToken"`
		}
		_ = c.ShouldBindJSON(&req)

		token, err := services.ValidateHubSpotToken(req.AccessToken)
		if err != nil {
			utils.RespondWithBadRequest(c, "El token es requerido", nil)
			return
		}

		ctx, cancel := utils.WithUpstreamTimeout(c.Request.Context())
		defer cancel()

		result := blog.TestConnection(ctx, token)
		if !result.OK {
			msg := result.Error
			if msg == "" {
				msg = "Token inválido"
			}
			utils.RespondWithBadRequest(c, msg, nil)
			return
		}

		if err := store.WriteHubSpotConfig(ctx, models.HubSpotConfig{AccessToken: token}); err != nil {
			logger.Error("save hubspot config failed", "error", err)
			_ = c.Error(err)
			utils.RespondWithInternalError(c, "Error al guardar la configuración", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "total": result.Total})
	}
}

func handleHubSpotTest(store *storage.Store, blog BlogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithUpstreamTimeout(c.Request.Context())
		defer cancel()

		cfg, err := store.ReadHubSpotConfig(ctx)
		if err != nil {
			logger.Error("read hubspot config failed", "error", err)
			utils.RespondWithInternalError(c, "Error al probar la conexión", nil)
			return
		}
		if cfg.AccessToken == "" {
			utils.RespondWithBadRequest(c, "No hay token configurado", nil)
			return
		}
		c.JSON(http.StatusOK, blog.TestConnection(ctx, cfg.AccessToken))
	}
}

func handleHubSpotDelete(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := store.WriteHubSpotConfig(ctx, models.HubSpotConfig{}); err != nil {
			logger.Error("delete hubspot config failed", "error", err)
			_ = c.Error(err)
			utils.RespondWithInternalError(c, "Error al eliminar la configuración", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

var userErrorMessages = map[error]string{
	services.ErrMissingFields:  "Todos los campos son requeridos",
	services.ErrUsernameTaken:  "El nombre de usuario ya existe",
	services.ErrTooManyUsers:   "Máximo 10 usuarios permitidos",
	services.ErrUserIDRequired: "ID de usuario requerido",
	services.ErrUserNotFound:   "Usuario no encontrado",
	services.ErrInvalidAction:  "Acción inválida",
}

func handleListUsers(users *services.UsersService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, err := users.List(ctx)
		if err != nil {
			logger.Error("list users failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer los usuarios", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": list})
	}
}

func handleUserAction(users *services.UsersService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserAction
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, userErrorMessages[services.ErrInvalidAction], nil)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		err := users.Apply(ctx, req)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"success": true})
		case errors.Is(err, services.ErrLastUser):
			msg := "Debe haber al menos un usuario"
			if req.Action == "remove" {
				msg = "No puedes eliminar el último usuario"
			}
			utils.RespondWithBadRequest(c, msg, nil)
		case errors.Is(err, services.ErrUserNotFound):
			utils.RespondWithNotFound(c, userErrorMessages[services.ErrUserNotFound])
		default:
			for sentinel, msg := range userErrorMessages {
				if errors.Is(err, sentinel) {
					utils.RespondWithBadRequest(c, msg, nil)
					return
				}
			}
			logger.Error("user action failed", "action", req.Action, "error", err)
			_ = c.Error(err)
			utils.RespondWithInternalError(c, "Error al guardar", nil)
		}
	}
}
