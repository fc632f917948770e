package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"altotrafico-web/internal/hubspot"
	"altotrafico-web/internal/logger"
	"altotrafico-web/internal/storage"
	"altotrafico-web/models"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

// BlogService is the blog backend the handlers need. *hubspot.Client implements it.
type BlogService interface {
	FetchPosts(ctx context.Context, limit, offset int) (*models.BlogPage, error)
	FetchPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	TestConnection(ctx context.Context, token string) models.ConnectionResult
	Sync(ctx context.Context) (int, error)
}

func SetupPublicRoutes(router *gin.Engine, store *storage.Store, blog BlogService) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	api.GET("/settings", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		settings, err := store.ReadSettings(ctx)
		if err != nil {
			logger.Error("read settings failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer la configuración", nil)
			return
		}
		// The webchat key is only served through /api/chat/config.
		settings.ChatAPIKey = ""
		c.JSON(http.StatusOK, settings)
	})

	api.GET("/chat/config", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		settings, err := store.ReadSettings(ctx)
		if err != nil {
			logger.Error("read settings failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer la configuración", nil)
			return
		}
		cfg := settings.ChatConfig()
		if !cfg.Usable() {
			c.JSON(http.StatusOK, models.ChatConfig{Enabled: false})
			return
		}
		c.JSON(http.StatusOK, cfg)
	})

	api.GET("/cases", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		data, err := store.ReadCases(ctx)
		if err != nil {
			logger.Error("read cases failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer los casos", nil)
			return
		}
		c.JSON(http.StatusOK, data)
	})

	api.GET("/footer-links", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		data, err := store.ReadFooterLinks(ctx)
		if err != nil {
			logger.Error("read footer links failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer los enlaces", nil)
			return
		}
		// Legal bodies are served one at a time from /api/legal/:slug.
		for i := range data.LegalLinks {
			data.LegalLinks[i].Content = ""
		}
		c.JSON(http.StatusOK, data)
	})

	api.GET("/legal/:slug", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		link, err := store.ReadFooterLinkBySlug(ctx, c.Param("slug"))
		if errors.Is(err, storage.ErrNotFound) {
			utils.RespondWithNotFound(c, "Página no encontrada")
			return
		}
		if err != nil {
			logger.Error("read legal page failed", "error", err)
			utils.RespondWithInternalError(c, "Error al leer la página", nil)
			return
		}
		c.JSON(http.StatusOK, link)
	})

	api.GET("/blog", handleListPosts(blog))
	api.GET("/blog/:slug", handleGetPost(blog))
}

func handleListPosts(blog BlogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 20, 1, 100)
		offset := queryInt(c, "offset", 0, 0, 10000)

		ctx, cancel := utils.WithUpstreamTimeout(c.Request.Context())
		defer cancel()

		page, err := blog.FetchPosts(ctx, limit, offset)
		if errors.Is(err, hubspot.ErrNotConfigured) {
			c.JSON(http.StatusOK, models.BlogPage{Total: 0, Results: []models.BlogPost{}})
			return
		}
		if err != nil {
			logger.Error("fetch blog posts failed", "error", err)
			utils.RespondWithError(c, http.StatusBadGateway, "blog_unavailable", "Error al conectar con el servicio de blog", nil)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func handleGetPost(blog BlogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := hubspot.CleanSlug(c.Param("slug"))
		if slug == "" {
			utils.RespondWithNotFound(c, "Artículo no encontrado")
			return
		}

		ctx, cancel := utils.WithUpstreamTimeout(c.Request.Context())
		defer cancel()

		post, err := blog.FetchPostBySlug(ctx, slug)
		if errors.Is(err, hubspot.ErrPostNotFound) || errors.Is(err, hubspot.ErrNotConfigured) {
			utils.RespondWithNotFound(c, "Artículo no encontrado")
			return
		}
		if err != nil {
			logger.Error("fetch blog post failed", "slug", slug, "error", err)
			utils.RespondWithError(c, http.StatusBadGateway, "blog_unavailable", "Error al conectar con el servicio de blog", nil)
			return
		}
		c.JSON(http.StatusOK, post)
	}
}

func queryInt(c *gin.Context, key string, def, lo, hi int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return min(max(v, lo), hi)
}
