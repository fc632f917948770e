package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"altotrafico-web/internal/logger"
	"altotrafico-web/internal/storage"
	"altotrafico-web/internal/webchat"
	"altotrafico-web/models"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

// ChatTester starts a throwaway session against a webchat API and returns its id.
type ChatTester func(ctx context.Context, apiURL, apiKey string) (string, error)

func pingWebchat(ctx context.Context, apiURL, apiKey string) (string, error) {
	return webchat.NewHTTPRemote(apiURL, apiKey).Ping(ctx)
}

// handleChatTest checks the webchat credentials in the body, or the saved ones
// when the body leaves them empty. A failed check is still a 200 with success=false.
func handleChatTest(store *storage.Store, tester ChatTester) gin.HandlerFunc {
	if tester == nil {
		tester = pingWebchat
	}
	return func(c *gin.Context) {
		var req struct {
			APIURL string `json:"apiUrl"`
			APIKey string `json:"apiKey"`
		}
		_ = c.ShouldBindJSON(&req)

		ctx, cancel := utils.WithUpstreamTimeout(c.Request.Context())
		defer cancel()

		cfg := models.ChatConfig{APIURL: strings.TrimSpace(req.APIURL), APIKey: strings.TrimSpace(req.APIKey)}
		if cfg.APIURL == "" || cfg.APIKey == "" {
			settings, err := store.ReadSettings(ctx)
			if err != nil {
				logger.Error("read settings failed", "error", err)
				utils.RespondWithInternalError(c, "Error al leer la configuración", nil)
				return
			}
			saved := settings.ChatConfig()
			if cfg.APIURL == "" {
				cfg.APIURL = saved.APIURL
			}
			if cfg.APIKey == "" {
				cfg.APIKey = saved.APIKey
			}
		}
		if cfg.APIURL == "" || cfg.APIKey == "" {
			utils.RespondWithBadRequest(c, "Configura la URL y API Key primero", nil)
			return
		}

		sessionID, err := tester(ctx, cfg.APIURL, cfg.APIKey)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conexión exitosa", "sessionId": sessionID})
		case errors.Is(err, webchat.ErrNoSession):
			c.JSON(http.StatusOK, gin.H{"success": false, "error": "Error: no se recibió sessionId"})
		default:
			logger.Warn("webchat connection test failed", "error", err)
			c.JSON(http.StatusOK, gin.H{"success": false, "error": "Error al conectar con la API"})
		}
	}
}
