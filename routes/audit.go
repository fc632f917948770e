package routes

import (
	"net/http"
	"strconv"
	"time"

	"altotrafico-web/internal/logger"
	"altotrafico-web/models"
	"altotrafico-web/services"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs returns the most recent audit events.
func ListAuditLogs(auditor *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reader, ok := auditReader(c, auditor)
		if !ok {
			return
		}

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 500 {
			limit = 50
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		events, err := reader.Recent(ctx, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to query audit logs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	}
}

// VerifyAuditChain verifies the integrity of the audit chain
func VerifyAuditChain(auditor *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reader, ok := auditReader(c, auditor)
		if !ok {
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		events, err := reader.Chain(ctx)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "verification_failed", "Failed to verify audit chain", nil)
			return
		}

		brokenAt := models.VerifyChain(events)
		resp := gin.H{
			"is_valid": brokenAt < 0,
			"events":   len(events),
		}
		if brokenAt >= 0 {
			resp["broken_at"] = events[brokenAt].ID
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ExportAuditLogs downloads the whole chain as JSON or an Excel workbook.
func ExportAuditLogs(auditor *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reader, ok := auditReader(c, auditor)
		if !ok {
			return
		}

		format := c.DefaultQuery("format", services.ExportFormatExcel)
		if format != services.ExportFormatExcel && format != services.ExportFormatJSON {
			utils.RespondWithBadRequest(c, "Formato no soportado", gin.H{"formats": []string{services.ExportFormatExcel, services.ExportFormatJSON}})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		events, err := reader.Chain(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to query audit logs", nil)
			return
		}

		file, err := services.ExportAuditLog(events, format, time.Now())
		if err != nil {
			logger.Error("audit export failed", "format", format, "error", err)
			utils.RespondWithInternalError(c, "Failed to export audit logs", nil)
			return
		}

		c.Header("Content-Disposition", "attachment; filename="+file.Name)
		c.Data(http.StatusOK, file.ContentType, file.Data)
	}
}

func auditReader(c *gin.Context, auditor *models.AuditLogger) (models.AuditReader, bool) {
	if auditor != nil {
		if r, ok := auditor.Reader(); ok {
			return r, true
		}
	}
	utils.RespondWithError(c, http.StatusNotImplemented, "audit_unavailable", "Audit storage is not configured", nil)
	return nil, false
}
