package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"altotrafico-web/internal/telemetry"
	"altotrafico-web/models"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

const auditBodyLimit = 64 << 10

var sensitiveFields = []string{"password", "token", "secret", "key"}

// AuditMiddleware records every admin mutation. Reads are not audited.
func AuditMiddleware(auditor *models.AuditLogger, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "OPTIONS" || c.Request.Method == "HEAD" {
			c.Next()
			return
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, auditBodyLimit))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), c.Request.Body))
		}

		c.Next()

		event := createAuditEvent(c, bodyBytes)
		auditor.LogAsync(event)
		metrics.RecordAuditEvent(event.Action, event.Resource)
	}
}

// createAuditEvent creates an audit event from the request context
func createAuditEvent(c *gin.Context, bodyBytes []byte) *models.AuditEvent {
	status := c.Writer.Status()
	event := &models.AuditEvent{
		UserID:    GetUserID(c),
		Username:  GetUsername(c),
		Action:    mapHTTPMethodToAction(c.Request.Method),
		Resource:  resourceFromPath(c.FullPath()),
		IPAddress: utils.GetClientIP(c.Request),
		UserAgent: c.Request.UserAgent(),
		RequestID: GetRequestID(c),
		Status:    status,
		Success:   status < 400,
	}

	if len(c.Errors) > 0 {
		event.ErrorMessage = c.Errors.Last().Error()
	}
	event.Changes = extractChangesFromBody(bodyBytes, event.Action)
	return event
}

// mapHTTPMethodToAction maps HTTP methods to audit actions
func mapHTTPMethodToAction(method string) string {
	switch method {
	case "POST":
		return "CREATE"
	case "PUT", "PATCH":
		return "UPDATE"
	case "DELETE":
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// resourceFromPath maps /api/admin/footer-links to "footer-links" and
// /api/auth/login to "auth".
func resourceFromPath(route string) string {
	if rest, ok := strings.CutPrefix(route, "/api/admin/"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[:i]
		}
		return rest
	}
	if strings.HasPrefix(route, "/api/auth/") {
		return "auth"
	}
	return "unknown"
}

// extractChangesFromBody returns the top-level body fields with secrets redacted.
func extractChangesFromBody(bodyBytes []byte, action string) map[string]interface{} {
	if len(bodyBytes) == 0 || action == "DELETE" {
		return nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return map[string]interface{}{"raw_body_bytes": len(bodyBytes)}
	}

	filtered := make(map[string]interface{}, len(body))
	for key, value := range body {
		if isSensitiveField(key) {
			filtered[key] = "[REDACTED]"
			continue
		}
		switch v := value.(type) {
		case string:
			if len(v) > 500 {
				value = v[:500] + "…"
			}
		case []interface{}:
			value = map[string]interface{}{"items": len(v)}
		}
		filtered[key] = value
	}
	return filtered
}

func isSensitiveField(field string) bool {
	lower := strings.ToLower(field)
	for _, s := range sensitiveFields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
