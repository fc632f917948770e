package utils

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, in
// canonical form. Values that do not parse as an IP are skipped; with no
// usable source the result is "unknown".
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip, ok := normalizeIP(strings.Split(xff, ",")[0]); ok {
			return ip
		}
	}

	if ip, ok := normalizeIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}

	return "unknown"
}

func normalizeIP(s string) (string, bool) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return "", false
	}
	return ip.String(), true
}

// GetUserAgent extracts user agent from request
func GetUserAgent(r *http.Request) string {
	return r.Header.Get("User-Agent")
}
