package utils

import (
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// AcceptEncoding is sent by upstream clients that decode bodies with ReadBody.
// Setting it turns off the transport's transparent gzip, so ReadBody handles both.
const AcceptEncoding = "br, gzip"

// ReadBody reads at most limit bytes of a response body, undoing brotli or
// gzip content encoding and converting an explicitly declared non-UTF-8
// charset to UTF-8.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	var body io.Reader = resp.Body

	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "br":
		body = brotli.NewReader(body)
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		body = gz
	default:
		return nil, fmt.Errorf("unsupported content encoding: %s", enc)
	}

	body = io.LimitReader(body, limit)

	if label := declaredCharset(resp.Header.Get("Content-Type")); label != "" {
		e, name := charset.Lookup(label)
		if e == nil {
			return nil, fmt.Errorf("unsupported charset: %s", label)
		}
		if name != "utf-8" {
			body = e.NewDecoder().Reader(body)
		}
	}

	return io.ReadAll(body)
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
