package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds a handler's store round trips.
	DefaultTimeout = 10 * time.Second

	// UpstreamTimeout bounds calls to HubSpot and the webchat API made inside a request.
	UpstreamTimeout = 20 * time.Second

	// LongTimeout is for full scans such as audit chain verification.
	LongTimeout = 60 * time.Second
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithUpstreamTimeout creates a context for one upstream API call.
func WithUpstreamTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, UpstreamTimeout)
}

// WithLongTimeout creates a context with long timeout for operations that may take longer
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}
