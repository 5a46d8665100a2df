package backend

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetry ajusta los reintentos de los GET (0 = sin reintentos).
func WithRetry(max uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBase = base
	}
}
