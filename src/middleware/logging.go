package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/apikey-rotator/src/models"
	"github.com/rs/zerolog/log"
)

// LoggingMiddleware logs all HTTP requests with structured fields
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.RawQuery)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP())

		if query != "" {
			event.Str("query", query)
		}

		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}

		switch {
		case status >= 500:
			event.Msg("server error")
		case status >= 400:
			event.Msg("client error")
		default:
			event.Msg("request")
		}
	}
}

// redactQuery masks the "key" parameter of the legacy endpoint
func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "<unparseable>"
	}
	if keys, ok := values["key"]; ok {
		for i, k := range keys {
			keys[i] = models.MaskKey(k)
		}
	}
	return values.Encode()
}
