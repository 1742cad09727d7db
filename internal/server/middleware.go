package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const tokenHeader = "X-Memcheck-Token"

// AuthMiddleware validates the X-Memcheck-Token header against token.
func AuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// /ping is public and does not require auth
		if c.Request.URL.Path == "/ping" {
			c.Next()
			return
		}

		provided := c.GetHeader(tokenHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response{
				Ok:    false,
				Error: "missing " + tokenHeader + " header",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, response{
				Ok:    false,
				Error: "invalid token",
			})
			return
		}

		c.Next()
	}
}

// runIDKey is the gin context key under which handlers record the run a
// request produced or read.
const runIDKey = "run_id"

// LoggingMiddleware logs each request. Command requests also carry the
// command byte and the run ID they produced.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"ip", c.ClientIP(),
		}
		if cmd := c.Param("cmd"); cmd != "" {
			attrs = append(attrs, "cmd", cmd)
		}
		if runID := c.GetString(runIDKey); runID != "" {
			attrs = append(attrs, runIDKey, runID)
		}

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request", attrs...)
	}
}

// RecoveryMiddleware turns a panic inside a handler into a 500 response.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("command panicked",
				"panic", r,
				"path", c.Request.URL.Path,
				"cmd", c.Param("cmd"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response{
				Ok:    false,
				Error: "internal server error",
			})
		}()
		c.Next()
	}
}
