package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"ekuphumuleni-api/internal/delivery/http/response"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a structured 500.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					"request_id", c.GetString(response.RequestIDKey),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)

				response.Error(c, http.StatusInternalServerError, "Internal server error", nil)
				c.Abort()
			}
		}()

		c.Next()
	}
}
