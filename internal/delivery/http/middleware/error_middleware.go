package middleware

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"ekuphumuleni-api/internal/delivery/http/response"
	"ekuphumuleni-api/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		reqLogger := logger.With("request_id", c.GetString(response.RequestIDKey), "path", c.FullPath())

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.Code >= http.StatusInternalServerError {
				reqLogger.Error("request failed", "status", appErr.Code, "error", appErr.Err)
			}
			if appErr.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(appErr.RetryAfter)))
			}
			response.Error(c, appErr.Code, appErr.Message, appErr.Fields)
			return
		}

		// Internal details never reach the client.
		reqLogger.Error("unhandled error", "error", err)
		response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
