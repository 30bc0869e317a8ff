package middleware

import (
	"net/http"

	"ekuphumuleni-api/internal/delivery/http/response"
	"ekuphumuleni-api/pkg/apperror"
	"ekuphumuleni-api/pkg/security"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodyBytes fits the largest valid submission even when every message
// rune is sent as a \uXXXX surrogate pair (12 bytes per rune).
const DefaultMaxBodyBytes int64 = 32 << 10

// BodyLimit rejects declared oversize bodies up front and caps the rest with
// http.MaxBytesReader so decoding fails once the limit is crossed. Handlers
// report the capped case themselves when the decode fails.
func BodyLimit(maxBytes int64, sec *security.SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			sec.LogBodyTooLarge(c.Request.Context(),
				c.ClientIP(), c.Request.UserAgent(), c.GetString(response.RequestIDKey), c.Request.ContentLength, maxBytes,
			)
			_ = c.Error(apperror.New(http.StatusRequestEntityTooLarge, "Request body too large", nil))
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
