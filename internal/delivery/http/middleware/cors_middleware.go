package middleware

import (
	"net/http"
	"strings"

	"ekuphumuleni-api/internal/delivery/http/response"
	"ekuphumuleni-api/pkg/security"

	"github.com/gin-gonic/gin"
)

// CORSConfig lists the browser origins allowed to post the contact form.
type CORSConfig struct {
	AllowedOrigins []string
	// AllowLocalhost admits http://localhost and http://127.0.0.1 on any port.
	// Only enabled outside production.
	AllowLocalhost bool
	Security       *security.SecurityLogger
}

// CORSMiddleware adds CORS headers for allowed origins and answers preflights.
// Requests from other origins get no CORS headers, so the browser blocks them.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	wildcard := false
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			wildcard = true
			continue
		}
		if origin != "" {
			allowed[origin] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Same-origin and non-browser requests
		isAllowed := origin == ""
		if origin != "" {
			isAllowed = wildcard || allowed[origin] || (cfg.AllowLocalhost && isLocalOrigin(origin))
		}

		if isAllowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Request-ID, X-Requested-With")
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			c.Header("Access-Control-Max-Age", "86400")
		}

		c.Header("Vary", "Origin")

		if !isAllowed {
			cfg.Security.LogOriginRejected(c.Request.Context(),
				origin, c.Request.Method, c.ClientIP(), c.GetString(response.RequestIDKey),
			)
		}

		if c.Request.Method == http.MethodOptions {
			if isAllowed {
				c.AbortWithStatus(http.StatusNoContent)
			} else {
				c.AbortWithStatus(http.StatusForbidden)
			}
			return
		}

		c.Next()
	}
}

func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}
