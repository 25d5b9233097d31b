package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders adds security headers to all responses. The CSP allows
// WebSocket connections back to the API for the signaling channel.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent clickjacking
		c.Writer.Header().Set("X-Frame-Options", "DENY")

		// Prevent MIME type sniffing
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")

		// HSTS (HTTP Strict Transport Security)
		c.Writer.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		// Referrer Policy
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Content Security Policy
		c.Writer.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:")

		// Media permissions stay available: the meeting UI needs camera and
		// microphone access
		c.Writer.Header().Set("Permissions-Policy", "geolocation=()")

		c.Next()
	}
}
