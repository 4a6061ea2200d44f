package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"AOTF-backend/internal/utilities"
)

// DefaultMaxBodyBytes covers the longest application message and decline reason with room to spare.
const DefaultMaxBodyBytes = int64(64 * 1024)

// SizeLimit rejects requests whose body is larger than maxBodyBytes.
// A declared Content-Length over the limit is refused up front with 413; bodies
// without one are wrapped in http.MaxBytesReader so binding fails once the limit is hit.
func SizeLimit(maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, utilities.ErrorResponse{
				Error: "Entity too large",
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}
