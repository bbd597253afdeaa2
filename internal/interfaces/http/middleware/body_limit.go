package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/biomarker-engine/pkg/errors"
)

// BodyLimit caps request bodies at max bytes.  Reads past the limit fail and
// the handler reports 413.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			if c.Request.ContentLength > max {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
					"code":    errors.ErrCodeBadRequest,
					"message": "request body too large",
				})
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
