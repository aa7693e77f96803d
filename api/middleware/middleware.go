// Package middleware holds the gin middleware shared by the API routes.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/battopt/core/logger"
	"github.com/kilianp07/battopt/core/monitoring"
)

// ErrorHandler recovers panics, reports them to the monitor and answers with
// a JSON 500.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop{}
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", recovered)
		}
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		monitoring.CaptureException(err, map[string]string{"module": "api", "path": c.FullPath()})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

// Logger logs one line per request.
func Logger(log logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("request", map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
	}
}
