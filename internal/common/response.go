// File: internal/common/response.go
package common

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RespondWithError sends a JSON error response and aborts the chain.
// Errors that are not APIErrors are logged in full and answered with a generic 500.
func RespondWithError(c *gin.Context, err error) {
	apiErr, ok := IsAPIError(err)
	if !ok {
		if logger := LoggerFromContext(c); logger != nil {
			logger.Error("Unhandled internal error",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(RequestIDKey)),
			)
		}
		apiErr = ErrInternalServer
	}

	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
}

// LoggerFromContext returns the request-scoped logger set by the logging middleware.
func LoggerFromContext(c *gin.Context) *zap.Logger {
	l, exists := c.Get(LoggerKey)
	if !exists {
		return nil
	}
	logger, _ := l.(*zap.Logger)
	return logger
}
