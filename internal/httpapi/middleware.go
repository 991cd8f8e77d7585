package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const logEventHTTPRequest = "http"

// RequestLogger logs one line per request, tagged with the builder session when the route has one.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		fields := []zap.Field{
			zap.String("method", context.Request.Method),
			zap.String("route", context.FullPath()),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		}
		if sessionID := context.Param(pathParamSessionID); sessionID != "" {
			fields = append(fields, zap.String(logFieldSessionID, sessionID))
		}
		logger.Info(logEventHTTPRequest, fields...)
	}
}
