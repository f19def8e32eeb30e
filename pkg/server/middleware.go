package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID contextKey = "request_id"
	// notFoundKey holds the body an upstream 404 is answered with.
	notFoundKey = "not_found_message"
)

// RequestID injects a unique request ID into the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), ctxKeyRequestID, rid),
		)
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// AccessLog logs one line per request.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", GetRequestID(c.Request.Context())),
		)
	}
}

// ErrorHandler turns the last error attached with c.Error into a plain-text
// response:
//   - validation failures answer 400 with the hint,
//   - upstream 404s answer 404 with the message the handler stored,
//   - anything else answers 500 with the error text.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		switch {
		case errors.Is(err, apperrors.ErrValidation):
			appErr, _ := apperrors.IsAppError(err)
			c.String(appErr.HTTPStatus, appErr.Message)
		case errors.Is(err, apperrors.ErrUpstreamNotFound):
			log.Info("Upstream document not found", zap.Error(err))
			c.String(http.StatusNotFound, c.GetString(notFoundKey))
		default:
			log.Error("Upstream request failed",
				zap.Error(err),
				zap.String("request_id", GetRequestID(c.Request.Context())),
			)
			c.String(apperrors.HTTPStatus(err), err.Error())
		}
	}
}
