// Package httpmw holds gin middleware shared by every HTTP server in the
// control plane: request logging, tracing, the error-envelope mapper, and
// internal-service authentication.
package httpmw

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/logger"
)

// envelope is the wire shape for every response: {code, message, data}.
// code is 0 on success; on error it is the apperr.Code string of the
// handler-set error.
type envelope struct {
	Code    any    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK writes a 2xx envelope with code=0 and the given payload as data.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Code: 0, Data: data})
}

// Fail attaches err to the gin context; ErrorEnvelope converts it to the
// wire envelope once the handler chain finishes. Handlers should call Fail
// and return immediately rather than writing JSON themselves.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// ErrorEnvelope inspects the last error attached to the context (via
// Fail/c.Error) and writes the corresponding {code, message} envelope. It
// does its work after c.Next() returns, so it sees errors attached by the
// handlers and by any middleware registered after it, and writes nothing if
// the response has already been written.
func ErrorEnvelope(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperr.HTTPStatusOf(err)
		code := string(apperr.CodeInternalError)
		var ae *apperr.Error
		if errors.As(err, &ae) {
			code = string(ae.Code)
		}

		if status >= 500 {
			log.WithContext(c.Request.Context()).Error("request failed", zap.Error(err))
		}
		c.JSON(status, envelope{Code: code, Message: err.Error()})
	}
}

// RequestID assigns a request id (from the X-Request-Id header, or a fresh
// uuid) into the request context for the logger and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func withCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, logger.CorrelationIDKey, id)
}

// Recovery converts panics into INTERNAL_ERROR responses instead of
// crashing the process, logging the recovered value.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", zap.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
					Code:    string(apperr.CodeInternalError),
					Message: "internal error",
				})
			}
		}()
		c.Next()
	}
}
