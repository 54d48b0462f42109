package http

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"dailyexpense/internal/core"
	"dailyexpense/internal/identity"
	applog "dailyexpense/internal/log"
)

const msgServerError = "Server Error"

// errorResponse carries internal detail only in development.
type errorResponse struct {
	Msg   string `json:"msg"`
	Error string `json:"error,omitempty"`
	Stack string `json:"stack,omitempty"`
}

// statusFor classifies err into a status code and user-facing message.
// Unknown errors map to 500.
func statusFor(err error) (int, string) {
	if ae, ok := identity.AsAuthError(err); ok {
		return ae.Status, ae.Error()
	}
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, core.ErrExpenseNotFound):
		return http.StatusNotFound, "Expense not found"
	case errors.Is(err, core.ErrAccountNotFound):
		return http.StatusNotFound, core.ErrAccountNotFound.Error()
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}
	return http.StatusInternalServerError, msgServerError
}

// writeError maps err onto the response and records it on the gin context
// so the trace middleware logs it.
func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, msg := statusFor(err)

	body := errorResponse{Msg: msg}
	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		applog.FromContext(ctx).WithComponent(applog.ComponentHTTP).ErrorContext(ctx, "Request failed",
			applog.FieldMethod, c.Request.Method,
			applog.FieldPath, c.Request.URL.Path,
			applog.FieldError, err)
		if s.development {
			body.Error = err.Error()
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// recovery turns a panic into the 500 body. The stack is logged and, in
// development, returned.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			stack := string(debug.Stack())
			ctx := c.Request.Context()
			applog.FromContext(ctx).WithComponent(applog.ComponentHTTP).ErrorContext(ctx, "Panic recovered",
				applog.FieldPath, c.Request.URL.Path,
				applog.FieldError, fmt.Sprint(recovered),
				"stack", stack)

			body := errorResponse{Msg: msgServerError}
			if s.development {
				body.Error = fmt.Sprint(recovered)
				body.Stack = stack
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}
