// Package handlers implements the gin handlers of the HTTP API.
package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/biomarker-engine/internal/interfaces/http/middleware"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code      errors.ErrorCode `json:"code"`
	Message   string           `json:"message"`
	Detail    string           `json:"detail,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// writeAppError maps application errors to HTTP status codes.  Internal
// errors are masked.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)

	var maxBytes *http.MaxBytesError
	if stderrors.As(err, &maxBytes) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:      errors.ErrCodeBadRequest,
			Message:   "request body too large",
			RequestID: middleware.GetRequestID(c),
		})
		return
	}

	if stderrors.Is(err, context.DeadlineExceeded) && errors.GetCode(err) == errors.ErrCodeUnknown {
		err = errors.New(errors.ErrCodeTimeout, "request timed out").WithCause(err)
	}

	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	resp := ErrorResponse{Code: code, Message: err.Error(), RequestID: middleware.GetRequestID(c)}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	}
	if status == http.StatusInternalServerError {
		resp = ErrorResponse{Code: errors.ErrCodeInternal, Message: "internal server error", RequestID: resp.RequestID}
	}
	c.AbortWithStatusJSON(status, resp)
}

// bindJSON decodes the body into dst, reporting malformed input as 400.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if stderrors.As(err, &maxBytes) {
			writeAppError(c, err)
			return false
		}
		writeAppError(c, errors.InvalidParam("malformed request body").WithCause(err).WithDetail(err.Error()))
		return false
	}
	return true
}
