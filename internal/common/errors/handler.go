// internal/common/errors/handler.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ErrorHandler turns request errors into the JSON error body clients see.
type ErrorHandler struct {
	logger  Logger
	onError func(code ErrorCode, status int)
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorBody is the response payload for every failed request. Existing
// clients read the message from "detail".
type ErrorBody struct {
	Detail string    `json:"detail"`
	Code   ErrorCode `json:"code"`
}

// NewErrorHandler builds a handler; onError may be nil and is called once per
// handled error, typically to count it.
func NewErrorHandler(logger Logger, onError func(code ErrorCode, status int)) *ErrorHandler {
	return &ErrorHandler{logger: logger, onError: onError}
}

// HandleHTTPError is an echo.HTTPErrorHandler.
func (h *ErrorHandler) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	stdErr, status := h.normalizeError(err)
	h.logError(c, stdErr, status)
	if h.onError != nil {
		h.onError(stdErr.Code, status)
	}

	body := ErrorBody{Detail: stdErr.Message, Code: stdErr.Code}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		h.logger.Error("failed to write error response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// normalizeError ensures we always have a StandardError and a status code.
func (h *ErrorHandler) normalizeError(err error) (*StandardError, int) {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr, HTTPStatus(stdErr.Code)
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := ErrCodeInternal
		switch {
		case httpErr.Code == http.StatusRequestEntityTooLarge:
			code = ErrCodePayloadTooLarge
		case httpErr.Code == http.StatusNotFound:
			code = ErrCodeNotFound
		case httpErr.Code >= 400 && httpErr.Code < 500:
			code = ErrCodeInvalidInput
		}
		return &StandardError{
			Code:      code,
			Message:   fmt.Sprint(httpErr.Message),
			Retryable: false,
			Timestamp: time.Now().UTC(),
			cause:     err,
		}, httpErr.Code
	}

	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}, http.StatusInternalServerError
}

func (h *ErrorHandler) logError(c echo.Context, stdErr *StandardError, status int) {
	fields := map[string]interface{}{
		"method":        c.Request().Method,
		"path":          c.Request().URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
		fields["requestId"] = rid
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
		return
	}
	h.logger.Warn("request rejected", fields)
}
