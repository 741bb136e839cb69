package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/kilnserve/kiln/internal/engine"
	"github.com/kilnserve/kiln/internal/scheduler"
)

// ResponseError is the OpenAI-style error body carried under the "error"
// key of every non-2xx response.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

var errNotFound = errors.New("not_found")

type notFoundError struct {
	msg string
}

func (e notFoundError) Error() string { return e.msg }
func (e notFoundError) Unwrap() error { return errNotFound }

func newNotFound(msg string) error {
	return notFoundError{msg: msg}
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Param:   param,
			Code:    code,
		},
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeInvalidParam(c *echo.Context, param, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, param, "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "invalid_request_error", msg, "model", "model_not_found")
}

// writeGenerateError maps engine and scheduler failures onto the OpenAI
// error envelope.
func writeGenerateError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, errNotFound):
		return writeNotFound(c, err.Error())
	case errors.Is(err, engine.ErrContextOverflow):
		return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), "", "context_length_exceeded")
	case errors.Is(err, scheduler.ErrQueueFull):
		return writeError(c, http.StatusTooManyRequests, "overloaded_error", "the server is processing too many requests, retry later", "", "queue_full")
	case errors.Is(err, scheduler.ErrStopped):
		return writeError(c, http.StatusServiceUnavailable, "server_error", "the server is shutting down", "", "")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
}
