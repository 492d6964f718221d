package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/middleware"
	"github.com/havenapp/haven-backend/internal/repository"
)

// ValidationError reports per-field problems with a request body. It is
// rendered as 400 {"error": {"field": "message"}}.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }

// add records msg for field, keeping the first message per field.
func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// orNil returns e when it holds at least one field error.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NotFoundError is a missing or foreign resource. Both cases render the
// same way so a caller cannot probe for other users' ids.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

var (
	ErrUserExists         = errors.New("User already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrInvalidBody        = errors.New("Invalid JSON body")
)

// notFound converts repository.ErrNotFound into a NotFoundError for the
// named resource and passes every other error through.
func notFound(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: resource}
	}
	return err
}

// ErrorHandler is the echo HTTPErrorHandler. Every error a handler or
// middleware returns ends up here; internal detail is logged and never
// sent to the client.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		if werr := c.JSON(status, body); werr != nil {
			log.Error("write error response", zap.Error(werr))
		}
	}
}

func classify(err error) (int, echo.Map) {
	var (
		verr *ValidationError
		nf   *NotFoundError
		he   *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, echo.Map{"error": verr.Fields}
	case errors.Is(err, ErrUserExists):
		return http.StatusBadRequest, echo.Map{"error": ErrUserExists.Error()}
	case errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest, echo.Map{"error": ErrInvalidBody.Error()}
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, echo.Map{"error": ErrInvalidCredentials.Error()}
	case errors.Is(err, middleware.ErrUnauthorized):
		return http.StatusUnauthorized, echo.Map{"error": "Unauthorized"}
	case errors.As(err, &nf):
		return http.StatusNotFound, echo.Map{"error": nf.Error()}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, echo.Map{"error": "Not found"}
	case errors.As(err, &he):
		switch he.Code {
		case http.StatusNotFound:
			return http.StatusNotFound, echo.Map{"error": "Not found"}
		case http.StatusMethodNotAllowed:
			return http.StatusMethodNotAllowed, echo.Map{"error": "Method not allowed"}
		case http.StatusUnauthorized:
			return http.StatusUnauthorized, echo.Map{"error": "Unauthorized"}
		}
		if he.Code < http.StatusInternalServerError {
			return he.Code, echo.Map{"error": http.StatusText(he.Code)}
		}
	}
	return http.StatusInternalServerError, echo.Map{"error": "Internal server error"}
}
