package presenter

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/factguard/internal/domain"
)

type errorResponse struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", err.Error()), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg, Code: domain.CodeNotFound})
}

func InternalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "internal error", slog.String("error", err.Error()), slog.String("module", "rest"))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// Error renders err with the status matching its registry error code.
// Errors outside the registry taxonomy are internal errors.
func Error(c echo.Context, err error) error {
	code, ok := domain.CodeOf(err)
	if !ok {
		if domain.IsTransport(err) {
			slog.WarnContext(c.Request().Context(), "upstream unavailable", slog.String("error", err.Error()), slog.String("module", "rest"))
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		}
		return InternalError(c, err)
	}
	return c.JSON(StatusOf(code), errorResponse{Error: err.Error(), Code: code})
}

func StatusOf(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeAlreadyExists, domain.CodeIdentifierConflict, domain.CodeNoOp, domain.CodeInvalidTransition:
		return http.StatusConflict
	case domain.CodeCanonicalization, domain.CodeInvalidTimestamp, domain.CodeInvalidVersion, domain.CodeInvalidIdentity:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
