package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_service/services/order/internal/service"
)

type ErrorBody struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func statusFor(kind string) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindRemoteCall:
		return http.StatusBadGateway
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// serviceError logs err under event and converts it to a categorized HTTP error.
func serviceError(l *slog.Logger, event string, err error) error {
	kind := service.Kind(err)
	code := statusFor(kind)

	msg := err.Error()
	if code == http.StatusInternalServerError {
		l.Error(event, "status", code, "reason", kind, "error", err)
		msg = "internal error"
	} else {
		l.Warn(event, "status", code, "reason", kind, "error", err)
	}
	return echo.NewHTTPError(code, ErrorBody{Category: kind, Message: msg})
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{Category: service.KindValidation, Message: reason})
}
