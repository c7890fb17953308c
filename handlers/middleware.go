package handlers

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v5"

	"ticket-market/internal/apperr"
	"ticket-market/internal/session"
)

// loadSession attaches the verified session, if any, to the request
// context. An invalid token leaves the request anonymous.
func (h *Handler) loadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := session.TokenFromRequest(c.Request())
		if token == "" {
			return next(c)
		}
		sess, err := h.auth.Sessions().Verify(token)
		if err != nil {
			return next(c)
		}
		c.SetRequest(c.Request().WithContext(session.NewContext(c.Request().Context(), sess)))
		return next(c)
	}
}

func requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if session.FromContext(c.Request().Context()) == nil {
			return respondError(c, apperr.ErrUnauthenticated)
		}
		return next(c)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			slog.Info("HTTP request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency", time.Since(start).String(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	}
}
