// Package handlers exposes the marketplace over HTTP.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"ticket-market/internal/apperr"
	"ticket-market/internal/auth"
	"ticket-market/internal/services"
	"ticket-market/internal/session"
	"ticket-market/models"
	"ticket-market/security"
)

// CheckFunc reports whether one dependency is healthy.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	auth     *auth.Service
	tickets  *services.TicketService
	orders   *services.OrderService
	payments *services.PaymentService
	limiter  *security.RateLimiter
	checks   map[string]CheckFunc
}

type Option func(*Handler)

// WithRateLimiter throttles the auth routes per client IP.
func WithRateLimiter(l *security.RateLimiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// WithHealthCheck adds a dependency to GET /health.
func WithHealthCheck(name string, check CheckFunc) Option {
	return func(h *Handler) { h.checks[name] = check }
}

func New(authSvc *auth.Service, tickets *services.TicketService, orders *services.OrderService, payments *services.PaymentService, opts ...Option) *Handler {
	h := &Handler{
		auth:     authSvc,
		tickets:  tickets,
		orders:   orders,
		payments: payments,
		checks:   map[string]CheckFunc{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(h.loadSession)

	e.GET("/health", h.Health)

	var authLimit []echo.MiddlewareFunc
	if h.limiter != nil {
		authLimit = append(authLimit, h.limiter.Middleware("auth"))
	}
	a := e.Group("/auth")
	a.POST("/signup", h.Signup, authLimit...)
	a.POST("/signin", h.Signin, authLimit...)
	a.POST("/signout", h.Signout)
	a.GET("/currentuser", h.CurrentUser)

	e.GET("/tickets", h.ListTickets)
	e.GET("/tickets/:id", h.GetTicket)
	e.POST("/tickets", h.CreateTicket, requireSession)
	e.PUT("/tickets/:id", h.UpdateTicket, requireSession)

	o := e.Group("/orders", requireSession)
	o.POST("", h.CreateOrder, security.AntiBotMiddleware())
	o.GET("", h.ListOrders)
	o.GET("/:id", h.GetOrder)
	o.DELETE("/:id", h.CancelOrder)

	e.POST("/payments", h.CreatePayment, requireSession, security.AntiBotMiddleware())
}

// actor is the signed-in user of the request. Only valid behind
// requireSession.
func actor(c echo.Context) *models.User {
	return session.FromContext(c.Request().Context()).User()
}

func respondError(c echo.Context, err error) error {
	return errorJSON(c, apperr.StatusCode(err), err)
}

func errorJSON(c echo.Context, status int, err error) error {
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed",
			"error", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
		)
	}
	return c.JSON(status, apperr.Body(err))
}

func badBody() error {
	return apperr.Validation(apperr.FieldError{Message: "Invalid request body"})
}
