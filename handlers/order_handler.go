package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"ticket-market/internal/apperr"
)

type createOrderRequest struct {
	TicketID string `json:"ticketId"`
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, badBody())
	}

	o, err := h.orders.Reserve(c.Request().Context(), actor(c), req.TicketID)
	switch {
	case errors.Is(err, apperr.ErrTicketNotFound), errors.Is(err, apperr.ErrTicketAlreadyReserved):
		// the ticket is a request field here, not the resource
		return errorJSON(c, http.StatusBadRequest, err)
	case err != nil:
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	orders, err := h.orders.List(c.Request().Context(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.orders.Get(c.Request().Context(), actor(c), c.PathParam("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	o, err := h.orders.Cancel(c.Request().Context(), actor(c), c.PathParam("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
