package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"ticket-market/internal/services"
)

// ListTickets returns every ticket, or only unreserved ones with
// ?available=true.
func (h *Handler) ListTickets(c echo.Context) error {
	onlyAvailable, _ := strconv.ParseBool(c.QueryParam("available"))
	tickets, err := h.tickets.List(c.Request().Context(), onlyAvailable)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tickets)
}

func (h *Handler) GetTicket(c echo.Context) error {
	t, err := h.tickets.Get(c.Request().Context(), c.PathParam("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTicket(c echo.Context) error {
	var in services.TicketInput
	if err := c.Bind(&in); err != nil {
		return respondError(c, badBody())
	}
	t, err := h.tickets.Create(c.Request().Context(), actor(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTicket(c echo.Context) error {
	var in services.TicketInput
	if err := c.Bind(&in); err != nil {
		return respondError(c, badBody())
	}
	t, err := h.tickets.Update(c.Request().Context(), actor(c), c.PathParam("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
