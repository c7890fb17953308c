package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"ticket-market/internal/services"
)

func (h *Handler) CreatePayment(c echo.Context) error {
	var in services.PaymentInput
	if err := c.Bind(&in); err != nil {
		return respondError(c, badBody())
	}

	payment, order, err := h.payments.Pay(c.Request().Context(), actor(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"payment": payment,
		"order":   order,
		"success": true,
	})
}
