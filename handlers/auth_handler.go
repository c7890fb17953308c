package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"ticket-market/internal/auth"
	"ticket-market/internal/session"
)

func (h *Handler) Signup(c echo.Context) error {
	var creds auth.Credentials
	if err := c.Bind(&creds); err != nil {
		return respondError(c, badBody())
	}

	user, sess, err := h.auth.Signup(c.Request().Context(), creds)
	if err != nil {
		return respondError(c, err)
	}
	c.SetCookie(h.auth.Sessions().Cookie(sess))
	return c.JSON(http.StatusCreated, map[string]any{"user": user})
}

func (h *Handler) Signin(c echo.Context) error {
	var creds auth.Credentials
	if err := c.Bind(&creds); err != nil {
		return respondError(c, badBody())
	}

	user, sess, err := h.auth.Signin(c.Request().Context(), creds)
	if err != nil {
		return respondError(c, err)
	}
	c.SetCookie(h.auth.Sessions().Cookie(sess))
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) Signout(c echo.Context) error {
	c.SetCookie(h.auth.Sessions().ClearCookie())
	return c.JSON(http.StatusOK, map[string]any{})
}

// CurrentUser never fails for an anonymous caller; currentUser is null.
func (h *Handler) CurrentUser(c echo.Context) error {
	sess := session.FromContext(c.Request().Context())
	if sess == nil {
		return c.JSON(http.StatusOK, map[string]any{"currentUser": nil})
	}
	user, err := h.auth.Identity(c.Request().Context(), sess.Token)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"currentUser": user})
}
