package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-market/internal/apperr"
	"ticket-market/models"
)

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(apperr.Body(apperr.ErrUnauthenticated))
			return
		}
		switch r.URL.Path {
		case "/orders/o1":
			_ = json.NewEncoder(w).Encode(models.Order{ID: "o1", Status: models.OrderCreated})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(apperr.Body(apperr.ErrOrderNotFound))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)

	o, err := c.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCreated, o.Status)

	_, err = c.GetOrder(context.Background(), "o2")
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)

	anon, err := New(srv.URL, "")
	require.NoError(t, err)
	_, err = anon.GetOrder(context.Background(), "o1")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestGetOrderServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)
	_, err = c.GetOrder(context.Background(), "o1")
	assert.ErrorIs(t, err, apperr.ErrRelayUnavailable)
}
