package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:signin:a@b.c").SetVal(2)
	mock.ExpectExpireNX("ratelimit:signin:a@b.c", time.Minute).SetVal(false)
	mock.ExpectTxPipelineExec()

	ok, err := limiter.Allow(ctx, "signin:a@b.c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowOverLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client, 2, time.Minute)

	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:k").SetVal(3)
	mock.ExpectExpireNX("ratelimit:k", time.Minute).SetVal(false)
	mock.ExpectTxPipelineExec()

	ok, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *RateLimiter
	ok, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAntiBotMiddleware(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, AntiBotMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Googlebot/2.1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
