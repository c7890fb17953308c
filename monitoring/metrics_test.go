package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ticket-market/models"
)

func TestTrackTransition(t *testing.T) {
	before := testutil.ToFloat64(orderTransitions.WithLabelValues("cancelled", "expired"))

	now := time.Now()
	TrackTransition(&models.Order{
		Status:       models.OrderCancelled,
		CancelReason: models.ReasonExpired,
		CreatedAt:    now.Add(-15 * time.Minute),
		UpdatedAt:    now,
	})

	after := testutil.ToFloat64(orderTransitions.WithLabelValues("cancelled", "expired"))
	assert.Equal(t, before+1, after)
}

func TestTrackSweep(t *testing.T) {
	before := testutil.ToFloat64(sweepExpired.WithLabelValues("expired"))
	TrackSweep(models.SweepResult{Expired: 3, Skipped: 1})
	assert.Equal(t, before+3, testutil.ToFloat64(sweepExpired.WithLabelValues("expired")))
}

func TestMonitorCollectsScheduleSize(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectZCard("orders:expiring").SetVal(7)

	m := NewMonitor(client, "orders:expiring")
	m.collect(context.Background())

	assert.Equal(t, float64(7), testutil.ToFloat64(scheduledExpirations))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerServesMetrics(t *testing.T) {
	TrackPayment("success")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_attempts_total")
}
