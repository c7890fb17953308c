package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ticket-market/models"
)

var (
	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order state transitions by target state and reason",
		},
		[]string{"to", "reason"},
	)

	orderHoldDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_hold_duration_seconds",
			Help:    "Time a ticket stayed reserved before the order resolved",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
		[]string{"to"},
	)

	versionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_conflicts_total",
			Help: "Optimistic concurrency conflicts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	paymentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_attempts_total",
			Help: "Payment attempts by result",
		},
		[]string{"result"},
	)

	sweepExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiration_sweep_orders_total",
			Help: "Orders handled by the eager expiration sweep",
		},
		[]string{"result"},
	)

	scheduledExpirations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduled_expirations",
			Help: "Orders waiting in the expiration schedule",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

// TrackTransition records an order leaving the created state.
func TrackTransition(o *models.Order) {
	orderTransitions.WithLabelValues(string(o.Status), string(o.CancelReason)).Inc()
	orderHoldDuration.WithLabelValues(string(o.Status)).Observe(o.UpdatedAt.Sub(o.CreatedAt).Seconds())
}

// TrackReservation records a new order.
func TrackReservation() {
	orderTransitions.WithLabelValues(string(models.OrderCreated), "").Inc()
}

// TrackConflict records a version conflict; outcome is "retried" or "surfaced".
func TrackConflict(operation, outcome string) {
	versionConflicts.WithLabelValues(operation, outcome).Inc()
}

func TrackPayment(result string) {
	paymentAttempts.WithLabelValues(result).Inc()
}

func TrackSweep(res models.SweepResult) {
	sweepExpired.WithLabelValues("expired").Add(float64(res.Expired))
	sweepExpired.WithLabelValues("skipped").Add(float64(res.Skipped))
	sweepExpired.WithLabelValues("failed").Add(float64(res.Failed))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Monitor periodically samples gauges that have no natural event source.
type Monitor struct {
	redis       *redis.Client
	scheduleKey string
	interval    time.Duration
}

func NewMonitor(redisClient *redis.Client, scheduleKey string) *Monitor {
	return &Monitor{redis: redisClient, scheduleKey: scheduleKey, interval: 30 * time.Second}
}

// Run collects until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	goroutineCount.Set(float64(runtime.NumGoroutine()))

	if m.redis == nil {
		return
	}
	n, err := m.redis.ZCard(ctx, m.scheduleKey).Result()
	if err != nil {
		slog.Warn("Failed to sample expiration schedule", "error", err)
		return
	}
	scheduledExpirations.Set(float64(n))
}
