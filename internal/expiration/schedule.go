package expiration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-market/models"
)

// ScheduleKey is the sorted set holding order deadlines, scored by unix
// milliseconds.
const ScheduleKey = "orders:expiring"

// Source yields orders whose deadline has passed.
type Source interface {
	Due(ctx context.Context, now time.Time, limit int) ([]models.ScheduledExpiry, error)
	// Done drops an entry once the sweep has resolved it.
	Done(ctx context.Context, orderID string) error
}

// RedisSchedule keeps order deadlines in a redis sorted set. It is both the
// Scheduler the order service writes to and a Source for the sweeper.
type RedisSchedule struct {
	redis *redis.Client
	key   string
}

func NewRedisSchedule(client *redis.Client) *RedisSchedule {
	return &RedisSchedule{redis: client, key: ScheduleKey}
}

func (s *RedisSchedule) Schedule(ctx context.Context, orderID string, dueAt time.Time) error {
	err := s.redis.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: orderID,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule order %s: %w", orderID, err)
	}
	return nil
}

func (s *RedisSchedule) Unschedule(ctx context.Context, orderID string) error {
	return s.redis.ZRem(ctx, s.key, orderID).Err()
}

func (s *RedisSchedule) Done(ctx context.Context, orderID string) error {
	return s.Unschedule(ctx, orderID)
}

func (s *RedisSchedule) Due(ctx context.Context, now time.Time, limit int) ([]models.ScheduledExpiry, error) {
	entries, err := s.redis.ZRangeByScoreWithScores(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read expiration schedule: %w", err)
	}

	due := make([]models.ScheduledExpiry, 0, len(entries))
	for _, z := range entries {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		due = append(due, models.ScheduledExpiry{
			OrderID: id,
			DueAt:   time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return due, nil
}

// DueLister is the part of the order service a StoreScan needs.
type DueLister interface {
	DueOrders(ctx context.Context, limit int) ([]*models.Order, error)
}

// StoreScan finds due orders by querying the store directly. It is the
// source used when redis is not configured, and it catches orders whose
// schedule write was lost.
type StoreScan struct {
	orders DueLister
}

func NewStoreScan(orders DueLister) *StoreScan {
	return &StoreScan{orders: orders}
}

func (s *StoreScan) Due(ctx context.Context, _ time.Time, limit int) ([]models.ScheduledExpiry, error) {
	orders, err := s.orders.DueOrders(ctx, limit)
	if err != nil {
		return nil, err
	}
	due := make([]models.ScheduledExpiry, len(orders))
	for i, o := range orders {
		due[i] = models.ScheduledExpiry{OrderID: o.ID, DueAt: o.ExpiresAt}
	}
	return due, nil
}

func (s *StoreScan) Done(context.Context, string) error { return nil }
