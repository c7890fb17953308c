package expiration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-market/models"
)

func TestRedisScheduleSchedule(t *testing.T) {
	db, mock := redismock.NewClientMock()
	sched := NewRedisSchedule(db)
	due := epoch.Add(15 * time.Minute)

	mock.ExpectZAdd(ScheduleKey, redis.Z{Score: float64(due.UnixMilli()), Member: "o1"}).SetVal(1)
	require.NoError(t, sched.Schedule(context.Background(), "o1", due))

	mock.ExpectZRem(ScheduleKey, "o1").SetVal(1)
	require.NoError(t, sched.Unschedule(context.Background(), "o1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisScheduleDue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	sched := NewRedisSchedule(db)

	mock.ExpectZRangeByScoreWithScores(ScheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "1780344000000",
		Count: 10,
	}).SetVal([]redis.Z{
		{Score: 1780343000000, Member: "o1"},
		{Score: 1780344000000, Member: "o2"},
	})

	now := time.UnixMilli(1780344000000).UTC()
	due, err := sched.Due(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, []models.ScheduledExpiry{
		{OrderID: "o1", DueAt: time.UnixMilli(1780343000000).UTC()},
		{OrderID: "o2", DueAt: now},
	}, due)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisScheduleDueError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	sched := NewRedisSchedule(db)

	mock.ExpectZRangeByScoreWithScores(ScheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "1000",
		Count: 5,
	}).SetErr(errors.New("connection refused"))

	_, err := sched.Due(context.Background(), time.UnixMilli(1000), 5)
	assert.ErrorContains(t, err, "connection refused")
}

type stubLister struct {
	orders []*models.Order
}

func (s stubLister) DueOrders(context.Context, int) ([]*models.Order, error) {
	return s.orders, nil
}

func TestStoreScanDue(t *testing.T) {
	scan := NewStoreScan(stubLister{orders: []*models.Order{
		{ID: "o1", ExpiresAt: epoch},
	}})
	due, err := scan.Due(context.Background(), epoch, 10)
	require.NoError(t, err)
	assert.Equal(t, []models.ScheduledExpiry{{OrderID: "o1", DueAt: epoch}}, due)
	assert.NoError(t, scan.Done(context.Background(), "o1"))
}
