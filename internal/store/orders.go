package store

import (
	"context"
	"errors"
	"time"

	"github.com/pocketbase/dbx"

	"ticket-market/internal/apperr"
	"ticket-market/models"
)

type orderRow struct {
	ID           string `db:"id"`
	BuyerID      string `db:"buyer_id"`
	TicketID     string `db:"ticket_id"`
	TicketTitle  string `db:"ticket_title"`
	TicketPrice  int64  `db:"ticket_price"`
	Status       string `db:"status"`
	CancelReason string `db:"cancel_reason"`
	ExpiresAt    int64  `db:"expires_at"`
	Version      int64  `db:"version"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r orderRow) model() *models.Order {
	return &models.Order{
		ID:      r.ID,
		BuyerID: r.BuyerID,
		Ticket: models.TicketSnapshot{
			ID:    r.TicketID,
			Title: r.TicketTitle,
			Price: r.TicketPrice,
		},
		Status:       models.OrderStatus(r.Status),
		CancelReason: models.CancelReason(r.CancelReason),
		ExpiresAt:    fromMillis(r.ExpiresAt),
		Version:      r.Version,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

// InsertReservation creates o and points the ticket at it in one
// transaction. ticket is the copy the caller observed: if its version is
// stale or it is already reserved, nothing is written and
// apperr.ErrVersionConflict is returned.
func (s *Store) InsertReservation(ctx context.Context, ticket *models.Ticket, o *models.Order) error {
	o.Version = 1
	return s.tx(ctx, func(tx *dbx.Tx) error {
		if err := setReservation(ctx, tx, ticket.ID, ticket.Version, nil, &o.ID, o.CreatedAt); err != nil {
			return err
		}

		_, err := tx.Insert("orders", dbx.Params{
			"id":            o.ID,
			"buyer_id":      o.BuyerID,
			"ticket_id":     o.Ticket.ID,
			"ticket_title":  o.Ticket.Title,
			"ticket_price":  o.Ticket.Price,
			"status":        string(o.Status),
			"cancel_reason": string(o.CancelReason),
			"expires_at":    millis(o.ExpiresAt),
			"version":       o.Version,
			"created_at":    millis(o.CreatedAt),
			"updated_at":    millis(o.UpdatedAt),
		}).WithContext(ctx).Execute()
		if isUniqueViolation(err) {
			return apperr.ErrVersionConflict.Wrap(err)
		}
		return err
	})
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return getOrder(ctx, s.db, id)
}

func getOrder(ctx context.Context, db dbx.Builder, id string) (*models.Order, error) {
	var row orderRow
	err := db.Select("*").
		From("orders").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err)
	}
	return row.model(), nil
}

// ListOrdersByBuyer returns the buyer's orders newest first.
func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error) {
	var rows []orderRow
	err := s.db.Select("*").
		From("orders").
		Where(dbx.HashExp{"buyer_id": buyerID}).
		OrderBy("created_at DESC", "id").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}
	return orderModels(rows), nil
}

// ListDueOrders returns created orders whose deadline is at or before now,
// oldest deadline first.
func (s *Store) ListDueOrders(ctx context.Context, now time.Time, limit int) ([]*models.Order, error) {
	var rows []orderRow
	err := s.db.Select("*").
		From("orders").
		Where(dbx.HashExp{"status": string(models.OrderCreated)}).
		AndWhere(dbx.NewExp("expires_at <= {:now}", dbx.Params{"now": millis(now)})).
		OrderBy("expires_at ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}
	return orderModels(rows), nil
}

// TransitionOrder moves o out of the created state. o is the copy the
// caller observed; a stale version yields apperr.ErrVersionConflict. The
// ticket reservation is released in the same transaction.
func (s *Store) TransitionOrder(ctx context.Context, o *models.Order, to models.OrderStatus, reason models.CancelReason, now time.Time) (*models.Order, error) {
	if !models.CanTransition(o.Status, to) {
		return nil, apperr.ErrAlreadyTerminal
	}

	var updated *models.Order
	err := s.tx(ctx, func(tx *dbx.Tx) error {
		if err := transition(ctx, tx, o, to, reason, now); err != nil {
			return err
		}
		if err := releaseReservation(ctx, tx, o.Ticket.ID, o.ID, now); err != nil {
			return err
		}
		var err error
		updated, err = getOrder(ctx, tx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CompleteOrder records p and completes o atomically. A second payment for
// the same order fails on the unique order index with apperr.ErrAlreadyPaid.
// The order must still be before its deadline at p.CreatedAt; otherwise
// nothing is written and apperr.ErrOrderExpired is returned.
func (s *Store) CompleteOrder(ctx context.Context, o *models.Order, p *models.Payment) (*models.Order, error) {
	if !models.CanTransition(o.Status, models.OrderComplete) {
		return nil, apperr.ErrAlreadyTerminal
	}

	var updated *models.Order
	err := s.tx(ctx, func(tx *dbx.Tx) error {
		_, err := tx.Insert("payments", dbx.Params{
			"id":          p.ID,
			"order_id":    p.OrderID,
			"gateway_ref": p.GatewayRef,
			"amount":      p.Amount,
			"created_at":  millis(p.CreatedAt),
		}).WithContext(ctx).Execute()
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyPaid
		}
		if err != nil {
			return err
		}

		before := dbx.NewExp("expires_at > {:now}", dbx.Params{"now": millis(p.CreatedAt)})
		if err := transition(ctx, tx, o, models.OrderComplete, models.ReasonNone, p.CreatedAt, before); err != nil {
			if errors.Is(err, apperr.ErrVersionConflict) {
				return missedDeadline(ctx, tx, o, p.CreatedAt)
			}
			return err
		}
		if err := releaseReservation(ctx, tx, o.Ticket.ID, o.ID, p.CreatedAt); err != nil {
			return err
		}
		updated, err = getOrder(ctx, tx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func transition(ctx context.Context, tx *dbx.Tx, o *models.Order, to models.OrderStatus, reason models.CancelReason, now time.Time, extra ...dbx.Expression) error {
	where := dbx.And(append([]dbx.Expression{dbx.HashExp{
		"id":      o.ID,
		"version": o.Version,
		"status":  string(models.OrderCreated),
	}}, extra...)...)
	res, err := tx.Update("orders", dbx.Params{
		"status":        string(to),
		"cancel_reason": string(reason),
		"version":       dbx.NewExp("version + 1"),
		"updated_at":    millis(now),
	}, where).WithContext(ctx).Execute()
	if err != nil {
		return err
	}
	return affected(res)
}

// missedDeadline tells a completion that lost to the clock apart from one
// that lost to another writer.
func missedDeadline(ctx context.Context, tx *dbx.Tx, o *models.Order, at time.Time) error {
	current, err := getOrder(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	if current.Version == o.Version && current.Status == models.OrderCreated && !current.ExpiresAt.After(at) {
		return apperr.ErrOrderExpired
	}
	return apperr.ErrVersionConflict
}

func orderModels(rows []orderRow) []*models.Order {
	orders := make([]*models.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.model())
	}
	return orders
}
