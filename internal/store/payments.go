package store

import (
	"context"

	"github.com/pocketbase/dbx"

	"ticket-market/models"
)

type paymentRow struct {
	ID         string `db:"id"`
	OrderID    string `db:"order_id"`
	GatewayRef string `db:"gateway_ref"`
	Amount     int64  `db:"amount"`
	CreatedAt  int64  `db:"created_at"`
}

func (s *Store) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var row paymentRow
	err := s.db.Select("*").
		From("payments").
		Where(dbx.HashExp{"order_id": orderID}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err)
	}
	return &models.Payment{
		ID:         row.ID,
		OrderID:    row.OrderID,
		GatewayRef: row.GatewayRef,
		Amount:     row.Amount,
		CreatedAt:  fromMillis(row.CreatedAt),
	}, nil
}

// CountPayments returns how many payments exist for orderID.
func (s *Store) CountPayments(ctx context.Context, orderID string) (int, error) {
	var n int
	err := s.db.Select("count(*)").
		From("payments").
		Where(dbx.HashExp{"order_id": orderID}).
		WithContext(ctx).
		Row(&n)
	return n, err
}
