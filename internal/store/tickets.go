package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pocketbase/dbx"

	"ticket-market/internal/apperr"
	"ticket-market/models"
)

type ticketRow struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	Price             int64          `db:"price"`
	SellerID          string         `db:"seller_id"`
	Version           int64          `db:"version"`
	ReservedByOrderID sql.NullString `db:"reserved_by_order_id"`
	CreatedAt         int64          `db:"created_at"`
	UpdatedAt         int64          `db:"updated_at"`
}

func (r ticketRow) model() *models.Ticket {
	return &models.Ticket{
		ID:                r.ID,
		Title:             r.Title,
		Price:             r.Price,
		SellerID:          r.SellerID,
		Version:           r.Version,
		ReservedByOrderID: stringPtr(r.ReservedByOrderID),
		CreatedAt:         fromMillis(r.CreatedAt),
		UpdatedAt:         fromMillis(r.UpdatedAt),
	}
}

// CreateTicket inserts t with version 1.
func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) error {
	t.Version = 1
	_, err := s.db.Insert("tickets", dbx.Params{
		"id":                   t.ID,
		"title":                t.Title,
		"price":                t.Price,
		"seller_id":            t.SellerID,
		"version":              t.Version,
		"reserved_by_order_id": nil,
		"created_at":           millis(t.CreatedAt),
		"updated_at":           millis(t.UpdatedAt),
	}).WithContext(ctx).Execute()
	return err
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return getTicket(ctx, s.db, id)
}

func getTicket(ctx context.Context, db dbx.Builder, id string) (*models.Ticket, error) {
	var row ticketRow
	err := db.Select("*").
		From("tickets").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err)
	}
	return row.model(), nil
}

// ListTickets returns every ticket newest first, reserved or not. Whether a
// reservation still holds depends on its order's deadline, which is for the
// caller to judge.
func (s *Store) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	var rows []ticketRow
	err := s.db.Select("*").
		From("tickets").
		OrderBy("created_at DESC", "id").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}
	tickets := make([]*models.Ticket, 0, len(rows))
	for _, r := range rows {
		tickets = append(tickets, r.model())
	}
	return tickets, nil
}

// UpdateTicket writes title and price if the stored version still equals
// expectedVersion and the ticket is not reserved. On success t carries the
// new version.
func (s *Store) UpdateTicket(ctx context.Context, t *models.Ticket, expectedVersion int64, now time.Time) error {
	return s.tx(ctx, func(tx *dbx.Tx) error {
		res, err := tx.Update("tickets", dbx.Params{
			"title":      t.Title,
			"price":      t.Price,
			"version":    dbx.NewExp("version + 1"),
			"updated_at": millis(now),
		}, dbx.HashExp{"id": t.ID, "version": expectedVersion, "reserved_by_order_id": nil}).WithContext(ctx).Execute()
		if err != nil {
			return err
		}
		if err := affected(res); err != nil {
			current, gerr := getTicket(ctx, tx, t.ID)
			switch {
			case gerr != nil:
				return gerr
			case current.IsReserved():
				return apperr.ErrTicketReserved
			default:
				return err
			}
		}

		updated, err := getTicket(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		*t = *updated
		return nil
	})
}

// setReservation moves reserved_by_order_id from "from" to "to" under a
// version check. A nil from requires the ticket to be unreserved.
func setReservation(ctx context.Context, tx *dbx.Tx, ticketID string, expectedVersion int64, from, to *string, now time.Time) error {
	where := dbx.HashExp{"id": ticketID, "version": expectedVersion}
	if from == nil {
		where["reserved_by_order_id"] = nil
	} else {
		where["reserved_by_order_id"] = *from
	}

	var value any
	if to != nil {
		value = *to
	}
	res, err := tx.Update("tickets", dbx.Params{
		"reserved_by_order_id": value,
		"version":              dbx.NewExp("version + 1"),
		"updated_at":           millis(now),
	}, where).WithContext(ctx).Execute()
	if err != nil {
		return err
	}
	return affected(res)
}

// releaseReservation clears the ticket's reservation if it still points at
// orderID. Releasing an already released ticket is not an error.
func releaseReservation(ctx context.Context, tx *dbx.Tx, ticketID, orderID string, now time.Time) error {
	_, err := tx.Update("tickets", dbx.Params{
		"reserved_by_order_id": nil,
		"version":              dbx.NewExp("version + 1"),
		"updated_at":           millis(now),
	}, dbx.HashExp{"id": ticketID, "reserved_by_order_id": orderID}).WithContext(ctx).Execute()
	return err
}
