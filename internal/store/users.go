package store

import (
	"context"
	"strings"

	"github.com/pocketbase/dbx"

	"ticket-market/internal/apperr"
	"ticket-market/models"
)

type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
}

func (r userRow) model() *models.User {
	return &models.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

// CreateUser inserts u. A taken email yields apperr.ErrEmailInUse.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.Insert("users", dbx.Params{
		"id":            u.ID,
		"email":         strings.ToLower(u.Email),
		"password_hash": u.PasswordHash,
		"created_at":    millis(u.CreatedAt),
	}).WithContext(ctx).Execute()
	if isUniqueViolation(err) {
		return apperr.ErrEmailInUse
	}
	return err
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	err := s.db.Select("*").
		From("users").
		Where(dbx.HashExp{"email": strings.ToLower(email)}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err)
	}
	return row.model(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	err := s.db.Select("*").
		From("users").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err)
	}
	return row.model(), nil
}
