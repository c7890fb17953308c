package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder) error {
		return execAll(db,
			`CREATE TABLE users (
				id            TEXT PRIMARY KEY NOT NULL,
				email         TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				created_at    BIGINT NOT NULL
			)`,
			`CREATE UNIQUE INDEX idx_users_email ON users (email)`,
		)
	}, func(db dbx.Builder) error {
		return execAll(db, `DROP TABLE users`)
	})
}
