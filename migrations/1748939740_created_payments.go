package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder) error {
		return execAll(db,
			`CREATE TABLE payments (
				id          TEXT PRIMARY KEY NOT NULL,
				order_id    TEXT NOT NULL,
				gateway_ref TEXT NOT NULL,
				amount      BIGINT NOT NULL,
				created_at  BIGINT NOT NULL
			)`,
			`CREATE UNIQUE INDEX idx_payments_order ON payments (order_id)`,
		)
	}, func(db dbx.Builder) error {
		return execAll(db, `DROP TABLE payments`)
	})
}
