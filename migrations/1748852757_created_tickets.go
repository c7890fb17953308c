package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder) error {
		return execAll(db,
			`CREATE TABLE tickets (
				id                   TEXT PRIMARY KEY NOT NULL,
				title                TEXT NOT NULL,
				price                BIGINT NOT NULL CHECK (price > 0),
				seller_id            TEXT NOT NULL,
				version              BIGINT NOT NULL DEFAULT 1,
				reserved_by_order_id TEXT NULL,
				created_at           BIGINT NOT NULL,
				updated_at           BIGINT NOT NULL
			)`,
			`CREATE INDEX idx_tickets_created ON tickets (created_at)`,
		)
	}, func(db dbx.Builder) error {
		return execAll(db, `DROP TABLE tickets`)
	})
}
