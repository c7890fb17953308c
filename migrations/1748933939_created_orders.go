package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder) error {
		return execAll(db,
			`CREATE TABLE orders (
				id            TEXT PRIMARY KEY NOT NULL,
				buyer_id      TEXT NOT NULL,
				ticket_id     TEXT NOT NULL,
				ticket_title  TEXT NOT NULL,
				ticket_price  BIGINT NOT NULL,
				status        TEXT NOT NULL,
				cancel_reason TEXT NOT NULL DEFAULT '',
				expires_at    BIGINT NOT NULL,
				version       BIGINT NOT NULL DEFAULT 1,
				created_at    BIGINT NOT NULL,
				updated_at    BIGINT NOT NULL
			)`,
			`CREATE INDEX idx_orders_buyer ON orders (buyer_id, created_at)`,
			`CREATE INDEX idx_orders_due ON orders (status, expires_at)`,
			// at most one active order per ticket
			`CREATE UNIQUE INDEX idx_orders_active_ticket ON orders (ticket_id) WHERE status = 'created'`,
		)
	}, func(db dbx.Builder) error {
		return execAll(db, `DROP TABLE orders`)
	})
}
