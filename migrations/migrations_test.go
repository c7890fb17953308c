package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *dbx.DB {
	t.Helper()
	db, err := dbx.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesInOrderOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	applied, err := Run(ctx, db)
	require.NoError(t, err)
	require.Len(t, applied, len(Items()))
	assert.Equal(t, "1748851494_created_users.go", applied[0])

	again, err := Run(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, again)

	for _, table := range []string{"users", "tickets", "orders", "payments"} {
		var n int
		err := db.NewQuery("SELECT count(*) FROM " + table).Row(&n)
		assert.NoError(t, err, table)
	}
}

func TestActiveOrderIndexRejectsSecondCreated(t *testing.T) {
	db := openTestDB(t)
	_, err := Run(context.Background(), db)
	require.NoError(t, err)

	insert := func(id, status string) error {
		_, err := db.Insert("orders", dbx.Params{
			"id": id, "buyer_id": "b", "ticket_id": "t1", "ticket_title": "x",
			"ticket_price": 100, "status": status, "expires_at": 1,
			"created_at": 1, "updated_at": 1,
		}).Execute()
		return err
	}

	require.NoError(t, insert("o1", "created"))
	assert.Error(t, insert("o2", "created"))
	assert.NoError(t, insert("o3", "cancelled"))
}

func TestRevertDropsLastMigration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := Run(ctx, db)
	require.NoError(t, err)

	reverted, err := Revert(ctx, db, 1)
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	assert.Equal(t, "1748939740_created_payments.go", reverted[0])

	_, err = db.NewQuery("SELECT count(*) FROM payments").Execute()
	assert.Error(t, err)
}
