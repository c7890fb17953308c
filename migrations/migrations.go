// Package migrations keeps the schema history. Every file registers one
// step from init; Run applies the pending steps in file name order.
package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
)

type MigrationFunc func(db dbx.Builder) error

type Migration struct {
	File string
	Up   MigrationFunc
	Down MigrationFunc
}

var registry []*Migration

const tableName = "_migrations"

// Register adds a migration named after the calling file.
func Register(up, down MigrationFunc) {
	_, path, _, _ := runtime.Caller(1)
	registry = append(registry, &Migration{
		File: filepath.Base(path),
		Up:   up,
		Down: down,
	})
}

// Items returns the registered migrations sorted by file name.
func Items() []*Migration {
	items := make([]*Migration, len(registry))
	copy(items, registry)
	sort.Slice(items, func(i, j int) bool { return items[i].File < items[j].File })
	return items
}

// Run applies every pending migration and returns the applied file names.
func Run(ctx context.Context, db *dbx.DB) ([]string, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range Items() {
		done, err := isApplied(ctx, db, m.File)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		err = db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.Insert(tableName, dbx.Params{
				"file":    m.File,
				"applied": time.Now().UnixMilli(),
			}).Execute()
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", m.File, err)
		}
		slog.Info("Applied migration", "file", m.File)
		applied = append(applied, m.File)
	}
	return applied, nil
}

// Revert rolls back the last n applied migrations.
func Revert(ctx context.Context, db *dbx.DB, n int) ([]string, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}

	byFile := map[string]*Migration{}
	for _, m := range registry {
		byFile[m.File] = m
	}

	var files []string
	err := db.Select("file").
		From(tableName).
		OrderBy("applied DESC", "file DESC").
		Limit(int64(n)).
		WithContext(ctx).
		Column(&files)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for _, file := range files {
		m, ok := byFile[file]
		if !ok || m.Down == nil {
			return reverted, fmt.Errorf("migration %s: no down step", file)
		}
		err := db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			_, err := tx.Delete(tableName, dbx.HashExp{"file": file}).Execute()
			return err
		})
		if err != nil {
			return reverted, fmt.Errorf("revert %s: %w", file, err)
		}
		reverted = append(reverted, file)
	}
	return reverted, nil
}

func ensureTable(ctx context.Context, db *dbx.DB) error {
	_, err := db.NewQuery(`CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		file    TEXT PRIMARY KEY NOT NULL,
		applied BIGINT NOT NULL
	)`).WithContext(ctx).Execute()
	return err
}

func isApplied(ctx context.Context, db *dbx.DB, file string) (bool, error) {
	var count int
	err := db.Select("count(*)").
		From(tableName).
		Where(dbx.HashExp{"file": file}).
		WithContext(ctx).
		Row(&count)
	return count > 0, err
}

// execAll runs a list of statements in order.
func execAll(db dbx.Builder, stmts ...string) error {
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.NewQuery(stmt).Execute(); err != nil {
			return err
		}
	}
	return nil
}
