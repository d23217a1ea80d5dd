package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/optionsauth/internal/client/migrations"
	"github.com/dmitrijs2005/optionsauth/internal/dbx"
	"github.com/dmitrijs2005/optionsauth/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenSQLite opens (creating if needed) the storage database at path and
// applies pending migrations.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under concurrent handlers
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate storage: %w", err)
	}
	return db, nil
}

type SQLiteStore struct {
	db   *sql.DB
	area Area
}

func NewSQLiteStore(db *sql.DB, area Area) *SQLiteStore {
	return &SQLiteStore{db: db, area: area}
}

func (r *SQLiteStore) Area() Area { return r.area }

func (r *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE area = ? AND key = ?`, r.area, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", r.area, key, err)
	}
	return value, nil
}

func (r *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	return r.set(ctx, r.db, key, value)
}

func (r *SQLiteStore) set(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (area, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(area, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, r.area, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", r.area, key, err)
	}
	return nil
}

// Apply writes the batch in one transaction.
func (r *SQLiteStore) Apply(ctx context.Context, b Batch) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range b.sortedKeys() {
			var err error
			if v := b[k]; v == nil {
				err = r.remove(ctx, tx, k)
			} else {
				err = r.set(ctx, tx, k, v)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteStore) Remove(ctx context.Context, key string) error {
	return r.remove(ctx, r.db, key)
}

func (r *SQLiteStore) remove(ctx context.Context, db dbx.DBTX, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM kv WHERE area = ? AND key = ?`, r.area, key)
	if err != nil {
		return fmt.Errorf("failed to remove %s[%s]: %w", r.area, key, err)
	}
	return nil
}

func (r *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM kv WHERE area = ? ORDER BY key`, r.area)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", r.area, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan %s key: %w", r.area, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s keys: %w", r.area, err)
	}
	return keys, nil
}

func (r *SQLiteStore) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE area = ?`, r.area)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.area, err)
	}
	return nil
}
