package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type SettingsStore struct {
	db *sqlx.DB
}

func NewSettingsStore(db *sqlx.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value stored under key; ok is false when the key is unset.
func (s *SettingsStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	exec := GetExecutor(ctx, s.db)

	err = sqlx.GetContext(ctx, exec, &value, exec.Rebind(`SELECT value FROM settings WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`)

	_, err := exec.ExecContext(ctx, query, key, value)
	return err
}
