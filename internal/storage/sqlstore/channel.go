package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"shortsync/internal/domain"
)

var ErrChannelNotFound = errors.New("channel not found")

type ChannelStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewChannelStore(db *sqlx.DB) *ChannelStore {
	return &ChannelStore{db: db, now: time.Now}
}

func (s *ChannelStore) List(ctx context.Context) ([]domain.Channel, error) {
	exec := GetExecutor(ctx, s.db)
	query := `
		SELECT url, last_seen_id, last_seen_date, active, created_at, cursor_moved_at
		FROM channels
		ORDER BY created_at, url`

	var channels []domain.Channel
	if err := sqlx.SelectContext(ctx, exec, &channels, query); err != nil {
		return nil, err
	}
	return channels, nil
}

// Create adds an active channel without a cursor. An existing channel is left as is.
func (s *ChannelStore) Create(ctx context.Context, url string) error {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		INSERT INTO channels (url, active, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (url) DO NOTHING`)

	_, err := exec.ExecContext(ctx, query, url, true, s.now().UTC())
	return err
}

func (s *ChannelStore) SetActive(ctx context.Context, url string, active bool) error {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`UPDATE channels SET active = ? WHERE url = ?`)

	res, err := exec.ExecContext(ctx, query, active, url)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *ChannelStore) UpdateCursor(ctx context.Context, url, id, uploadDate string) error {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		UPDATE channels
		SET last_seen_id = ?, last_seen_date = ?, cursor_moved_at = ?
		WHERE url = ?`)

	res, err := exec.ExecContext(ctx, query, id, uploadDate, s.now().UTC(), url)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChannelNotFound
	}
	return nil
}
