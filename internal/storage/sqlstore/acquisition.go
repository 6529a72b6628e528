package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"shortsync/internal/domain"
)

type AcquisitionStore struct {
	db *sqlx.DB
}

func NewAcquisitionStore(db *sqlx.DB) *AcquisitionStore {
	return &AcquisitionStore{db: db}
}

// Save records a finished acquisition. Saving an id again replaces the record.
func (s *AcquisitionStore) Save(ctx context.Context, record *domain.AcquisitionRecord) error {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		INSERT INTO acquired (id, title, channel, upload_date, output_path, acquired_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			channel = excluded.channel,
			upload_date = excluded.upload_date,
			output_path = excluded.output_path,
			acquired_at = excluded.acquired_at`)

	_, err := exec.ExecContext(ctx, query,
		record.ID,
		record.Title,
		record.ChannelURL,
		record.UploadDate,
		record.OutputPath,
		record.AcquiredAt.UTC(),
	)
	return err
}

// ExistingIDs returns the subset of ids that already have a record.
func (s *AcquisitionStore) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	if len(ids) == 0 {
		return result, nil
	}

	exec := GetExecutor(ctx, s.db)
	query, args, err := sqlx.In(`SELECT id FROM acquired WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var found []string
	if err := sqlx.SelectContext(ctx, exec, &found, exec.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, id := range found {
		result[id] = struct{}{}
	}
	return result, nil
}

func (s *AcquisitionStore) ListByChannel(ctx context.Context, channelURL string) ([]domain.AcquisitionRecord, error) {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		SELECT id, title, channel, upload_date, output_path, acquired_at
		FROM acquired
		WHERE channel = ?
		ORDER BY upload_date DESC, acquired_at DESC`)

	var records []domain.AcquisitionRecord
	if err := sqlx.SelectContext(ctx, exec, &records, query, channelURL); err != nil {
		return nil, err
	}
	return records, nil
}

// CountByChannel returns the number of records per channel URL.
func (s *AcquisitionStore) CountByChannel(ctx context.Context) (map[string]int, error) {
	exec := GetExecutor(ctx, s.db)

	var rows []struct {
		Channel string `db:"channel"`
		Count   int    `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, exec, &rows, `SELECT channel, COUNT(*) AS n FROM acquired GROUP BY channel`); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Channel] = r.Count
	}
	return counts, nil
}
