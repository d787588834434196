package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jask/hyprshell/internal/host"
)

// DownloadRepo persists download records.
type DownloadRepo struct {
	db *sql.DB
}

func NewDownloadRepo(db *sql.DB) *DownloadRepo { return &DownloadRepo{db: db} }

// Upsert inserts d or replaces the stored row with the same id.
func (r *DownloadRepo) Upsert(ctx context.Context, d host.Download) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO downloads(id, url, filename, path, status, size, downloaded, error, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status=excluded.status, size=excluded.size,
		downloaded=excluded.downloaded, error=excluded.error
	`, d.ID, d.URL, d.Filename, d.Path, string(d.Status), d.Size, d.Downloaded, d.Error, d.StartedAt)
	return err
}

func (r *DownloadRepo) Get(ctx context.Context, id string) (host.Download, bool, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, url, filename, path, status, size, downloaded, error, started_at
	FROM downloads WHERE id = ?`, id)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return host.Download{}, false, nil
	}
	if err != nil {
		return host.Download{}, false, err
	}
	return d, true, nil
}

// List returns downloads newest first.
func (r *DownloadRepo) List(ctx context.Context) ([]host.Download, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, url, filename, path, status, size, downloaded, error, started_at
	FROM downloads ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []host.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkInterrupted turns downloads left running by a previous process into
// paused ones and returns how many changed.
func (r *DownloadRepo) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE downloads SET status = ? WHERE status IN (?, ?)
	`, string(host.DownloadPaused), string(host.DownloadPending), string(host.DownloadActive))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(s scanner) (host.Download, error) {
	var (
		d      host.Download
		status string
	)
	err := s.Scan(&d.ID, &d.URL, &d.Filename, &d.Path, &status, &d.Size, &d.Downloaded, &d.Error, &d.StartedAt)
	d.Status = host.DownloadStatus(status)
	return d, err
}
