package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jask/hyprshell/internal/database"
)

// Visit represents a visits row.
type Visit struct {
	ID        string
	URL       string
	Title     string
	VisitedAt time.Time
}

// VisitRepo handles browsing history.
type VisitRepo struct {
	db *sql.DB
}

func NewVisitRepo(db *sql.DB) *VisitRepo { return &VisitRepo{db: db} }

func (r *VisitRepo) Record(ctx context.Context, url, title string) (Visit, error) {
	v := Visit{ID: uuid.NewString(), URL: url, Title: title, VisitedAt: database.Now()}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO visits(id, url, title, visited_at) VALUES (?, ?, ?, ?)
	`, v.ID, v.URL, v.Title, v.VisitedAt)
	return v, err
}

func (r *VisitRepo) SetTitle(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE visits SET title = ? WHERE id = ?`, title, id)
	return err
}

// List returns visits newest first; limit <= 0 means no limit.
func (r *VisitRepo) List(ctx context.Context, limit int) ([]Visit, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, url, title, visited_at FROM visits
	ORDER BY visited_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.URL, &v.Title, &v.VisitedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VisitRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM visits`)
	return err
}
