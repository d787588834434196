package repository

import (
	"context"
	"database/sql"

	"github.com/jask/hyprshell/internal/host"
)

// ModuleRepo stores installed modules.
type ModuleRepo struct {
	db *sql.DB
}

func NewModuleRepo(db *sql.DB) *ModuleRepo { return &ModuleRepo{db: db} }

// Upsert installs m, replacing a module with the same name.
func (r *ModuleRepo) Upsert(ctx context.Context, m host.Module) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO modules(name, version, repo, enabled, author, description, installed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		version=excluded.version, repo=excluded.repo, enabled=excluded.enabled,
		author=excluded.author, description=excluded.description
	`, m.Name, m.Version, m.Repo, m.Enabled, m.Author, m.Description, m.InstalledAt)
	return err
}

func (r *ModuleRepo) List(ctx context.Context) ([]host.Module, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT name, version, repo, enabled, author, description, installed_at
	FROM modules ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []host.Module
	for rows.Next() {
		var m host.Module
		if err := rows.Scan(&m.Name, &m.Version, &m.Repo, &m.Enabled, &m.Author, &m.Description, &m.InstalledAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetEnabled reports false when no module has that name.
func (r *ModuleRepo) SetEnabled(ctx context.Context, name string, enabled bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE modules SET enabled = ? WHERE name = ?`, enabled, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ModuleRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM modules WHERE name = ?`, name)
	return err
}
