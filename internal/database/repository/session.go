package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/session"
)

const (
	prefCurrentTab = "current_tab"
	prefTheme      = "theme"
	prefAdblock    = "adblock_enabled"
	prefVPN        = "vpn_enabled"
	prefPanel      = "current_panel"
)

// SessionRepo persists the shell state.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// Save replaces the stored tabs and preferences with st.
func (r *SessionRepo) Save(ctx context.Context, st session.State) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tabs`); err != nil {
			return fmt.Errorf("clear tabs: %w", err)
		}
		for i, t := range st.Tabs {
			history, err := json.Marshal(t.History)
			if err != nil {
				return fmt.Errorf("encode history of tab %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO tabs(position, url, title, pinned, incognito, history_json, history_pos)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			`, i, t.URL, t.Title, t.Pinned, t.Incognito, string(history), t.HistoryPos); err != nil {
				return fmt.Errorf("insert tab %d: %w", i, err)
			}
		}
		prefs := map[string]string{
			prefCurrentTab: strconv.Itoa(st.CurrentTab),
			prefTheme:      st.Theme.String(),
			prefAdblock:    strconv.FormatBool(st.AdblockEnabled),
			prefVPN:        strconv.FormatBool(st.VPNEnabled),
			prefPanel:      st.CurrentPanel,
		}
		for k, v := range prefs {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO preferences(key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value;
			`, k, v); err != nil {
				return fmt.Errorf("upsert preference %s: %w", k, err)
			}
		}
		return nil
	})
}

// Load returns the stored state. found is false when nothing was saved yet.
func (r *SessionRepo) Load(ctx context.Context) (st session.State, found bool, err error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT url, title, pinned, incognito, history_json, history_pos
	FROM tabs ORDER BY position`)
	if err != nil {
		return st, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t       session.Tab
			history string
		)
		if err := rows.Scan(&t.URL, &t.Title, &t.Pinned, &t.Incognito, &history, &t.HistoryPos); err != nil {
			return st, false, err
		}
		if err := json.Unmarshal([]byte(history), &t.History); err != nil {
			return st, false, fmt.Errorf("decode history: %w", err)
		}
		st.Tabs = append(st.Tabs, t)
	}
	if err := rows.Err(); err != nil {
		return st, false, err
	}
	if len(st.Tabs) == 0 {
		return st, false, nil
	}

	prefs, err := r.preferences(ctx)
	if err != nil {
		return st, false, err
	}
	applyPreferences(&st, prefs)
	return st, true, nil
}

// applyPreferences copies stored preferences into st. Missing or unparsable
// rows keep the value from session.Default.
func applyPreferences(st *session.State, prefs map[string]string) {
	def := session.Default("")
	st.CurrentTab = def.CurrentTab
	st.Theme = def.Theme
	st.AdblockEnabled = def.AdblockEnabled
	st.VPNEnabled = def.VPNEnabled
	st.CurrentPanel = def.CurrentPanel

	if v, ok := prefs[prefCurrentTab]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			st.CurrentTab = n
		}
	}
	if v, ok := prefs[prefTheme]; ok {
		if t, err := session.ParseTheme(v); err == nil {
			st.Theme = t
		}
	}
	if v, ok := prefs[prefAdblock]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			st.AdblockEnabled = b
		}
	}
	if v, ok := prefs[prefVPN]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			st.VPNEnabled = b
		}
	}
	if v, ok := prefs[prefPanel]; ok && session.ValidPanel(v) {
		st.CurrentPanel = v
	}
}

func (r *SessionRepo) preferences(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
