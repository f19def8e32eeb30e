package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// LocationKey stores the review client's last location so a relaunch resumes.
const LocationKey = "location"

// KV is a string key/value store over the kv table.
type KV struct {
	db DBExecutor
}

// NewKV returns a KV over db.
func NewKV(db DBExecutor) *KV {
	return &KV{db: db}
}

// Get returns the value for key and whether it exists.
func (kv *KV) Get(key string) (string, bool, error) {
	var v string
	err := kv.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

// Set upserts key.
func (kv *KV) Set(key, value string) error {
	_, err := kv.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Location returns the stored review location, "" when none.
func (kv *KV) Location() (string, error) {
	v, _, err := kv.Get(LocationKey)
	return v, err
}

// SetLocation stores the review location.
func (kv *KV) SetLocation(loc string) error {
	return kv.Set(LocationKey, loc)
}

// RecordCheck appends a check to the journal.
func RecordCheck(db DBExecutor, c Check) (int64, error) {
	if strings.TrimSpace(c.Locale) == "" || strings.TrimSpace(c.Slug) == "" {
		return 0, fmt.Errorf("locale and slug must be non-empty")
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now()
	}
	res, err := db.Exec(
		`INSERT INTO checks (run_id, locale, slug, outcome, error, checked_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.RunID, c.Locale, c.Slug, string(c.Outcome), nullableString(c.Error), c.CheckedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert check: %w", err)
	}
	return res.LastInsertId()
}

// nullableString returns nil for "" else the value.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ChecksForRun returns the checks journaled by a run, oldest first.
func ChecksForRun(db DBExecutor, runID string) ([]Check, error) {
	rows, err := db.Query(`SELECT id, run_id, locale, slug, outcome, error, checked_at
		FROM checks WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Check
	for rows.Next() {
		var c Check
		var outcome string
		var msg sql.NullString
		if err := rows.Scan(&c.ID, &c.RunID, &c.Locale, &c.Slug, &outcome, &msg, &c.CheckedAt); err != nil {
			return nil, err
		}
		c.Outcome = Outcome(outcome)
		if msg.Valid {
			c.Error = msg.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastSweep returns the locales covered by the previous run.
func LastSweep(db DBExecutor) (map[string]SweptLocale, error) {
	rows, err := db.Query(`SELECT locale, run_id, swept_at FROM last_sweep`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]SweptLocale{}
	for rows.Next() {
		var s SweptLocale
		if err := rows.Scan(&s.Locale, &s.RunID, &s.SweptAt); err != nil {
			return nil, err
		}
		out[s.Locale] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceLastSweep makes locales the set covered by the previous run. Pass
// a *sql.Tx to make the replacement atomic.
func ReplaceLastSweep(db DBExecutor, runID string, locales []string, at time.Time) error {
	if _, err := db.Exec(`DELETE FROM last_sweep`); err != nil {
		return fmt.Errorf("clear last sweep: %w", err)
	}
	for _, l := range locales {
		if _, err := db.Exec(`INSERT INTO last_sweep (locale, run_id, swept_at) VALUES (?, ?, ?)`, l, runID, at.UTC()); err != nil {
			return fmt.Errorf("record %s: %w", l, err)
		}
	}
	return nil
}
