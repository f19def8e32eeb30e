package db

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS checks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	locale     TEXT NOT NULL,
	slug       TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	error      TEXT,
	checked_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_locale_slug ON checks (locale, slug);

CREATE INDEX IF NOT EXISTS idx_checks_run ON checks (run_id);

CREATE TABLE IF NOT EXISTS last_sweep (
	locale   TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL,
	swept_at DATETIME NOT NULL
);
`
