package storage

// Schema is the SQL schema of a thought database. Both indexes are stored
// as JSON records under their normalized keys.
const Schema = `
CREATE TABLE IF NOT EXISTS lexemes (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    record      TEXT NOT NULL,
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS parents (
    key         TEXT PRIMARY KEY,
    record      TEXT NOT NULL,
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS meta (
    name        TEXT PRIMARY KEY,
    value       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lexemes_value ON lexemes(value);
`
