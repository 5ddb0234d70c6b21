// Package storage persists the thought indexes in a SQLite database. It
// implements the document persister: every applied batch is written in one
// transaction, so the stored indexes change together like the in-memory ones.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// DefaultFile is the database file name inside the data directory.
const DefaultFile = "thoughts.db"

// Store is a SQLite-backed thought database.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at dbPath and applies the
// schema.
func Open(dbPath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open thought db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping thought db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBatch writes one batch: nil records are deleted, the rest upserted.
// The stored version is bumped by one.
func (s *Store) SaveBatch(ctx context.Context, b *store.Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for key, l := range b.Lexemes {
		if l == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM lexemes WHERE key = ?`, key); err != nil {
				return fmt.Errorf("delete lexeme %q: %w", key, err)
			}
			continue
		}
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("encode lexeme %q: %w", key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lexemes (key, value, record) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, record = excluded.record, updated_at = datetime('now')`,
			key, l.Value, string(data),
		)
		if err != nil {
			return fmt.Errorf("upsert lexeme %q: %w", key, err)
		}
	}

	for key, p := range b.Parents {
		if p == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM parents WHERE key = ?`, key); err != nil {
				return fmt.Errorf("delete parent %q: %w", key, err)
			}
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode parent %q: %w", key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO parents (key, record) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET record = excluded.record, updated_at = datetime('now')`,
			key, string(data),
		)
		if err != nil {
			return fmt.Errorf("upsert parent %q: %w", key, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (name, value) VALUES ('version', '1')
		 ON CONFLICT(name) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)`)
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("saved batch", zap.Int("lexemes", len(b.Lexemes)), zap.Int("parents", len(b.Parents)))
	return nil
}

// Load reads both indexes into a snapshot carrying the stored version.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	version, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}

	lexemes := make(map[string]*types.Lexeme)
	if err := s.scan(ctx, `SELECT key, record FROM lexemes`, func(key string, data []byte) error {
		var l types.Lexeme
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("decode lexeme %q: %w", key, err)
		}
		lexemes[key] = &l
		return nil
	}); err != nil {
		return nil, err
	}

	parents := make(map[string]*types.Parent)
	if err := s.scan(ctx, `SELECT key, record FROM parents`, func(key string, data []byte) error {
		var p types.Parent
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode parent %q: %w", key, err)
		}
		parents[key] = &p
		return nil
	}); err != nil {
		return nil, err
	}

	s.log.Info("loaded thoughts",
		zap.Uint64("version", version),
		zap.Int("lexemes", len(lexemes)),
		zap.Int("parents", len(parents)),
	)
	return store.FromRecords(version, lexemes, parents), nil
}

// Version returns the number of batches saved so far.
func (s *Store) Version(ctx context.Context) (uint64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", raw, err)
	}
	return v, nil
}

func (s *Store) scan(ctx context.Context, query string, fn func(key string, data []byte) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, record string
		if err := rows.Scan(&key, &record); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := fn(key, []byte(record)); err != nil {
			return err
		}
	}
	return rows.Err()
}
