// Package sqlitevec persists the behavior ledger and fingerprints in SQLite.
//
// Vectors are stored as little-endian float32 BLOBs. Tag sets and metadata are
// JSON TEXT columns. Shared numeric fields are only ever changed through
// single-statement updates (see counters.go).
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"feedcore/internal/model"
)

// DB wraps a SQLite database used as the ledger and fingerprint store.
type DB struct{ sql *sql.DB }

// Open opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database limited to a single connection.
func Open(path string) (*DB, error) {
	dsn := path
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransient, "failed to open database", goerr.V("path", path), goerr.V("cause", err.Error()))
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		d.SetMaxOpenConns(1)
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS users (
	  id TEXT PRIMARY KEY,
	  created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS content (
	  id TEXT PRIMARY KEY,
	  author_id TEXT NOT NULL,
	  description TEXT NOT NULL DEFAULT '',
	  category TEXT NOT NULL DEFAULT '',
	  like_count INTEGER NOT NULL DEFAULT 0,
	  comment_count INTEGER NOT NULL DEFAULT 0,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_content_category ON content(category);
	CREATE TABLE IF NOT EXISTS interactions (
	  seq INTEGER PRIMARY KEY AUTOINCREMENT,
	  id TEXT NOT NULL UNIQUE,
	  user_id TEXT NOT NULL,
	  content_id TEXT NOT NULL,
	  kind TEXT NOT NULL,
	  weight REAL NOT NULL,
	  duration INTEGER,
	  metadata TEXT,
	  ts INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_user_ts ON interactions(user_id, ts);
	CREATE INDEX IF NOT EXISTS idx_interactions_content ON interactions(content_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_ts ON interactions(ts);
	CREATE TABLE IF NOT EXISTS content_fingerprints (
	  content_id TEXT PRIMARY KEY,
	  vector BLOB NOT NULL,
	  tags TEXT NOT NULL DEFAULT '[]',
	  hashtags TEXT NOT NULL DEFAULT '[]',
	  popularity REAL NOT NULL DEFAULT 0 CHECK (popularity >= 0),
	  freshness REAL NOT NULL DEFAULT 1 CHECK (freshness >= 0.1 AND freshness <= 1.0),
	  demotion REAL NOT NULL DEFAULT 0,
	  freshness_factor REAL NOT NULL DEFAULT 1,
	  updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS user_fingerprints (
	  user_id TEXT PRIMARY KEY,
	  vector BLOB NOT NULL,
	  interest_tags TEXT NOT NULL DEFAULT '[]',
	  category_tags TEXT NOT NULL DEFAULT '[]',
	  behavior_count INTEGER NOT NULL DEFAULT 0,
	  avg_engagement REAL NOT NULL DEFAULT 0,
	  updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS cursors (
	  key TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	);
	`)
	if err != nil {
		return storeErr(err, "failed to migrate schema")
	}
	// columns added after the first release
	if err := d.ensureColumn("content_fingerprints", "demotion", "REAL NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	return d.ensureColumn("content_fingerprints", "freshness_factor", "REAL NOT NULL DEFAULT 1")
}

func (d *DB) ensureColumn(table, column, decl string) error {
	var n int
	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name=?`, table, column).Scan(&n); err != nil {
		return storeErr(err, "failed to inspect schema", goerr.V("table", table))
	}
	if n > 0 {
		return nil
	}
	if _, err := d.sql.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + column + ` ` + decl); err != nil {
		return storeErr(err, "failed to add column", goerr.V("table", table), goerr.V("column", column))
	}
	return nil
}

// SaveCursor stores a named progress marker.
func (d *DB) SaveCursor(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO cursors(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return storeErr(err, "failed to save cursor", goerr.V("key", key))
	}
	return nil
}

// LoadCursor returns a named progress marker, or model.ErrNotFound.
func (d *DB) LoadCursor(ctx context.Context, key string) (string, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, `SELECT value FROM cursors WHERE key=?`, key).Scan(&v)
	if err != nil {
		return "", storeErr(err, "failed to load cursor", goerr.V("key", key))
	}
	return v, nil
}

// storeErr classifies a database error: missing rows become model.ErrNotFound,
// everything else model.ErrTransient.
func storeErr(err error, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.V("cause", err.Error()))
	if errors.Is(err, sql.ErrNoRows) {
		return goerr.Wrap(model.ErrNotFound, msg, opts...)
	}
	return goerr.Wrap(model.ErrTransient, msg, opts...)
}

func encodeF32(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v[i]))
	}
	return b
}

// decodeF32 returns nil for a BLOB whose length is not a multiple of four.
func decodeF32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
