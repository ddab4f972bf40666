package triggers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// sqliteSchema is executed on open (idempotent via IF NOT EXISTS).
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS triggers (
    key        TEXT PRIMARY KEY,
    position   INTEGER NOT NULL,
    responses  TEXT NOT NULL DEFAULT '[]',
    match_type TEXT NOT NULL DEFAULT 'contains',
    enabled    INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_triggers_position ON triggers(position);

-- Document-level values: the initialized marker and the non-trigger members.
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const (
	metaInitialized = "initialized"
	metaSiblings    = "siblings"
)

// SQLiteBackend persists triggers in a SQLite database. Rules live one per
// row ordered by position; the remaining top-level members (settings and
// anything else) are kept as a JSON object in the meta table.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLiteBackend opens (or creates) the database at path with WAL enabled
// and creates the schema.
func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path == "" {
		path = "./data/triggers.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

// Name returns the database path.
func (b *SQLiteBackend) Name() string { return b.path }

// Close closes the database.
func (b *SQLiteBackend) Close() error { return b.db.Close() }

// Load reads the rules and siblings. A database that was never saved to
// reports ErrBackendMissing.
func (b *SQLiteBackend) Load(ctx context.Context) (*Document, error) {
	var initialized string
	err := b.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaInitialized).Scan(&initialized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ConfigError{Source: b.path, Err: ErrBackendMissing}
	}
	if err != nil {
		return nil, &ConfigError{Source: b.path, Err: fmt.Errorf("read meta: %w", err)}
	}

	doc := &Document{}
	var siblings string
	err = b.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaSiblings).Scan(&siblings)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, &ConfigError{Source: b.path, Err: fmt.Errorf("read siblings: %w", err)}
	default:
		sd, err := DecodeDocument([]byte(siblings))
		if err != nil {
			return nil, &ConfigError{Source: b.path, Err: err}
		}
		doc = sd
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT key, responses, match_type, enabled
		FROM triggers
		ORDER BY position`)
	if err != nil {
		return nil, &ConfigError{Source: b.path, Err: fmt.Errorf("load triggers: %w", err)}
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var (
			r         Rule
			responses string
			mode      string
			enabled   int
		)
		if err := rows.Scan(&r.Key, &responses, &mode, &enabled); err != nil {
			return nil, &ConfigError{Source: b.path, Err: fmt.Errorf("scan trigger: %w", err)}
		}
		if err := json.Unmarshal([]byte(responses), &r.Responses); err != nil {
			return nil, &ConfigError{Source: b.path, Err: fmt.Errorf("%w: trigger %q responses: %w", ErrMalformed, r.Key, err)}
		}
		r.Mode = ParseMatchMode(mode)
		r.Enabled = enabled != 0
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &ConfigError{Source: b.path, Err: err}
	}

	doc.Rules = rules
	return doc, nil
}

// Save replaces every trigger row and the siblings in one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, doc *Document) error {
	siblings, err := doc.Siblings()
	if err != nil {
		return fmt.Errorf("encoding siblings: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM triggers"); err != nil {
		return fmt.Errorf("clear triggers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO triggers (key, position, responses, match_type, enabled)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range doc.Rules {
		responses := r.Responses
		if responses == nil {
			responses = []string{}
		}
		data, err := marshalJSON(responses)
		if err != nil {
			return fmt.Errorf("encoding trigger %q: %w", r.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, r.Key, i, string(data), string(ParseMatchMode(string(r.Mode))), boolToInt(r.Enabled)); err != nil {
			return fmt.Errorf("save trigger %q: %w", r.Key, err)
		}
	}

	for k, v := range map[string]string{metaSiblings: string(siblings), metaInitialized: "1"} {
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
