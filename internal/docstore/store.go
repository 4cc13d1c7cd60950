// Package docstore provides SQLite-backed durable storage for
// serialized topology documents.
//
// A modeler autosaves tracked topology with the part document. The
// store keeps a head snapshot per document name plus an append-only
// revision history, so a corrupted save can be rolled back to the
// previous revision instead of losing every stable reference.
//
// Payloads are validated against the CUE document schema before they
// are written - a malformed document must fail loudly at the
// persistence boundary, never on the next open - and carry a
// HighwayHash checksum that Load verifies.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tessellate-cad/topotrack/internal/docschema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (documents head + snapshots history)
const currentSchemaVersion = 1

// ErrNotFound means no document exists under the requested name.
var ErrNotFound = errors.New("document not found")

// ErrChecksumMismatch means a stored payload no longer matches its
// recorded checksum. The payload must not be handed to the tracker.
var ErrChecksumMismatch = errors.New("payload checksum mismatch")

// Store persists serialized topology documents in SQLite.
type Store struct {
	db *sql.DB
}

// DocumentInfo describes one stored document head.
type DocumentInfo struct {
	Name     string    `json:"name"`
	Revision int64     `json:"revision"`
	SavedAt  time.Time `json:"savedAt"`
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically; idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save validates and writes a serialized document, returning the new
// revision number. The head update and the history append happen in
// one transaction.
func (s *Store) Save(ctx context.Context, name string, payload []byte) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("document name is required")
	}
	if err := docschema.Validate(payload); err != nil {
		return 0, fmt.Errorf("refusing to save document %q: %w", name, err)
	}

	checksum, err := Checksum(payload)
	if err != nil {
		return 0, err
	}
	savedAt := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM documents WHERE name = ?`, name,
	).Scan(&revision)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		revision = 0
	case err != nil:
		return 0, fmt.Errorf("read head revision for %q: %w", name, err)
	}
	revision++

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (name, revision, payload, checksum, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			revision = excluded.revision,
			payload  = excluded.payload,
			checksum = excluded.checksum,
			saved_at = excluded.saved_at
	`, name, revision, string(payload), checksum, savedAt); err != nil {
		return 0, fmt.Errorf("write head for %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, revision, payload, checksum, saved_at)
		VALUES (?, ?, ?, ?, ?)
	`, name, revision, string(payload), checksum, savedAt); err != nil {
		return 0, fmt.Errorf("append snapshot for %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save for %q: %w", name, err)
	}
	return revision, nil
}

// Load returns the head payload and revision for a document.
// The stored checksum is verified before the payload is returned.
func (s *Store) Load(ctx context.Context, name string) ([]byte, int64, error) {
	var (
		payload  string
		checksum string
		revision int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, checksum, revision FROM documents WHERE name = ?`, name,
	).Scan(&payload, &checksum, &revision)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, 0, fmt.Errorf("document %q: %w", name, ErrNotFound)
	case err != nil:
		return nil, 0, fmt.Errorf("load %q: %w", name, err)
	}

	computed, err := Checksum([]byte(payload))
	if err != nil {
		return nil, 0, err
	}
	if computed != checksum {
		return nil, 0, fmt.Errorf("document %q revision %d: %w", name, revision, ErrChecksumMismatch)
	}
	return []byte(payload), revision, nil
}

// LoadRevision returns a specific historical revision of a document.
func (s *Store) LoadRevision(ctx context.Context, name string, revision int64) ([]byte, error) {
	var (
		payload  string
		checksum string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, checksum FROM snapshots WHERE name = ? AND revision = ?`,
		name, revision,
	).Scan(&payload, &checksum)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("document %q revision %d: %w", name, revision, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("load %q revision %d: %w", name, revision, err)
	}

	computed, err := Checksum([]byte(payload))
	if err != nil {
		return nil, err
	}
	if computed != checksum {
		return nil, fmt.Errorf("document %q revision %d: %w", name, revision, ErrChecksumMismatch)
	}
	return []byte(payload), nil
}

// History returns all stored revisions of a document, oldest first.
func (s *Store) History(ctx context.Context, name string) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, revision, saved_at FROM snapshots
		WHERE name = ?
		ORDER BY revision ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("history for %q: %w", name, err)
	}
	defer rows.Close()
	return scanInfos(rows)
}

// List returns the head of every stored document, sorted by name.
func (s *Store) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, revision, saved_at FROM documents
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return scanInfos(rows)
}

// Delete removes a document head and its entire history.
func (s *Store) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete head for %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete history for %q: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("document %q: %w", name, ErrNotFound)
	}
	return tx.Commit()
}

func scanInfos(rows *sql.Rows) ([]DocumentInfo, error) {
	var out []DocumentInfo
	for rows.Next() {
		var (
			info    DocumentInfo
			savedAt string
		)
		if err := rows.Scan(&info.Name, &info.Revision, &savedAt); err != nil {
			return nil, fmt.Errorf("scan document info: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, savedAt)
		if err != nil {
			return nil, fmt.Errorf("parse saved_at %q: %w", savedAt, err)
		}
		info.SavedAt = t
		out = append(out, info)
	}
	return out, rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
