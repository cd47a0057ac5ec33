// Package store database for kiosk preferences and cached backend payloads
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	if err := database.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return database, nil
}

func (d *Database) createTable() error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS preferences (
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (key)
	)`, `
	CREATE TABLE IF NOT EXISTS macro_cache (
		singleton  INTEGER NOT NULL DEFAULT 1 CHECK (singleton = 1),
		body       TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (singleton)
	)`,
	}
	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Get decodes the JSON value stored under key into out.
func (d *Database) Get(key string, out any) error {
	const query = `SELECT value FROM preferences WHERE key = ?`

	var raw string
	err := d.db.QueryRow(query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("preference %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get preference %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode preference %s: %w", key, err)
	}
	return nil
}

// Put overwrites key with the JSON encoding of v.
func (d *Database) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode preference %s: %w", key, err)
	}

	const stmt = `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := d.db.Exec(stmt, key, string(raw), time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert preference %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *Database) Delete(key string) error {
	if _, err := d.db.Exec(`DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

// GetMacroCache returns the cached macro payload while it is still fresh.
func (d *Database) GetMacroCache(now time.Time) ([]byte, error) {
	const query = `
		SELECT body, expires_at
		FROM macro_cache
		WHERE singleton = 1
	`

	var body string
	var expiresAt int64
	err := d.db.QueryRow(query).Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("macro cache: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get macro cache: %w", err)
	}
	if !now.Before(time.UnixMilli(expiresAt)) {
		return nil, fmt.Errorf("macro cache expired: %w", ErrNotFound)
	}
	return []byte(body), nil
}

func (d *Database) UpsertMacroCache(body []byte, expiresAt time.Time) error {
	const stmt = `
		INSERT INTO macro_cache (
			singleton,
			body,
			expires_at
		) VALUES (1, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			body       = excluded.body,
			expires_at = excluded.expires_at
	`

	if _, err := d.db.Exec(stmt, string(body), expiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("upsert macro cache: %w", err)
	}
	return nil
}

// ClearMacroCache drops the cached payload so the next read goes to the
// macro server.
func (d *Database) ClearMacroCache() error {
	if _, err := d.db.Exec(`DELETE FROM macro_cache`); err != nil {
		return fmt.Errorf("clear macro cache: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
