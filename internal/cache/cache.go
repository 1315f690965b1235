// Package cache persists the last successfully synced job list per host
// so a fresh dashboard can paint real data before the first live sync.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jobdeck/jobdeck/internal/cluster"
)

// Entry is one host's cached job list and the time it was synced.
type Entry struct {
	Host     string
	Jobs     []cluster.Job
	SyncedAt time.Time
}

// Store wraps the SQLite database holding last-good job lists.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS host_jobs (
		host      TEXT PRIMARY KEY,
		payload   TEXT NOT NULL,
		synced_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}
	return nil
}

// SaveHost replaces the cached job list for one host.
func (s *Store) SaveHost(host string, jobs []cluster.Job, syncedAt time.Time) error {
	payload, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("encode cached jobs: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO host_jobs (host, payload, synced_at) VALUES (?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET payload = excluded.payload, synced_at = excluded.synced_at
	`, host, string(payload), syncedAt)
	if err != nil {
		return fmt.Errorf("save cached jobs for %s: %w", host, err)
	}
	return nil
}

// LoadAll returns every cached host entry.
func (s *Store) LoadAll() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT host, payload, synced_at FROM host_jobs`)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.Host, &payload, &e.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Jobs); err != nil {
			// A corrupt row should not poison the rest of the cache.
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteHost drops one host's cache row.
func (s *Store) DeleteHost(host string) error {
	if _, err := s.db.Exec(`DELETE FROM host_jobs WHERE host = ?`, host); err != nil {
		return fmt.Errorf("delete cached jobs for %s: %w", host, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
