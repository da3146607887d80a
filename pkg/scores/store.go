package scores

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// Store persists tables and progress.
type Store interface {
	LoadEntries(ctx context.Context) (map[string][]Entry, error)
	SaveEntries(ctx context.Context, profile string, entries []Entry) error
	LoadProgress(ctx context.Context) (Progress, error)
	SaveProgress(ctx context.Context, p Progress) error
	Close() error
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string][]Entry
	progress *Progress
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

func (m *MemoryStore) LoadEntries(context.Context) (map[string][]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]Entry, len(m.entries))
	for profile, entries := range m.entries {
		out[profile] = append([]Entry(nil), entries...)
	}
	return out, nil
}

func (m *MemoryStore) SaveEntries(_ context.Context, profile string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[profile] = append([]Entry(nil), entries...)
	return nil
}

func (m *MemoryStore) LoadProgress(context.Context) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progress == nil {
		return NewProgress(), nil
	}
	return m.progress.Clone(), nil
}

func (m *MemoryStore) SaveProgress(_ context.Context, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := p.Clone()
	m.progress = &c
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// SQLiteStore persists scores in a SQLite database in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// One writer avoids SQLITE_BUSY on concurrent outcome writes.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scores (
			id TEXT PRIMARY KEY,
			profile TEXT NOT NULL,
			label TEXT NOT NULL,
			score INTEGER NOT NULL,
			stars INTEGER NOT NULL DEFAULT 0,
			seq INTEGER NOT NULL,
			recorded_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_profile ON scores(profile);`,
		`CREATE TABLE IF NOT EXISTS level_stars (
			level INTEGER PRIMARY KEY,
			stars INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS campaign (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) LoadEntries(ctx context.Context) (map[string][]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT profile, id, label, score, stars, seq, recorded_at FROM scores ORDER BY profile, seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Entry)
	for rows.Next() {
		var profile string
		var e Entry
		if err := rows.Scan(&profile, &e.ID, &e.Label, &e.Score, &e.Stars, &e.Seq, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out[profile] = append(out[profile], e)
	}
	return out, rows.Err()
}

// SaveEntries replaces the stored table for profile.
func (s *SQLiteStore) SaveEntries(ctx context.Context, profile string, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM scores WHERE profile = ?", profile); err != nil {
		return fmt.Errorf("failed to clear %s: %w", profile, err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO scores (id, profile, label, score, stars, seq, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			e.ID, profile, e.Label, e.Score, e.Stars, e.Seq, e.RecordedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert score: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadProgress(ctx context.Context) (Progress, error) {
	p := NewProgress()
	err := s.db.QueryRowContext(ctx, "SELECT value FROM campaign WHERE key = 'unlocked'").Scan(&p.Unlocked)
	if err != nil && err != sql.ErrNoRows {
		return p, fmt.Errorf("failed to read campaign: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT level, stars FROM level_stars")
	if err != nil {
		return p, fmt.Errorf("failed to query stars: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var level, stars int
		if err := rows.Scan(&level, &stars); err != nil {
			return p, fmt.Errorf("failed to scan stars: %w", err)
		}
		p.Stars[level] = stars
	}
	return p, rows.Err()
}

func (s *SQLiteStore) SaveProgress(ctx context.Context, p Progress) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO campaign (key, value) VALUES ('unlocked', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		p.Unlocked); err != nil {
		return fmt.Errorf("failed to save unlock: %w", err)
	}
	for level, stars := range p.Stars {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO level_stars (level, stars) VALUES (?, ?) ON CONFLICT(level) DO UPDATE SET stars = excluded.stars",
			level, stars); err != nil {
			return fmt.Errorf("failed to save stars: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable. Health checks use it.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
