// Package storage persists the bot's own records: the log of published
// posts (used as history context when writing new ones), generated diary
// entries, and the persona key/value set.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "maizone.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Posts ---

func (s *Store) SavePost(p Post) error {
	_, err := s.db.Exec(`
		INSERT INTO posts (id, topic, content, model, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Topic, p.Content, p.Model, p.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) RecentPosts(limit int) ([]Post, error) {
	rows, err := s.db.Query(`
		SELECT id, topic, content, model, created_at
		FROM posts ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Post
	for rows.Next() {
		var p Post
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Topic, &p.Content, &p.Model, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Diary entries ---

func (s *Store) SaveDiaryEntry(e DiaryEntry) error {
	published := 0
	if e.Published {
		published = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO diary_entries (id, date, content, word_count, published, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			id = excluded.id,
			content = excluded.content,
			word_count = excluded.word_count,
			published = excluded.published,
			created_at = excluded.created_at`,
		e.ID, e.Date, e.Content, e.WordCount, published,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetDiaryEntry(date string) (DiaryEntry, error) {
	var e DiaryEntry
	var createdAt string
	var published int
	err := s.db.QueryRow(`
		SELECT id, date, content, word_count, published, created_at
		FROM diary_entries WHERE date = ?`, date,
	).Scan(&e.ID, &e.Date, &e.Content, &e.WordCount, &published, &createdAt)
	if err == sql.ErrNoRows {
		return DiaryEntry{}, ErrNotFound
	}
	if err != nil {
		return DiaryEntry{}, err
	}
	e.Published = published != 0
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return DiaryEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}

func (s *Store) ListDiaryEntries(limit int) ([]DiaryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, date, content, word_count, published, created_at
		FROM diary_entries ORDER BY date DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DiaryEntry
	for rows.Next() {
		var e DiaryEntry
		var createdAt string
		var published int
		if err := rows.Scan(&e.ID, &e.Date, &e.Content, &e.WordCount, &published, &createdAt); err != nil {
			return nil, err
		}
		e.Published = published != 0
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *Store) MarkDiaryPublished(date string) error {
	res, err := s.db.Exec(`UPDATE diary_entries SET published = 1 WHERE date = ?`, date)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Persona ---

func (s *Store) SetPersonaKey(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO persona (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetPersonaKey(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM persona WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

func (s *Store) GetAllPersonaKeys() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM persona")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}
