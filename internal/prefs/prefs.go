// Package prefs persists the user's study preferences in a small SQLite
// key/value table.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/oukeidos/subdeck/internal/config"
	"github.com/oukeidos/subdeck/internal/language"
	_ "modernc.org/sqlite"
)

const (
	KeyMainLanguage      = "main_language"
	KeySubtitleLanguages = "subtitle_languages"
	KeyPageSize          = "page_size"
)

// Keys lists the preference keys in display order.
var Keys = []string{KeyMainLanguage, KeySubtitleLanguages, KeyPageSize}

// Prefs is the typed view of the stored preferences.
type Prefs struct {
	MainLanguage      string
	SubtitleLanguages []string
	// PageSize is 0 when unset.
	PageSize int
}

type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open opens or creates the preferences database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("preferences path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}
	return nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value of key and whether it is set.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

// All returns every stored preference.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM preferences")
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set validates and stores value under key, returning the value as stored.
func (s *Store) Set(ctx context.Context, key, value string) (string, error) {
	normalized, err := s.normalize(ctx, key, value)
	if err != nil {
		return "", err
	}
	if err := s.put(ctx, key, normalized); err != nil {
		return "", err
	}
	if key == KeyMainLanguage {
		if err := s.dropFromSubtitles(ctx, normalized); err != nil {
			return "", err
		}
	}
	return normalized, nil
}

// Unset removes key.
func (s *Store) Unset(ctx context.Context, key string) error {
	if !knownKey(key) {
		return unknownKey(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET
		 value = excluded.value,
		 updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) normalize(ctx context.Context, key, value string) (string, error) {
	switch key {
	case KeyMainLanguage:
		code := language.Canonical(value)
		if code == "" {
			return "", fmt.Errorf("unsupported language: %s", value)
		}
		return code, nil
	case KeySubtitleLanguages:
		main, _, err := s.Get(ctx, KeyMainLanguage)
		if err != nil {
			return "", err
		}
		codes, err := ParseLanguages(value, main)
		if err != nil {
			return "", err
		}
		return strings.Join(codes, ","), nil
	case KeyPageSize:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 || n > config.MaxPageSize {
			return "", fmt.Errorf("page_size must be an integer between 1 and %d", config.MaxPageSize)
		}
		return strconv.Itoa(n), nil
	}
	return "", unknownKey(key)
}

func (s *Store) dropFromSubtitles(ctx context.Context, main string) error {
	raw, ok, err := s.Get(ctx, KeySubtitleLanguages)
	if err != nil || !ok {
		return err
	}
	codes, err := ParseLanguages(raw, main)
	if err != nil {
		return err
	}
	return s.put(ctx, KeySubtitleLanguages, strings.Join(codes, ","))
}

// ParseLanguages resolves a comma-separated language list to canonical codes,
// dropping duplicates and the main language.
func ParseLanguages(list, main string) ([]string, error) {
	seen := map[string]bool{}
	codes := []string{}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code := language.Canonical(part)
		if code == "" {
			return nil, fmt.Errorf("unsupported language: %s", part)
		}
		if code == main || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

// Load returns the typed preferences. Unset keys stay zero.
func (s *Store) Load(ctx context.Context) (Prefs, error) {
	all, err := s.All(ctx)
	if err != nil {
		return Prefs{}, err
	}
	p := Prefs{MainLanguage: all[KeyMainLanguage]}
	if raw := all[KeySubtitleLanguages]; raw != "" {
		p.SubtitleLanguages = strings.Split(raw, ",")
	}
	if raw := all[KeyPageSize]; raw != "" {
		p.PageSize, _ = strconv.Atoi(raw)
	}
	return p, nil
}

func knownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

func unknownKey(key string) error {
	known := append([]string(nil), Keys...)
	sort.Strings(known)
	return fmt.Errorf("unknown preference %q (known: %s)", key, strings.Join(known, ", "))
}
