// Package store provides the SQLite + FTS5 storage layer for tradar.
//
// All catalog data lives in a single SQLite database file, including:
// - Trademark records (application number, titles, status, class codes)
// - Per-space embedding vectors for exact cosine re-scoring
// - FTS5 full-text index over titles and goods/services for lexical search
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.tradar/tradar.db"

// Trademark is a single catalog record. The application number is the
// stable identifier joining every subsystem.
type Trademark struct {
	ApplicationNumber string
	TitleKorean       string
	TitleEnglish      string
	Status            string
	ClassCodes        []string
	GoodsServices     string
	ImagePath         string
	ThumbURL          string
}

// Hit is a single retrieval result from a search backend.
type Hit struct {
	ID    string
	Score float64
}

// StoredVector pairs an application number with its stored embedding.
type StoredVector struct {
	ID     string
	Vector []float32
}

// Stats holds observability counters about the store.
type Stats struct {
	TrademarkCount int64
	EmbeddingCount int64
	Spaces         []string
	DBSizeBytes    int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// SQLiteStore implements the metadata store, the embedding store, and the
// lexical backend over a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (and if needed creates) a tradar database.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddTrademark inserts or replaces a catalog record.
func (s *SQLiteStore) AddTrademark(ctx context.Context, tm *Trademark) error {
	if tm.ApplicationNumber == "" {
		return fmt.Errorf("trademark requires an application number")
	}
	classes, err := json.Marshal(tm.ClassCodes)
	if err != nil {
		return fmt.Errorf("encoding class codes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trademarks
		   (application_number, title_korean, title_english, status, class_codes, goods_services, image_path, thumb_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(application_number) DO UPDATE SET
		   title_korean = excluded.title_korean,
		   title_english = excluded.title_english,
		   status = excluded.status,
		   class_codes = excluded.class_codes,
		   goods_services = excluded.goods_services,
		   image_path = excluded.image_path,
		   thumb_url = excluded.thumb_url`,
		tm.ApplicationNumber, tm.TitleKorean, tm.TitleEnglish, tm.Status,
		string(classes), tm.GoodsServices, tm.ImagePath, tm.ThumbURL,
	)
	if err != nil {
		return fmt.Errorf("storing trademark %s: %w", tm.ApplicationNumber, err)
	}
	return nil
}

// BulkByIDs fetches records for the given application numbers in one query.
// Unknown IDs are simply absent from the returned map.
func (s *SQLiteStore) BulkByIDs(ctx context.Context, ids []string) (map[string]*Trademark, error) {
	results := make(map[string]*Trademark)
	if len(ids) == 0 {
		return results, nil
	}

	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT application_number, title_korean, title_english, status, class_codes, goods_services, image_path, thumb_url
		 FROM trademarks WHERE application_number IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("fetching trademarks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tm := &Trademark{}
		var classes string
		if err := rows.Scan(&tm.ApplicationNumber, &tm.TitleKorean, &tm.TitleEnglish,
			&tm.Status, &classes, &tm.GoodsServices, &tm.ImagePath, &tm.ThumbURL); err != nil {
			return nil, fmt.Errorf("scanning trademark row: %w", err)
		}
		if classes != "" {
			if err := json.Unmarshal([]byte(classes), &tm.ClassCodes); err != nil {
				tm.ClassCodes = nil
			}
		}
		results[tm.ApplicationNumber] = tm
	}
	return results, rows.Err()
}

// Stats returns record and embedding counts plus the database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trademarks").Scan(&st.TrademarkCount); err != nil {
		return nil, fmt.Errorf("counting trademarks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&st.EmbeddingCount); err != nil {
		return nil, fmt.Errorf("counting embeddings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT space FROM embeddings ORDER BY space")
	if err != nil {
		return nil, fmt.Errorf("listing spaces: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var space string
		if err := rows.Scan(&space); err != nil {
			return nil, err
		}
		st.Spaces = append(st.Spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = fi.Size()
		}
	}
	return st, nil
}

// inClause builds a "?,?,?" placeholder list and matching args.
func inClause(ids []string) (string, []interface{}) {
	placeholders := ""
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
