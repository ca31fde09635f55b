package store

import "fmt"

// migrate creates all tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trademarks (
			application_number TEXT PRIMARY KEY,
			title_korean       TEXT NOT NULL DEFAULT '',
			title_english      TEXT NOT NULL DEFAULT '',
			status             TEXT NOT NULL DEFAULT '',
			class_codes        TEXT NOT NULL DEFAULT '[]',
			goods_services     TEXT NOT NULL DEFAULT '',
			image_path         TEXT NOT NULL DEFAULT '',
			thumb_url          TEXT NOT NULL DEFAULT ''
		)`,

		// Per-space embedding vectors, little-endian float32 blobs.
		`CREATE TABLE IF NOT EXISTS embeddings (
			space              TEXT NOT NULL,
			application_number TEXT NOT NULL,
			vector             BLOB NOT NULL,
			dimensions         INTEGER NOT NULL,
			PRIMARY KEY (space, application_number)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_embeddings_space ON embeddings(space)`,

		// FTS5 lexical index over titles and goods/services.
		`CREATE VIRTUAL TABLE IF NOT EXISTS trademarks_fts USING fts5(
			title_korean,
			title_english,
			goods_services,
			content=trademarks,
			content_rowid=rowid,
			tokenize='unicode61'
		)`,

		// FTS sync triggers.
		`CREATE TRIGGER IF NOT EXISTS trademarks_ai AFTER INSERT ON trademarks BEGIN
			INSERT INTO trademarks_fts(rowid, title_korean, title_english, goods_services)
			VALUES (new.rowid, new.title_korean, new.title_english, new.goods_services);
		END`,

		`CREATE TRIGGER IF NOT EXISTS trademarks_ad AFTER DELETE ON trademarks BEGIN
			INSERT INTO trademarks_fts(trademarks_fts, rowid, title_korean, title_english, goods_services)
			VALUES ('delete', old.rowid, old.title_korean, old.title_english, old.goods_services);
		END`,

		`CREATE TRIGGER IF NOT EXISTS trademarks_au AFTER UPDATE ON trademarks BEGIN
			INSERT INTO trademarks_fts(trademarks_fts, rowid, title_korean, title_english, goods_services)
			VALUES ('delete', old.rowid, old.title_korean, old.title_english, old.goods_services);
			INSERT INTO trademarks_fts(rowid, title_korean, title_english, goods_services)
			VALUES (new.rowid, new.title_korean, new.title_english, new.goods_services);
		END`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}
