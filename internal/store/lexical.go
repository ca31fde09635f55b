package store

import (
	"context"
	"fmt"
	"strings"
)

// SearchLexical runs a BM25 full-text query over titles and goods/services.
// Returns hits ordered best-first with positive scores (negated FTS5 bm25,
// which reports better matches as more negative). Terms are quoted so user
// input cannot inject FTS5 query syntax.
func (s *SQLiteStore) SearchLexical(ctx context.Context, query string, topn int) ([]Hit, error) {
	if topn <= 0 {
		topn = 10
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.application_number, -bm25(trademarks_fts) AS score
		 FROM trademarks_fts f
		 JOIN trademarks t ON t.rowid = f.rowid
		 WHERE trademarks_fts MATCH ?
		 ORDER BY bm25(trademarks_fts)
		 LIMIT ?`, match, topn)
	if err != nil {
		return nil, fmt.Errorf("lexical query failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, fmt.Errorf("scanning lexical row: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery quotes each whitespace-separated term and joins with OR: any
// term variant may match, ranking handles relevance.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}
