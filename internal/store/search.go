package store

import (
	"context"
	"strings"
)

// SearchResult is one ranked hit from a full-text query, scored by
// FTS5's bm25() auxiliary function (lower-is-better internally, negated
// here so higher is better, matching the teacher's SQLiteBM25Index
// convention in sqlite_bm25.go).
type SearchResult struct {
	ID    string
	Score float64
}

// SearchContent runs an FTS5 MATCH query over chunk bodies, ranked by
// bm25(). Empty or whitespace-only queries return no results rather
// than erroring (spec §4.1, matching the teacher's empty-query guard).
func (s *Store) SearchContent(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return s.searchFTS(ctx, query, limit, `
		SELECT cc.content_id, bm25(content_fts) AS score
		FROM content_fts
		JOIN content_chunks cc ON cc.rowid = content_fts.rowid
		WHERE content_fts MATCH ?
		GROUP BY cc.content_id
		ORDER BY MIN(score)
		LIMIT ?`)
}

// SearchDocuments runs an FTS5 MATCH query over content title/description.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return s.searchFTS(ctx, query, limit, `
		SELECT c.id, bm25(doc_fts) AS score
		FROM doc_fts
		JOIN content c ON c.rowid = doc_fts.rowid
		WHERE doc_fts MATCH ?
		ORDER BY score
		LIMIT ?`)
}

// SearchEntities runs an FTS5 MATCH query over entity name/type/description.
func (s *Store) SearchEntities(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return s.searchFTS(ctx, query, limit, `
		SELECT e.id, bm25(entity_fts) AS score
		FROM entity_fts
		JOIN entities e ON e.rowid = entity_fts.rowid
		WHERE entity_fts MATCH ?
		ORDER BY score
		LIMIT ?`)
}

func (s *Store) searchFTS(ctx context.Context, query string, limit int, sqlQuery string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 25
	}

	s.recordSearchTerm(ctx, query)

	rows, err := s.Query(ctx, sqlQuery, query, limit)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "fts5") {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Score); err != nil {
			return nil, wrapSQLError(err)
		}
		r.Score = -r.Score
		out = append(out, r)
	}
	return out, rows.Err()
}

// recordSearchTerm is a best-effort bump of search_terms bookkeeping; a
// failure here must never fail the search itself.
func (s *Store) recordSearchTerm(ctx context.Context, term string) {
	_ = s.exec2(ctx, `
		INSERT INTO search_terms(id, term, search_count, last_searched_at, created_at)
		VALUES(lower(hex(randomblob(16))), ?, 1, datetime('now'), datetime('now'))
		ON CONFLICT(term) DO UPDATE SET
		  search_count = search_terms.search_count + 1, last_searched_at = datetime('now')`, term)
}
