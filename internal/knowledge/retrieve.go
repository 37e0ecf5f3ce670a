// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Weights of the hybrid score. Full-text hits contribute by list position
// so the two signals share a 0..1 scale.
const (
	vectorWeight = 0.7
	textWeight   = 0.3
)

// Match is a retrieved chunk with its score. Higher scores rank first.
type Match struct {
	types.Chunk
	Score float64 `json:"score" yaml:"score"`
}

// Retrieve returns up to limit chunks relevant to query. Chunks are ranked
// by FTS5 BM25 relevance; when an embedder is configured and the index
// holds embeddings, every embedded chunk is scored by cosine similarity to
// the query and blended with its full-text position. A limit of zero uses
// the configured MaxResults.
func (s *Store) Retrieve(ctx context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	textHits, err := s.fullText(ctx, query, limit*4)
	if err != nil {
		return nil, err
	}

	if s.embedder != nil {
		hybrid, ok, err := s.hybrid(ctx, query, textHits)
		if err != nil {
			return nil, err
		}
		if ok {
			textHits = hybrid
		}
	}

	if len(textHits) > limit {
		textHits = textHits[:limit]
	}
	return textHits, nil
}

// fullText runs the FTS5 query and returns hits in rank order.
func (s *Store) fullText(ctx context.Context, query string, limit int) ([]Match, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.source, c.seq, c.content, chunks_fts.rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY chunks_fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge base: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			m    Match
			rank float64
		)
		if err := rows.Scan(&m.ID, &m.Source, &m.Seq, &m.Content, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		// FTS5 rank is negated BM25: smaller is better.
		m.Score = -rank
		out = append(out, m)
	}
	return out, rows.Err()
}

// hybrid scores every embedded chunk against the query embedding. It
// reports false when no chunk has an embedding.
func (s *Store) hybrid(ctx context.Context, query string, textHits []Match) ([]Match, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, seq, content, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, false, fmt.Errorf("loading embeddings: %w", err)
	}
	type candidate struct {
		chunk  types.Chunk
		vector []float32
	}
	var candidates []candidate
	for rows.Next() {
		var (
			c    candidate
			blob []byte
		)
		if err := rows.Scan(&c.chunk.ID, &c.chunk.Source, &c.chunk.Seq, &c.chunk.Content, &blob); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scanning row: %w", err)
		}
		c.vector = decodeVector(blob)
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, false, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, false, fmt.Errorf("embedding query: got %d vectors", len(vectors))
	}
	qv := vectors[0]

	textPos := make(map[string]int, len(textHits))
	for i, h := range textHits {
		textPos[h.ID] = i
	}

	out := make([]Match, len(candidates))
	for i, c := range candidates {
		score := vectorWeight * cosine(qv, c.vector)
		if pos, ok := textPos[c.chunk.ID]; ok {
			score += textWeight / float64(1+pos)
		}
		out[i] = Match{Chunk: c.chunk, Score: score}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Seq < out[j].Seq
	})
	return out, true, nil
}

// ftsQuery turns free text into an FTS5 expression of quoted terms joined
// by OR, so punctuation and FTS operators in the question cannot break the
// query.
func ftsQuery(query string) string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(t)
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Chunks returns every indexed chunk ordered by source and position.
func (s *Store) Chunks(ctx context.Context) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, seq, content, embedding FROM chunks ORDER BY source, seq`)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var (
			c    types.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Seq, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.Embedded = len(blob) > 0
		out = append(out, c)
	}
	return out, rows.Err()
}
