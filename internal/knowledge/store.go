// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge indexes a plain-text source file into an on-disk
// SQLite database and answers questions from it. Text is split into
// overlapping chunks, mirrored into an FTS5 table for keyword ranking, and
// optionally embedded for semantic re-ranking.
//
// FTS5 is compiled into mattn/go-sqlite3 only with the sqlite_fts5 build
// tag: build and test with -tags sqlite_fts5 (mage build and mage test do).
package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/search-agent/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "knowledge.db"
)

var (
	// ErrSourceNotFound is returned by Load when the source file does not exist.
	ErrSourceNotFound = errors.New("knowledge source not found")

	// ErrEmptyQuery is returned by Retrieve for a blank query.
	ErrEmptyQuery = errors.New("knowledge query is empty")

	// ErrFTS5Unavailable is returned by NewStore when the SQLite driver was
	// built without FTS5.
	ErrFTS5Unavailable = errors.New("sqlite built without FTS5: rebuild with -tags sqlite_fts5")
)

// Store manages the knowledge base SQLite database.
type Store struct {
	db       *sql.DB
	dir      string
	cfg      types.KnowledgeBaseConfig
	embedder Embedder
}

// NewStore opens or creates the database at KnowledgeDir/index/knowledge.db.
// A nil embedder indexes text only; retrieval then ranks by full-text
// relevance alone.
func NewStore(cfg types.KnowledgeBaseConfig, embedder Embedder) (*Store, error) {
	cfg = cfg.WithDefaults()
	dbDir := filepath.Join(cfg.KnowledgeDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:       db,
		dir:      cfg.KnowledgeDir,
		cfg:      cfg,
		embedder: embedder,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			path TEXT PRIMARY KEY,
			mod_time TEXT NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL REFERENCES sources(path) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source, seq)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE chunks_fts USING fts5(content, content=chunks, content_rowid=rowid)`,
			`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// ftsError turns SQLite's missing-module error into ErrFTS5Unavailable.
func ftsError(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such module: fts5") {
		return fmt.Errorf("%w (%v)", ErrFTS5Unavailable, err)
	}
	return err
}

// LoadSummary reports what a Load call did.
type LoadSummary struct {
	Source   string
	Chunks   int
	Embedded int
	Skipped  bool
	Updated  bool
}

// Load indexes the text file at path. An unchanged file (same modification
// time as when it was last indexed) is skipped unless recreate is set or an
// embedder is configured and some of its chunks have no embedding.
// recreate replaces the whole index with this file once it has been read
// and embedded. Progress lines are written to w.
func (s *Store) Load(ctx context.Context, path string, recreate bool, w io.Writer) (LoadSummary, error) {
	if w == nil {
		w = io.Discard
	}
	source := filepath.Clean(path)
	summary := LoadSummary{Source: source}

	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return summary, fmt.Errorf("%s: %w", source, ErrSourceNotFound)
		}
		return summary, fmt.Errorf("reading %s: %w", source, err)
	}
	if info.IsDir() {
		return summary, fmt.Errorf("%s is a directory, not a text file", source)
	}
	modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

	if !recreate {
		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT mod_time FROM sources WHERE path = ?`, source,
		).Scan(&storedModTime)
		switch {
		case err == nil && storedModTime == modTime:
			missing, err := s.missingEmbeddings(ctx, source)
			if err != nil {
				return summary, err
			}
			if !missing {
				fmt.Fprintf(w, "skipped %s (unchanged)\n", source)
				summary.Skipped = true
				return summary, nil
			}
			summary.Updated = true
		case err == nil:
			summary.Updated = true
		case !errors.Is(err, sql.ErrNoRows):
			return summary, fmt.Errorf("looking up source: %w", err)
		}
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return summary, fmt.Errorf("reading %s: %w", source, err)
	}
	pieces := Split(string(data), s.cfg.ChunkSize, s.cfg.ChunkOverlap)

	var vectors [][]float32
	if s.embedder != nil && len(pieces) > 0 {
		vectors, err = s.embedder.Embed(ctx, pieces)
		if err != nil {
			return summary, fmt.Errorf("embedding %s: %w", source, err)
		}
		if len(vectors) != len(pieces) {
			return summary, fmt.Errorf("embedding %s: got %d vectors for %d chunks", source, len(vectors), len(pieces))
		}
	}

	if err := s.replaceSource(ctx, source, modTime, pieces, vectors, recreate); err != nil {
		return summary, err
	}
	if recreate {
		fmt.Fprintf(w, "cleared index\n")
	}

	summary.Chunks = len(pieces)
	summary.Embedded = len(vectors)
	if summary.Updated {
		fmt.Fprintf(w, "updated %s (%d chunks)\n", source, len(pieces))
	} else {
		fmt.Fprintf(w, "indexed %s (%d chunks)\n", source, len(pieces))
	}
	return summary, nil
}

// missingEmbeddings reports whether an embedder is configured and any chunk
// of source was stored without an embedding.
func (s *Store) missingEmbeddings(ctx context.Context, source string) (bool, error) {
	if s.embedder == nil {
		return false, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM chunks WHERE source = ? AND embedding IS NULL`, source,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking embeddings: %w", err)
	}
	return n > 0, nil
}

// replaceSource swaps the chunks of source in one transaction. With clearAll
// every other source is dropped too, so a failed reload keeps the old index.
func (s *Store) replaceSource(ctx context.Context, source, modTime string, pieces []string, vectors [][]float32, clearAll bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if clearAll {
		for _, stmt := range []string{`DELETE FROM chunks`, `DELETE FROM sources`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clearing index: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sources (path, mod_time, chunk_count) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mod_time=excluded.mod_time, chunk_count=excluded.chunk_count`,
		source, modTime, len(pieces),
	)
	if err != nil {
		return fmt.Errorf("upserting source: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source, seq, content, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, content := range pieces {
		var blob []byte
		if vectors != nil {
			blob = encodeVector(vectors[i])
		}
		if _, err := stmt.ExecContext(ctx, chunkID(source, i, content), source, i, content, blob); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// chunkID derives a stable identifier from the chunk's source, position,
// and text.
func chunkID(source string, seq int, content string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d\n%s", source, seq, content))).String()
}

// Source describes an indexed file.
type Source struct {
	Path       string `json:"path" yaml:"path"`
	ModTime    string `json:"mod_time" yaml:"mod_time"`
	ChunkCount int    `json:"chunk_count" yaml:"chunk_count"`
}

// Sources lists the indexed files ordered by path.
func (s *Store) Sources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, mod_time, chunk_count FROM sources ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.Path, &src.ModTime, &src.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
