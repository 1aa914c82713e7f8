package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records of one collection in SQLite and ranks queries
// with the FTS5 bm25 score.
type SQLiteStore struct {
	db         *sql.DB
	collection string
}

func NewSQLiteStore(path, collection string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create memory db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, collection: collection}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_collection_type ON memories(collection, type);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(memory_id UNINDEXED, content, tokenize='unicode61 remove_diacritics 2');`,
		`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(memory_id, content) VALUES (new.id, new.content);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			DELETE FROM memories_fts WHERE memory_id = old.id;
		END;`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Add(ctx context.Context, rec Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories(id, collection, type, content, metadata_json, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, s.collection, rec.Metadata[KeyType], rec.Content, string(meta), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, text string, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	match := ftsQuery(text)
	if match == "" {
		return []Hit{}, nil
	}

	q := `
SELECT m.id, m.content, m.metadata_json, bm25(memories_fts)
FROM memories_fts
JOIN memories m ON m.id = memories_fts.memory_id
WHERE memories_fts MATCH ?
AND m.collection = ?`
	args := []any{match, s.collection}
	if filter.Type != "" {
		q += "\nAND m.type = ?"
		args = append(args, filter.Type)
	}
	q += "\nORDER BY bm25(memories_fts), m.created_at_ms DESC\nLIMIT ?"
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	out := []Hit{}
	for rows.Next() {
		var h Hit
		var meta string
		var score float64
		if err := rows.Scan(&h.ID, &h.Content, &meta, &score); err != nil {
			return nil, fmt.Errorf("scan memory hit: %w", err)
		}
		h.Metadata = decodeMeta(meta)
		h.Distance = bm25Distance(score)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory hits: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata_json FROM memories WHERE collection = ? ORDER BY created_at_ms, id`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		var meta string
		if err := rows.Scan(&r.ID, &r.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		r.Metadata = decodeMeta(meta)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ? AND collection = ?`, id, s.collection); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete memory %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE collection = ?`, s.collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// ftsQuery quotes every query term and ORs them together.
func ftsQuery(text string) string {
	terms := tokens(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// bm25 scores are negative, more negative is better; map them into (0, 1].
func bm25Distance(score float64) float64 {
	rel := -score
	if rel < 0 {
		rel = 0
	}
	return 1 / (1 + rel)
}

func decodeMeta(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
