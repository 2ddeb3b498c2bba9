// Package store persists the query audit log and the few-shot example
// library in SQLite, with sqlite-vec for request embeddings and FTS5 for
// keyword search.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrClosed is returned when operating on a closed store.
var ErrClosed = errors.New("store: closed")

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	ID          int64  `json:"id"`
	RequestID   string `json:"request_id"`
	Prompt      string `json:"prompt"`
	Database    string `json:"database,omitempty"`
	Statement   string `json:"statement"`
	Provenance  string `json:"provenance"`
	Succeeded   bool   `json:"succeeded"`
	Backend     string `json:"backend"`
	Model       string `json:"model"`
	RawResponse string `json:"raw_response,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	RecordCount int    `json:"record_count"`
	ElapsedMs   int64  `json:"elapsed_ms"`
	CreatedAt   string `json:"created_at"`
}

// QueryStats aggregates the audit log.
type QueryStats struct {
	Total        int            `json:"total"`
	Generated    int            `json:"generated"`
	Fallback     int            `json:"fallback"`
	Succeeded    int            `json:"succeeded"`
	AvgElapsedMs float64        `json:"avg_elapsed_ms"`
	ByBackend    map[string]int `json:"by_backend"`
}

// Example represents a row in the examples table.
type Example struct {
	ID        int64  `json:"id"`
	Database  string `json:"database"`
	Request   string `json:"request"`
	Statement string `json:"statement"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

// ExampleResult is an example with its search score.
type ExampleResult struct {
	Example
	Score float64 `json:"score"`
}

// DBStats holds row counts for the main tables.
type DBStats struct {
	Queries    int `json:"queries"`
	Examples   int `json:"examples"`
	Embeddings int `json:"embeddings"`
}

// Store wraps the SQLite database for all gocypher persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
	closed       atomic.Bool
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection. Later calls on the
// store return ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

func (s *Store) check() error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// --- Query log ---

// LogQuery writes an entry to the query audit log and returns its id.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (request_id, prompt, db_name, statement, provenance, succeeded,
			backend, model, raw_response, explanation, record_count, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.RequestID, q.Prompt, q.Database, q.Statement, q.Provenance, q.Succeeded,
		q.Backend, q.Model, q.RawResponse, q.Explanation, q.RecordCount, q.ElapsedMs)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AttachResult records the executed record count and explanation against
// the log entries of a request.
func (s *Store) AttachResult(ctx context.Context, requestID string, recordCount int, explanation string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE query_log SET record_count = ?, explanation = ? WHERE request_id = ?",
		recordCount, explanation, requestID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	return nil
}

// RecentQueries returns the newest log entries, optionally restricted to
// one database.
func (s *Store) RecentQueries(ctx context.Context, limit int, database string) ([]QueryLog, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, prompt, COALESCE(db_name, ''), statement, provenance, succeeded,
			COALESCE(backend, ''), COALESCE(model, ''), COALESCE(raw_response, ''),
			COALESCE(explanation, ''), COALESCE(record_count, 0), COALESCE(elapsed_ms, 0), created_at
		FROM query_log`
	args := []any{}
	if database != "" {
		query += " WHERE db_name = ?"
		args = append(args, database)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []QueryLog
	for rows.Next() {
		var q QueryLog
		if err := rows.Scan(&q.ID, &q.RequestID, &q.Prompt, &q.Database, &q.Statement,
			&q.Provenance, &q.Succeeded, &q.Backend, &q.Model, &q.RawResponse,
			&q.Explanation, &q.RecordCount, &q.ElapsedMs, &q.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, q)
	}
	return logs, rows.Err()
}

// QueryStats summarises the audit log.
func (s *Store) QueryStats(ctx context.Context) (*QueryStats, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	stats := &QueryStats{ByBackend: map[string]int{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN provenance = 'generated' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN provenance = 'fallback' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(succeeded), 0),
			COALESCE(AVG(elapsed_ms), 0)
		FROM query_log
	`).Scan(&stats.Total, &stats.Generated, &stats.Fallback, &stats.Succeeded, &stats.AvgElapsedMs)
	if err != nil {
		return nil, fmt.Errorf("aggregating query_log: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(backend, ''), COUNT(*) FROM query_log GROUP BY backend")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var backend string
		var n int
		if err := rows.Scan(&backend, &n); err != nil {
			return nil, err
		}
		stats.ByBackend[backend] = n
	}
	return stats, rows.Err()
}

// --- Example library ---

// InsertExample inserts an example, replacing the statement of an existing
// request for the same database. Returns the example ID.
func (s *Store) InsertExample(ctx context.Context, e Example) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if e.Source == "" {
		e.Source = "manual"
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO examples (db_name, request, statement, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(db_name, request) DO UPDATE SET
			statement = excluded.statement,
			source = excluded.source
		RETURNING id
	`, e.Database, e.Request, e.Statement, e.Source).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetExample returns a single example by ID.
func (s *Store) GetExample(ctx context.Context, id int64) (*Example, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var e Example
	err := s.db.QueryRowContext(ctx, `
		SELECT id, db_name, request, statement, source, created_at FROM examples WHERE id = ?
	`, id).Scan(&e.ID, &e.Database, &e.Request, &e.Statement, &e.Source, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("example %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExamples returns the examples of a database; an empty database name
// lists every example.
func (s *Store) ListExamples(ctx context.Context, database string) ([]Example, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	query := "SELECT id, db_name, request, statement, source, created_at FROM examples"
	args := []any{}
	if database != "" {
		query += " WHERE db_name = ?"
		args = append(args, database)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Example
	for rows.Next() {
		var e Example
		if err := rows.Scan(&e.ID, &e.Database, &e.Request, &e.Statement, &e.Source, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExample removes an example and its embedding.
func (s *Store) DeleteExample(ctx context.Context, id int64) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_examples WHERE example_id = ?", id); err != nil {
			return fmt.Errorf("deleting embedding: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM examples WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting example: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("example %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// InsertExampleEmbedding stores the request embedding of an example.
func (s *Store) InsertExampleEmbedding(ctx context.Context, exampleID int64, embedding []float32) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(embedding), s.embeddingDim)
	}
	// vec0 does not support upsert; replace by delete + insert.
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_examples WHERE example_id = ?", exampleID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO vec_examples (example_id, embedding) VALUES (?, ?)",
			exampleID, serializeFloat32(embedding))
		return err
	})
}

// ExamplesWithoutEmbedding returns examples that have no stored embedding.
func (s *Store) ExamplesWithoutEmbedding(ctx context.Context) ([]Example, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.db_name, e.request, e.statement, e.source, e.created_at
		FROM examples e
		WHERE NOT EXISTS (SELECT 1 FROM vec_examples v WHERE v.example_id = e.id)
		ORDER BY e.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Example
	for rows.Next() {
		var e Example
		if err := rows.Scan(&e.ID, &e.Database, &e.Request, &e.Statement, &e.Source, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// VectorSearchExamples performs a KNN search over request embeddings. The
// KNN runs over all databases; the database filter is applied afterwards,
// so k is over-fetched.
func (s *Store) VectorSearchExamples(ctx context.Context, queryEmbedding []float32, k int, database string) ([]ExampleResult, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	fetch := k
	if database != "" {
		fetch = k * 4
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.example_id, v.distance,
			e.db_name, e.request, e.statement, e.source, e.created_at
		FROM vec_examples v
		JOIN examples e ON e.id = v.example_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), fetch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExampleResult
	for rows.Next() {
		var r ExampleResult
		var distance float64
		if err := rows.Scan(&r.ID, &distance,
			&r.Database, &r.Request, &r.Statement, &r.Source, &r.CreatedAt); err != nil {
			return nil, err
		}
		if database != "" && r.Database != database {
			continue
		}
		// Convert distance to similarity score (1 - distance for cosine)
		r.Score = 1.0 - distance
		results = append(results, r)
		if len(results) == k {
			break
		}
	}
	return results, rows.Err()
}

// FTSSearchExamples performs a full-text search using FTS5 BM25 ranking.
// query must already be valid FTS5 syntax.
func (s *Store) FTSSearchExamples(ctx context.Context, query string, limit int, database string) ([]ExampleResult, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sqlQuery := `
		SELECT f.rowid, f.rank,
			e.db_name, e.request, e.statement, e.source, e.created_at
		FROM examples_fts f
		JOIN examples e ON e.id = f.rowid
		WHERE examples_fts MATCH ?`
	args := []any{query}
	if database != "" {
		sqlQuery += " AND e.db_name = ?"
		args = append(args, database)
	}
	sqlQuery += " ORDER BY f.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExampleResult
	for rows.Next() {
		var r ExampleResult
		var rank float64
		if err := rows.Scan(&r.ID, &rank,
			&r.Database, &r.Request, &r.Statement, &r.Source, &r.CreatedAt); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better), convert to positive score
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// DBStats returns row counts for the log, examples and embeddings.
func (s *Store) DBStats(ctx context.Context) (*DBStats, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM query_log", &stats.Queries},
		{"SELECT COUNT(*) FROM examples", &stats.Examples},
		{"SELECT COUNT(*) FROM vec_examples", &stats.Embeddings},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
