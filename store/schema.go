package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Query audit log: one row per synthesized statement
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    request_id TEXT NOT NULL,
    prompt TEXT NOT NULL,
    db_name TEXT,
    statement TEXT NOT NULL,
    provenance TEXT NOT NULL,
    succeeded INTEGER NOT NULL DEFAULT 0,
    backend TEXT,
    model TEXT,
    raw_response TEXT,
    explanation TEXT,
    record_count INTEGER,
    elapsed_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Few-shot example library: request -> statement pairs per database
CREATE TABLE IF NOT EXISTS examples (
    id INTEGER PRIMARY KEY,
    db_name TEXT NOT NULL DEFAULT '',
    request TEXT NOT NULL,
    statement TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT 'manual',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(db_name, request)
);

-- Request embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_examples USING vec0(
    example_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search over requests and statements via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS examples_fts USING fts5(
    request,
    statement,
    content='examples',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS examples_ai AFTER INSERT ON examples BEGIN
    INSERT INTO examples_fts(rowid, request, statement) VALUES (new.id, new.request, new.statement);
END;
CREATE TRIGGER IF NOT EXISTS examples_ad AFTER DELETE ON examples BEGIN
    INSERT INTO examples_fts(examples_fts, rowid, request, statement) VALUES ('delete', old.id, old.request, old.statement);
END;
CREATE TRIGGER IF NOT EXISTS examples_au AFTER UPDATE ON examples BEGIN
    INSERT INTO examples_fts(examples_fts, rowid, request, statement) VALUES ('delete', old.id, old.request, old.statement);
    INSERT INTO examples_fts(rowid, request, statement) VALUES (new.id, new.request, new.statement);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at);
CREATE INDEX IF NOT EXISTS idx_query_log_request ON query_log(request_id);
CREATE INDEX IF NOT EXISTS idx_examples_database ON examples(db_name);
`, embeddingDim)
}
