package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS canonical_thread (
            id UUID PRIMARY KEY,
            parent_id UUID REFERENCES canonical_thread(id),
            hash BIGINT,
            parent_hash BIGINT,
            thread_length INTEGER NOT NULL CHECK (thread_length >= 1),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_canonical_thread_hash_length ON canonical_thread(hash, thread_length)`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_thread_length ON canonical_thread(thread_length)`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_thread_parent_id ON canonical_thread(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_thread_orphans ON canonical_thread(thread_length)
            WHERE parent_hash IS NOT NULL AND parent_id IS NULL`,
		`CREATE TABLE IF NOT EXISTS document (
            id UUID PRIMARY KEY,
            file_name VARCHAR(255) NOT NULL UNIQUE,
            cano_id UUID NOT NULL REFERENCES canonical_thread(id),
            raw_content TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_document_cano_id ON document(cano_id)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id BIGSERIAL PRIMARY KEY,
            resource VARCHAR(50) NOT NULL,
            action VARCHAR(50) NOT NULL,
            content JSONB,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// VerifyInvariants rejects persisted state that violates the hierarchy
// contract: every linked child must be exactly one part longer than its
// parent. Rows written by an incompatible splitter variant surface here.
func (s *PostgresStore) VerifyInvariants(ctx context.Context) error {
	query := `
		SELECT COUNT(*)
		FROM canonical_thread child
		JOIN canonical_thread parent ON child.parent_id = parent.id
		WHERE child.thread_length != parent.thread_length + 1
	`
	var violations int
	if err := s.DB.QueryRowContext(ctx, query).Scan(&violations); err != nil {
		return fmt.Errorf("failed to check length invariant: %w", err)
	}
	if violations > 0 {
		return apperrors.WrapErrorf(apperrors.ErrCorruption, "%d canonical threads violate the length invariant", violations)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}
