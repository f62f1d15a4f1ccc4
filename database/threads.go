package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/molly-mint-choco/email-dedup/dedup"
	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

const uniqueViolationCode = "23505"

// WithinTx runs fn inside one transaction, the unit of work for a single
// file ingest. The transaction commits only if fn returns nil; every other
// exit path rolls back.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx dedup.ThreadStore) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.WrapError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(&threadTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.WrapError(err, "failed to commit transaction")
	}
	return nil
}

// threadTx implements the engine's store contract on one transaction.
type threadTx struct {
	tx *sql.Tx
}

func (t *threadTx) FindCandidatesByLength(ctx context.Context, length int) ([]dedup.CanonicalThread, error) {
	query := `
		SELECT id, parent_id, hash, parent_hash, thread_length, created_at, updated_at
		FROM canonical_thread
		WHERE thread_length = $1
		ORDER BY created_at ASC, id ASC
	`
	return t.queryThreads(ctx, query, length)
}

func (t *threadTx) FindOrphanCandidatesByLength(ctx context.Context, length int) ([]dedup.CanonicalThread, error) {
	query := `
		SELECT id, parent_id, hash, parent_hash, thread_length, created_at, updated_at
		FROM canonical_thread
		WHERE thread_length = $1 AND parent_hash IS NOT NULL AND parent_id IS NULL
		ORDER BY created_at ASC, id ASC
	`
	return t.queryThreads(ctx, query, length)
}

func (t *threadTx) queryThreads(ctx context.Context, query string, length int) ([]dedup.CanonicalThread, error) {
	rows, err := t.tx.QueryContext(ctx, query, length)
	if err != nil {
		return nil, wrapStoreError(err, "failed to query canonical threads")
	}
	defer rows.Close()

	var threads []dedup.CanonicalThread
	for rows.Next() {
		var ct dedup.CanonicalThread
		var parentID sql.NullString
		var hash, parentHash sql.NullInt64
		if err := rows.Scan(&ct.ID, &parentID, &hash, &parentHash, &ct.ThreadLength, &ct.CreatedAt, &ct.UpdatedAt); err != nil {
			return nil, wrapStoreError(err, "failed to scan canonical thread row")
		}
		if parentID.Valid {
			parsed, err := uuid.Parse(parentID.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse parent ID from database: %w", err)
			}
			ct.ParentID = &parsed
		}
		ct.Hash = nullInt64ToFingerprint(hash)
		ct.ParentHash = nullInt64ToFingerprint(parentHash)
		threads = append(threads, ct)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(err, "error iterating canonical thread rows")
	}
	return threads, nil
}

func (t *threadTx) InsertCanonicalThread(ctx context.Context, ct *dedup.CanonicalThread) error {
	query := `
		INSERT INTO canonical_thread (id, parent_id, hash, parent_hash, thread_length, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	var parentID sql.NullString
	if ct.ParentID != nil {
		parentID = sql.NullString{String: ct.ParentID.String(), Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, query,
		ct.ID,
		parentID,
		fingerprintToNullInt64(ct.Hash),
		fingerprintToNullInt64(ct.ParentHash),
		ct.ThreadLength,
		time.Now(),
	)
	if err != nil {
		return wrapStoreError(err, "failed to insert canonical thread")
	}
	return nil
}

func (t *threadTx) InsertDocument(ctx context.Context, doc *dedup.Document) error {
	query := `
		INSERT INTO document (id, file_name, cano_id, raw_content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := t.tx.ExecContext(ctx, query, doc.ID, doc.FileName, doc.CanoID, doc.RawContent, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.WrapErrorf(apperrors.ErrDuplicateDocument, "file %q", doc.FileName)
		}
		return wrapStoreError(err, "failed to insert document")
	}
	return nil
}

func (t *threadTx) SetParent(ctx context.Context, childID, parentID uuid.UUID) error {
	query := `
		UPDATE canonical_thread
		SET parent_id = $2, updated_at = NOW()
		WHERE id = $1 AND (parent_id IS NULL OR parent_id = $2)
	`
	result, err := t.tx.ExecContext(ctx, query, childID, parentID)
	if err != nil {
		return wrapStoreError(err, "failed to set parent")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapStoreError(err, "failed to get rows affected")
	}
	if affected == 0 {
		// Either the child does not exist or it is already linked to a
		// different parent.
		var existing sql.NullString
		err := t.tx.QueryRowContext(ctx, `SELECT parent_id FROM canonical_thread WHERE id = $1`, childID).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.WrapErrorf(apperrors.ErrNotFound, "canonical thread %s", childID)
		}
		if err != nil {
			return wrapStoreError(err, "failed to re-read child thread")
		}
		return apperrors.WrapErrorf(apperrors.ErrStore, "thread %s already linked to parent %s", childID, existing.String)
	}
	return nil
}

// Read operations for the query layer run outside any unit of work.

func (s *PostgresStore) GetCanoIDByFileName(ctx context.Context, fileName string) (uuid.UUID, error) {
	var canoID uuid.UUID
	err := s.DB.QueryRowContext(ctx, `SELECT cano_id FROM document WHERE file_name = $1`, fileName).Scan(&canoID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "document %q", fileName)
	}
	if err != nil {
		return uuid.Nil, wrapStoreError(err, "failed to look up document")
	}
	return canoID, nil
}

func (s *PostgresStore) GetFileNamesByCanoID(ctx context.Context, canoID uuid.UUID) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT file_name FROM document WHERE cano_id = $1 ORDER BY created_at ASC`, canoID)
	if err != nil {
		return nil, wrapStoreError(err, "failed to query documents")
	}
	defer rows.Close()

	var fileNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapStoreError(err, "failed to scan document row")
		}
		fileNames = append(fileNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(err, "error iterating document rows")
	}
	return fileNames, nil
}

func (s *PostgresStore) GetParentID(ctx context.Context, canoID uuid.UUID) (*uuid.UUID, error) {
	var parentID sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT parent_id FROM canonical_thread WHERE id = $1`, canoID).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "canonical thread %s", canoID)
	}
	if err != nil {
		return nil, wrapStoreError(err, "failed to look up parent")
	}
	if !parentID.Valid {
		return nil, nil
	}
	parsed, err := uuid.Parse(parentID.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse parent ID from database: %w", err)
	}
	return &parsed, nil
}

func (s *PostgresStore) GetChildrenIDs(ctx context.Context, canoID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM canonical_thread WHERE parent_id = $1 ORDER BY created_at ASC`, canoID)
	if err != nil {
		return nil, wrapStoreError(err, "failed to query children")
	}
	defer rows.Close()

	var children []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStoreError(err, "failed to scan child row")
		}
		children = append(children, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(err, "error iterating child rows")
	}
	return children, nil
}

// Fingerprints are 64-bit unsigned; BIGINT holds them bit-for-bit through
// an int64 cast.

func fingerprintToNullInt64(fp *uint64) sql.NullInt64 {
	if fp == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*fp), Valid: true}
}

func nullInt64ToFingerprint(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	fp := uint64(v.Int64)
	return &fp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func wrapStoreError(err error, message string) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrStore, message, err)
}
