package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CanonicalThread is one equivalence class of near-duplicate full-thread
// contents at a given length. ParentHash is the fingerprint of the thread
// minus its most recent part; it is nil for single-part threads. ParentID
// stays nil until the matching shorter thread is ingested.
type CanonicalThread struct {
	ID           uuid.UUID
	Hash         *uint64
	ParentHash   *uint64
	ThreadLength int
	ParentID     *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOrphan reports whether the thread knows its parent's fingerprint but has
// not been linked to a parent row yet.
func (ct *CanonicalThread) IsOrphan() bool {
	return ct.ParentHash != nil && ct.ParentID == nil
}

// Document is one ingested file bound to exactly one canonical thread.
type Document struct {
	ID         uuid.UUID
	FileName   string
	RawContent string
	CanoID     uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ThreadStore is the persistence contract the engine writes through. All
// calls made within one Ingest run against the same transaction.
type ThreadStore interface {
	// FindCandidatesByLength returns all canonical threads with the given
	// length, ordered by creation time ascending.
	FindCandidatesByLength(ctx context.Context, length int) ([]CanonicalThread, error)
	// FindOrphanCandidatesByLength returns threads of the given length that
	// have a parent fingerprint but no parent link, same ordering.
	FindOrphanCandidatesByLength(ctx context.Context, length int) ([]CanonicalThread, error)
	InsertCanonicalThread(ctx context.Context, ct *CanonicalThread) error
	InsertDocument(ctx context.Context, doc *Document) error
	// SetParent links child to parent. Idempotent for an equal value;
	// fails if a different parent is already set.
	SetParent(ctx context.Context, childID, parentID uuid.UUID) error
}

// Store opens unit-of-work transactions for the engine. The callback's
// writes become visible atomically on commit; any error rolls back.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx ThreadStore) error) error
}
