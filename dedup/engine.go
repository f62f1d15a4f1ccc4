package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

// Engine ingests one file at a time into the thread DAG: it deduplicates
// the content against same-length canonical threads, links new threads to
// their parent when the parent already exists, and adopts waiting orphans
// when the new thread turns out to be their parent.
type Engine struct {
	store  Store
	fp     *Fingerprinter
	oracle DistanceOracle
	logger *zap.Logger
}

// Result describes the post-state of one ingest.
type Result struct {
	DocID         uuid.UUID
	CanoID        uuid.UUID
	ThreadLength  int
	CreatedThread bool
	ParentLinked  bool
	AdoptedCount  int
}

func NewEngine(store Store, fp *Fingerprinter, oracle DistanceOracle, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		fp:     fp,
		oracle: oracle,
		logger: logger,
	}
}

// Ingest processes one file into the store. All writes for the file happen
// inside a single transaction: on any error nothing is persisted. The
// engine never retries; redelivery is the worker's concern.
func (e *Engine) Ingest(ctx context.Context, fileName, rawContent string) (Result, error) {
	start := time.Now()

	parts := Split(rawContent)
	threadLength := len(parts)

	fpFull, err := e.fp.Fingerprint(ctx, rawContent)
	if err != nil {
		return Result{}, apperrors.WrapError(err, "fingerprint full content")
	}

	e.logger.Debug("Prepared file for ingest",
		zap.String("file_name", fileName),
		zap.Int("thread_length", threadLength),
		zap.Uint64("hash", fpFull))

	var result Result
	err = e.store.WithinTx(ctx, func(tx ThreadStore) error {
		canoID, created, err := e.bindThread(ctx, tx, fileName, rawContent, parts, threadLength, fpFull, &result)
		if err != nil {
			return err
		}

		doc := &Document{
			ID:         uuid.New(),
			FileName:   fileName,
			RawContent: rawContent,
			CanoID:     canoID,
		}
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}

		result.DocID = doc.ID
		result.CanoID = canoID
		result.ThreadLength = threadLength
		result.CreatedThread = created
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.logger.Info("Finished processing file",
		zap.String("file_name", fileName),
		zap.String("cano_id", result.CanoID.String()),
		zap.Bool("created_thread", result.CreatedThread),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// bindThread resolves the canonical thread for the content: an existing
// near-duplicate of the same length, or a freshly inserted thread with its
// parent link and orphan adoptions applied.
func (e *Engine) bindThread(ctx context.Context, tx ThreadStore, fileName, rawContent string, parts []Part, threadLength int, fpFull uint64, result *Result) (uuid.UUID, bool, error) {
	candidates, err := tx.FindCandidatesByLength(ctx, threadLength)
	if err != nil {
		return uuid.Nil, false, err
	}
	e.logger.Debug("Length-match candidates found",
		zap.String("file_name", fileName),
		zap.Int("candidates", len(candidates)))

	for i := range candidates {
		cand := &candidates[i]
		if cand.Hash == nil {
			continue
		}
		if e.oracle.NearDuplicate(fpFull, *cand.Hash) {
			e.logger.Info("Duplicate detected",
				zap.String("file_name", fileName),
				zap.String("cano_id", cand.ID.String()))
			return cand.ID, false, nil
		}
	}

	newThread := &CanonicalThread{
		ID:           uuid.New(),
		Hash:         &fpFull,
		ThreadLength: threadLength,
	}

	if threadLength > 1 {
		if err := e.linkParent(ctx, tx, rawContent, parts, newThread); err != nil {
			return uuid.Nil, false, err
		}
		result.ParentLinked = newThread.ParentID != nil
	}

	if err := tx.InsertCanonicalThread(ctx, newThread); err != nil {
		return uuid.Nil, false, err
	}

	adopted, err := e.adoptOrphans(ctx, tx, newThread, fpFull, threadLength)
	if err != nil {
		return uuid.Nil, false, err
	}
	result.AdoptedCount = adopted

	return newThread.ID, true, nil
}

// linkParent fingerprints the thread suffix (everything but the most
// recent part) and links the new thread to the first same-threshold match
// among threads one part shorter. No match is not an error: the parent may
// simply not have arrived yet.
func (e *Engine) linkParent(ctx context.Context, tx ThreadStore, rawContent string, parts []Part, newThread *CanonicalThread) error {
	suffix := Suffix(rawContent, parts)
	fpParent, err := e.fp.Fingerprint(ctx, suffix)
	if err != nil {
		return apperrors.WrapError(err, "fingerprint parent suffix")
	}
	newThread.ParentHash = &fpParent

	parentCandidates, err := tx.FindCandidatesByLength(ctx, newThread.ThreadLength-1)
	if err != nil {
		return err
	}
	for i := range parentCandidates {
		cand := &parentCandidates[i]
		if cand.Hash == nil {
			continue
		}
		if e.oracle.NearDuplicate(fpParent, *cand.Hash) {
			parentID := cand.ID
			newThread.ParentID = &parentID
			e.logger.Info("Parent found",
				zap.String("cano_id", newThread.ID.String()),
				zap.String("parent_id", parentID.String()))
			return nil
		}
	}

	e.logger.Warn("Parent hash not found in store",
		zap.Int("thread_length", newThread.ThreadLength),
		zap.Uint64("parent_hash", fpParent))
	return nil
}

// adoptOrphans scans unlinked threads one part longer than the new thread
// and links every one whose parent fingerprint matches the new thread's
// content. The full list is scanned so one parent can adopt several
// children.
func (e *Engine) adoptOrphans(ctx context.Context, tx ThreadStore, newThread *CanonicalThread, fpFull uint64, threadLength int) (int, error) {
	orphans, err := tx.FindOrphanCandidatesByLength(ctx, threadLength+1)
	if err != nil {
		return 0, err
	}

	adopted := 0
	for i := range orphans {
		orphan := &orphans[i]
		if orphan.ParentHash == nil {
			continue
		}
		if !e.oracle.NearDuplicate(fpFull, *orphan.ParentHash) {
			continue
		}
		if err := tx.SetParent(ctx, orphan.ID, newThread.ID); err != nil {
			return 0, err
		}
		adopted++
		e.logger.Info("Adopted orphan thread",
			zap.String("orphan_id", orphan.ID.String()),
			zap.String("parent_id", newThread.ID.String()))
	}
	return adopted, nil
}
