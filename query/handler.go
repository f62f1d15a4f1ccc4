package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// maxChainDepth bounds the upstream walk so a corrupted parent chain can
// never hang a request.
const maxChainDepth = 1000

// HierarchyStore is the read contract the query layer needs from the
// persistence layer.
type HierarchyStore interface {
	GetCanoIDByFileName(ctx context.Context, fileName string) (uuid.UUID, error)
	GetFileNamesByCanoID(ctx context.Context, canoID uuid.UUID) ([]string, error)
	GetParentID(ctx context.Context, canoID uuid.UUID) (*uuid.UUID, error)
	GetChildrenIDs(ctx context.Context, canoID uuid.UUID) ([]uuid.UUID, error)
}

// Handler answers hierarchy lookups over the canonical thread forest. The
// file-name lookup is cached: documents are append-only and a file's
// canonical binding never changes once written.
type Handler struct {
	store  HierarchyStore
	cache  *lru.Cache[string, uuid.UUID]
	logger *zap.Logger
}

func NewHandler(store HierarchyStore, cacheSize int, logger *zap.Logger) (*Handler, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[string, uuid.UUID](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}
	return &Handler{store: store, cache: cache, logger: logger}, nil
}

// CanonicalOf returns the canonical thread id a file was bound to.
func (h *Handler) CanonicalOf(ctx context.Context, fileName string) (uuid.UUID, error) {
	if canoID, ok := h.cache.Get(fileName); ok {
		return canoID, nil
	}
	canoID, err := h.store.GetCanoIDByFileName(ctx, fileName)
	if err != nil {
		return uuid.Nil, err
	}
	h.cache.Add(fileName, canoID)
	return canoID, nil
}

// DocumentsOf returns the file names of all documents in a canonical
// thread. The list may be empty.
func (h *Handler) DocumentsOf(ctx context.Context, canoID uuid.UUID) ([]string, error) {
	return h.store.GetFileNamesByCanoID(ctx, canoID)
}

// ChildrenOf returns the canonical threads directly linked under canoID.
func (h *Handler) ChildrenOf(ctx context.Context, canoID uuid.UUID) ([]uuid.UUID, error) {
	return h.store.GetChildrenIDs(ctx, canoID)
}

// ParentOf returns the parent thread id, or nil for roots and orphans.
func (h *Handler) ParentOf(ctx context.Context, canoID uuid.UUID) (*uuid.UUID, error) {
	return h.store.GetParentID(ctx, canoID)
}

// UpstreamChain walks parent links from canoID to its root and renders the
// chain root-first, ids joined by " -> ". A repeated id means the store
// violates the acyclic invariant; the walk stops there, logs the
// corruption, and returns the chain accumulated so far.
func (h *Handler) UpstreamChain(ctx context.Context, canoID uuid.UUID) (string, error) {
	chain := []string{canoID.String()}
	seen := map[uuid.UUID]bool{canoID: true}

	current := canoID
	for depth := 0; depth < maxChainDepth; depth++ {
		parentID, err := h.store.GetParentID(ctx, current)
		if err != nil {
			return "", err
		}
		if parentID == nil {
			break
		}
		if seen[*parentID] {
			h.logger.Warn("Cycle detected in parent chain",
				zap.String("cano_id", canoID.String()),
				zap.String("repeated_id", parentID.String()))
			break
		}
		seen[*parentID] = true
		chain = append(chain, parentID.String())
		current = *parentID
	}

	// Reverse into root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return strings.Join(chain, " -> "), nil
}
