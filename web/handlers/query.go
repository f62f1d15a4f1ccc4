package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

// ThreadQueries is the lookup surface the HTTP layer exposes.
type ThreadQueries interface {
	CanonicalOf(ctx context.Context, fileName string) (uuid.UUID, error)
	DocumentsOf(ctx context.Context, canoID uuid.UUID) ([]string, error)
	ChildrenOf(ctx context.Context, canoID uuid.UUID) ([]uuid.UUID, error)
	ParentOf(ctx context.Context, canoID uuid.UUID) (*uuid.UUID, error)
	UpstreamChain(ctx context.Context, canoID uuid.UUID) (string, error)
}

type QueryHandler struct {
	queries ThreadQueries
	logger  *zap.Logger
}

func NewQueryHandler(queries ThreadQueries, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, logger: logger}
}

// GetCanonicalID handles GET /emails/document/:file_name/canonical-id
func (h *QueryHandler) GetCanonicalID(c *gin.Context) {
	fileName := c.Param("file_name")

	canoID, err := h.queries.CanonicalOf(c.Request.Context(), fileName)
	if err != nil {
		if apperrors.IsNotFound(err) {
			respondWithClientError(c, http.StatusNotFound, fmt.Sprintf("Document '%s' not found.", fileName))
			return
		}
		respondWithError(c, http.StatusInternalServerError, err, "Lookup failed", h.logger,
			zap.String("file_name", fileName))
		return
	}
	c.JSON(http.StatusOK, canoID)
}

// GetDocuments handles GET /emails/canonical-thread/:cano_id/documents
func (h *QueryHandler) GetDocuments(c *gin.Context) {
	canoID, ok := h.parseCanoID(c)
	if !ok {
		return
	}

	documents, err := h.queries.DocumentsOf(c.Request.Context(), canoID)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Lookup failed", h.logger,
			zap.String("cano_id", canoID.String()))
		return
	}
	if documents == nil {
		documents = []string{}
	}
	c.JSON(http.StatusOK, documents)
}

// GetChildren handles GET /emails/canonical-thread/:cano_id/children
func (h *QueryHandler) GetChildren(c *gin.Context) {
	canoID, ok := h.parseCanoID(c)
	if !ok {
		return
	}

	children, err := h.queries.ChildrenOf(c.Request.Context(), canoID)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Lookup failed", h.logger,
			zap.String("cano_id", canoID.String()))
		return
	}
	if len(children) == 0 {
		respondWithClientError(c, http.StatusNotFound,
			fmt.Sprintf("Children not found for given canonical thread: '%s'.", canoID))
		return
	}
	c.JSON(http.StatusOK, children)
}

// GetParent handles GET /emails/canonical-thread/:cano_id/parent
func (h *QueryHandler) GetParent(c *gin.Context) {
	canoID, ok := h.parseCanoID(c)
	if !ok {
		return
	}

	parent, err := h.queries.ParentOf(c.Request.Context(), canoID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			respondWithClientError(c, http.StatusNotFound,
				fmt.Sprintf("Canonical thread '%s' not found.", canoID))
			return
		}
		respondWithError(c, http.StatusInternalServerError, err, "Lookup failed", h.logger,
			zap.String("cano_id", canoID.String()))
		return
	}
	if parent == nil {
		respondWithClientError(c, http.StatusNotFound,
			fmt.Sprintf("Parent not found for given canonical thread: '%s'.", canoID))
		return
	}
	c.JSON(http.StatusOK, parent)
}

// GetUpstreamChain handles GET /emails/canonical-thread/:cano_id/upstream
func (h *QueryHandler) GetUpstreamChain(c *gin.Context) {
	canoID, ok := h.parseCanoID(c)
	if !ok {
		return
	}

	chain, err := h.queries.UpstreamChain(c.Request.Context(), canoID)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Lookup failed", h.logger,
			zap.String("cano_id", canoID.String()))
		return
	}
	c.JSON(http.StatusOK, chain)
}

func (h *QueryHandler) parseCanoID(c *gin.Context) (uuid.UUID, bool) {
	canoID, err := uuid.Parse(c.Param("cano_id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid canonical thread ID")
		return uuid.Nil, false
	}
	return canoID, true
}
