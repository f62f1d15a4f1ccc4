package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

// stubQueries serves canned hierarchy answers to the handlers under test.
type stubQueries struct {
	canoByFile map[string]uuid.UUID
	filesByID  map[uuid.UUID][]string
	parents    map[uuid.UUID]*uuid.UUID
	children   map[uuid.UUID][]uuid.UUID
	chains     map[uuid.UUID]string
}

func (s *stubQueries) CanonicalOf(ctx context.Context, fileName string) (uuid.UUID, error) {
	if id, ok := s.canoByFile[fileName]; ok {
		return id, nil
	}
	return uuid.Nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "document %q", fileName)
}

func (s *stubQueries) DocumentsOf(ctx context.Context, canoID uuid.UUID) ([]string, error) {
	return s.filesByID[canoID], nil
}

func (s *stubQueries) ChildrenOf(ctx context.Context, canoID uuid.UUID) ([]uuid.UUID, error) {
	return s.children[canoID], nil
}

func (s *stubQueries) ParentOf(ctx context.Context, canoID uuid.UUID) (*uuid.UUID, error) {
	parent, ok := s.parents[canoID]
	if !ok {
		return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "canonical thread %s", canoID)
	}
	return parent, nil
}

func (s *stubQueries) UpstreamChain(ctx context.Context, canoID uuid.UUID) (string, error) {
	return s.chains[canoID], nil
}

func newTestRouter(queries *stubQueries) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	handler := NewQueryHandler(queries, logger)

	router := gin.New()
	emails := router.Group("/emails")
	emails.GET("/document/:file_name/canonical-id", handler.GetCanonicalID)
	emails.GET("/canonical-thread/:cano_id/documents", handler.GetDocuments)
	emails.GET("/canonical-thread/:cano_id/children", handler.GetChildren)
	emails.GET("/canonical-thread/:cano_id/parent", handler.GetParent)
	emails.GET("/canonical-thread/:cano_id/upstream", handler.GetUpstreamChain)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetCanonicalID(t *testing.T) {
	canoID := uuid.New()
	router := newTestRouter(&stubQueries{canoByFile: map[string]uuid.UUID{"a.txt": canoID}})

	rec := doRequest(t, router, "/emails/document/a.txt/canonical-id")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got uuid.UUID
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got != canoID {
		t.Errorf("body = %s, want %s", got, canoID)
	}
}

func TestGetCanonicalIDNotFound(t *testing.T) {
	router := newTestRouter(&stubQueries{canoByFile: map[string]uuid.UUID{}})

	rec := doRequest(t, router, "/emails/document/missing.txt/canonical-id")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetDocumentsEmptyIsOK(t *testing.T) {
	canoID := uuid.New()
	router := newTestRouter(&stubQueries{filesByID: map[uuid.UUID][]string{}})

	rec := doRequest(t, router, "/emails/canonical-thread/"+canoID.String()+"/documents")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("body = %v, want empty array", got)
	}
}

func TestGetDocuments(t *testing.T) {
	canoID := uuid.New()
	files := []string{"a.txt", "a_copy.txt"}
	router := newTestRouter(&stubQueries{filesByID: map[uuid.UUID][]string{canoID: files}})

	rec := doRequest(t, router, "/emails/canonical-thread/"+canoID.String()+"/documents")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 || got[0] != "a.txt" || got[1] != "a_copy.txt" {
		t.Errorf("body = %v, want %v", got, files)
	}
}

func TestGetChildrenEmptyIs404(t *testing.T) {
	canoID := uuid.New()
	router := newTestRouter(&stubQueries{children: map[uuid.UUID][]uuid.UUID{}})

	rec := doRequest(t, router, "/emails/canonical-thread/"+canoID.String()+"/children")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetChildren(t *testing.T) {
	canoID := uuid.New()
	childA := uuid.New()
	childB := uuid.New()
	router := newTestRouter(&stubQueries{
		children: map[uuid.UUID][]uuid.UUID{canoID: {childA, childB}},
	})

	rec := doRequest(t, router, "/emails/canonical-thread/"+canoID.String()+"/children")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []uuid.UUID
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("body has %d ids, want 2", len(got))
	}
}

func TestGetParent(t *testing.T) {
	canoID := uuid.New()
	parentID := uuid.New()
	router := newTestRouter(&stubQueries{
		parents: map[uuid.UUID]*uuid.UUID{canoID: &parentID},
	})

	rec := doRequest(t, router, "/emails/canonical-thread/"+canoID.String()+"/parent")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got uuid.UUID
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got != parentID {
		t.Errorf("body = %s, want %s", got, parentID)
	}
}

func TestGetParentNoneIs404(t *testing.T) {
	canoID := uuid.New()
	router := newTestRouter(&stubQueries{
		parents: map[uuid.UUID]*uuid.UUID{canoID: nil},
	})

	rec := doRequest(t, router, "/emails/canonical-thread/"+canoID.String()+"/parent")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetUpstreamChain(t *testing.T) {
	canoID := uuid.New()
	chain := "root -> mid -> " + canoID.String()
	router := newTestRouter(&stubQueries{
		chains: map[uuid.UUID]string{canoID: chain},
	})

	rec := doRequest(t, router, "/emails/canonical-thread/"+canoID.String()+"/upstream")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got != chain {
		t.Errorf("body = %q, want %q", got, chain)
	}
}

func TestInvalidCanoIDIs400(t *testing.T) {
	router := newTestRouter(&stubQueries{})

	paths := []string{
		"/emails/canonical-thread/not-a-uuid/documents",
		"/emails/canonical-thread/not-a-uuid/children",
		"/emails/canonical-thread/not-a-uuid/parent",
		"/emails/canonical-thread/not-a-uuid/upstream",
	}
	for _, path := range paths {
		rec := doRequest(t, router, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusBadRequest)
		}
	}
}
