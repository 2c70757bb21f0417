package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xxxsen/askdoc/internal/pkg/errcode"
	"github.com/xxxsen/askdoc/internal/pkg/response"
	"github.com/xxxsen/askdoc/internal/repo"
	"github.com/xxxsen/askdoc/internal/service"
)

type DocumentHandler struct {
	index      *service.IndexService
	docs       *repo.DocumentRepo
	embeddings *repo.EmbeddingRepo
}

func NewDocumentHandler(index *service.IndexService, docs *repo.DocumentRepo, embeddings *repo.EmbeddingRepo) *DocumentHandler {
	return &DocumentHandler{index: index, docs: docs, embeddings: embeddings}
}

type documentRequest struct {
	DocID    string                 `json:"doc_id"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Content == "" {
		response.Error(c, errcode.ErrInvalid, "content required")
		return
	}
	if req.DocID == "" {
		req.DocID = uuid.NewString()
	}
	if ok := h.index.Ingest(c.Request.Context(), req.DocID, req.Title, req.Content, req.Metadata); !ok {
		response.Error(c, errcode.ErrIndexFailed, "ingest failed")
		return
	}
	response.Success(c, gin.H{"doc_id": req.DocID})
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := parseUintQuery(c, "limit")
	offset := parseUintQuery(c, "offset")
	docs, err := h.docs.List(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// Delete removes the document row and all its vectors.
func (h *DocumentHandler) Delete(c *gin.Context) {
	chunkID := c.Param("id")
	ctx := c.Request.Context()
	if err := h.docs.Delete(ctx, chunkID); err != nil {
		handleError(c, err)
		return
	}
	if err := h.embeddings.DeleteByChunk(ctx, chunkID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": chunkID})
}

func parseUintQuery(c *gin.Context, name string) uint {
	value := c.Query(name)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return uint(parsed)
}
