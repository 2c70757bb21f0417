package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/askdoc/internal/pkg/errcode"
	"github.com/xxxsen/askdoc/internal/pkg/response"
	"github.com/xxxsen/askdoc/internal/repo"
	"github.com/xxxsen/askdoc/internal/service"
)

type AdminHandler struct {
	repair     *service.RepairService
	docs       *repo.DocumentRepo
	embeddings *repo.EmbeddingRepo
	queries    *repo.QueryRepo
}

func NewAdminHandler(repair *service.RepairService, docs *repo.DocumentRepo, embeddings *repo.EmbeddingRepo, queries *repo.QueryRepo) *AdminHandler {
	return &AdminHandler{repair: repair, docs: docs, embeddings: embeddings, queries: queries}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	docCount, err := h.docs.Count(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	embCount, err := h.embeddings.Count(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	recent, err := h.queries.Recent(ctx, 5)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"documents":      docCount,
		"embeddings":     embCount,
		"recent_queries": recent,
	})
}

// Repair triggers one maintenance operation and returns its narrative report.
// Callers are expected to serialize repair runs against ingestion themselves.
func (h *AdminHandler) Repair(c *gin.Context) {
	ctx := c.Request.Context()
	var report *service.Report
	switch c.Param("op") {
	case "reembed":
		report = h.repair.ReembedAll(ctx)
	case "reembed-avg":
		report = h.repair.ReembedAveraged(ctx)
	case "merge":
		report = h.repair.MergeDuplicates(ctx)
	case "orphans":
		report = h.repair.SweepOrphans(ctx)
	default:
		response.Error(c, errcode.ErrInvalid, "unknown repair operation")
		return
	}
	response.Success(c, report)
}
