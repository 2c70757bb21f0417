package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/askdoc/internal/pkg/errcode"
	"github.com/xxxsen/askdoc/internal/pkg/response"
	"github.com/xxxsen/askdoc/internal/service"
)

type AskHandler struct {
	search *service.SearchService
}

func NewAskHandler(search *service.SearchService) *AskHandler {
	return &AskHandler{search: search}
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.search.Ask(c.Request.Context(), req.Question, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (h *AskHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query required")
		return
	}
	results := h.search.Retrieve(c.Request.Context(), req.Query, req.TopK)
	response.Success(c, gin.H{"results": results})
}
