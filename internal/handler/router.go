package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/askdoc/internal/middleware"
)

type RouterDeps struct {
	Ask           *AskHandler
	Documents     *DocumentHandler
	Admin         *AdminHandler
	AskRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	askGroup := api.Group("")
	askGroup.Use(middleware.RateLimit(deps.AskRateWindow))
	askGroup.POST("/ask", deps.Ask.Ask)

	api.POST("/search", deps.Ask.Search)

	api.POST("/documents", deps.Documents.Create)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.DELETE("/documents/:id", deps.Documents.Delete)

	api.GET("/stats", deps.Admin.Stats)
	api.POST("/repair/:op", deps.Admin.Repair)
}
