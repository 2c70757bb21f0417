package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"
	"golang.org/x/time/rate"

	"github.com/xxxsen/askdoc/internal/handler"
	"github.com/xxxsen/askdoc/internal/repo"
	"github.com/xxxsen/askdoc/internal/service"
	"github.com/xxxsen/askdoc/internal/testutil"
)

type fakeEmbedder struct{}

// a crude keyword vector keeps retrieval order deterministic in tests
func (fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vector := []float32{1, 0, 0}
	if strings.Contains(text, "beta") {
		vector = []float32{0, 1, 0}
	}
	return vector, nil
}

func (fakeEmbedder) ModelName() string {
	return "fake-embedding"
}

type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "stub answer", nil
}

func setupRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	docs := repo.NewDocumentRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	queries := repo.NewQueryRepo(db)

	limiter := rate.NewLimiter(rate.Inf, 0)
	indexService := service.NewIndexService(fakeEmbedder{}, docs, embeddings, limiter, 10000)
	searchService := service.NewSearchService(fakeEmbedder{}, fakeGenerator{}, docs, embeddings, queries, 3, 0)
	repairService := service.NewRepairService(fakeEmbedder{}, docs, embeddings, limiter, 10000)

	deps := handler.RouterDeps{
		Ask:           handler.NewAskHandler(searchService),
		Documents:     handler.NewDocumentHandler(indexService, docs, embeddings),
		Admin:         handler.NewAdminHandler(repairService, docs, embeddings, queries),
		AskRateWindow: 0,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
	)
	require.NoError(t, err)

	return engine, cleanup
}
