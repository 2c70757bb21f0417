package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/askdoc/internal/model"
	"github.com/xxxsen/askdoc/internal/repo"
	"github.com/xxxsen/askdoc/internal/testutil"
)

func TestEmbeddingRepoInsertAndScan(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	embeddings := repo.NewEmbeddingRepo(db)
	ctx := context.Background()

	require.NoError(t, embeddings.Insert(ctx, &model.Embedding{ChunkID: "a", Vector: []float32{1, 2, 3}, CreatedAt: 100}))
	require.NoError(t, embeddings.Insert(ctx, &model.Embedding{ChunkID: "b", Vector: []float32{4, 5, 6}, CreatedAt: 200}))

	got := map[string][]float32{}
	err := embeddings.Scan(ctx, func(chunkID string, vector []float32) error {
		got[chunkID] = vector
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, []float32{1, 2, 3}, got["a"])
	require.Equal(t, []float32{4, 5, 6}, got["b"])
}

func TestEmbeddingRepoInsertAppendsBlindly(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	embeddings := repo.NewEmbeddingRepo(db)
	ctx := context.Background()

	require.NoError(t, embeddings.Insert(ctx, &model.Embedding{ChunkID: "a", Vector: []float32{1}, CreatedAt: 100}))
	require.NoError(t, embeddings.Insert(ctx, &model.Embedding{ChunkID: "a", Vector: []float32{2}, CreatedAt: 200}))

	count, err := embeddings.CountByChunk(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, embeddings.DeleteByChunk(ctx, "a"))
	exists, err := embeddings.ExistsByChunk(ctx, "a")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestEmbeddingRepoDeleteAll(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	embeddings := repo.NewEmbeddingRepo(db)
	ctx := context.Background()

	require.NoError(t, embeddings.Insert(ctx, &model.Embedding{ChunkID: "a", Vector: []float32{1}, CreatedAt: 100}))
	require.NoError(t, embeddings.Insert(ctx, &model.Embedding{ChunkID: "b", Vector: []float32{2}, CreatedAt: 200}))

	require.NoError(t, embeddings.DeleteAll(ctx))
	count, err := embeddings.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}
