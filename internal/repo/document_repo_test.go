package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/askdoc/internal/model"
	appErr "github.com/xxxsen/askdoc/internal/pkg/errors"
	"github.com/xxxsen/askdoc/internal/repo"
	"github.com/xxxsen/askdoc/internal/testutil"
)

func TestDocumentRepoCRUD(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	doc := &model.Chunk{
		ChunkID:   "doc-1",
		Title:     "title",
		Content:   "content",
		Metadata:  "{}",
		CreatedAt: 100,
	}
	require.NoError(t, docs.Upsert(ctx, doc))

	fetched, err := docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "title", fetched.Title)
	require.Equal(t, "content", fetched.Content)

	exists, err := docs.Exists(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, exists)

	_, err = docs.Get(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, docs.Delete(ctx, "doc-1"))
	_, err = docs.Get(ctx, "doc-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRepoUpsertReplaces(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	require.NoError(t, docs.Upsert(ctx, &model.Chunk{ChunkID: "doc-1", Title: "old", Content: "old body", Metadata: "{}", CreatedAt: 100}))
	require.NoError(t, docs.Upsert(ctx, &model.Chunk{ChunkID: "doc-1", Title: "new", Content: "new body", Metadata: "{}", CreatedAt: 200}))

	count, err := docs.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	fetched, err := docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "new", fetched.Title)
	require.Equal(t, int64(200), fetched.CreatedAt)
}

func TestDocumentRepoListOrderAndPaging(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	require.NoError(t, docs.Upsert(ctx, &model.Chunk{ChunkID: "a", Title: "a", Content: "a", Metadata: "{}", CreatedAt: 100}))
	require.NoError(t, docs.Upsert(ctx, &model.Chunk{ChunkID: "b", Title: "b", Content: "b", Metadata: "{}", CreatedAt: 300}))
	require.NoError(t, docs.Upsert(ctx, &model.Chunk{ChunkID: "c", Title: "c", Content: "c", Metadata: "{}", CreatedAt: 200}))

	listed, err := docs.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	require.Equal(t, "b", listed[0].ChunkID)
	require.Equal(t, "c", listed[1].ChunkID)
	require.Equal(t, "a", listed[2].ChunkID)

	page, err := docs.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "c", page[0].ChunkID)

	all, err := docs.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
