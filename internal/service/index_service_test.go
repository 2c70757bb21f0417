package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/askdoc/internal/repo"
	"github.com/xxxsen/askdoc/internal/testutil"
)

func TestIngestSmallDocument(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	embedder := &stubEmbedder{}
	index := NewIndexService(embedder, docs, embeddings, testLimiter(), 100)
	ctx := context.Background()

	require.True(t, index.Ingest(ctx, "doc-1", "Title", "small body", nil))

	doc, err := docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "Title", doc.Title)
	require.Equal(t, "small body", doc.Content)

	count, err := embeddings.CountByChunk(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestIngestIsIdempotentPerChunk(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	index := NewIndexService(&stubEmbedder{}, docs, embeddings, testLimiter(), 100)
	ctx := context.Background()

	require.True(t, index.Ingest(ctx, "doc-1", "Title", "first version", nil))
	require.True(t, index.Ingest(ctx, "doc-1", "Title", "second version", nil))

	docCount, err := docs.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), docCount)

	vecCount, err := embeddings.CountByChunk(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), vecCount)

	doc, err := docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "second version", doc.Content)
}

func TestIngestSplitsOversizedDocument(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	limit := 60
	index := NewIndexService(&stubEmbedder{}, docs, embeddings, testLimiter(), limit)
	ctx := context.Background()

	var sb strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "Sentence number %d in the long document. ", i)
	}
	content := sb.String()
	require.Greater(t, len(content), limit)

	require.True(t, index.Ingest(ctx, "doc-1", "Long Doc", content, map[string]interface{}{"source": "test"}))

	stored, err := docs.ListAll(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(stored), 2)

	for i, doc := range stored {
		require.Equal(t, fmt.Sprintf("doc-1_part_%d", i+1), doc.ChunkID)
		require.Equal(t, fmt.Sprintf("Long Doc (Part %d)", i+1), doc.Title)
		require.LessOrEqual(t, len(doc.Content), limit)

		var meta map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(doc.Metadata), &meta))
		require.Equal(t, "doc-1", meta["original_doc_id"])
		require.Equal(t, "test", meta["source"])
		require.Equal(t, float64(i+1), meta["chunk_index"])

		vecCount, err := embeddings.CountByChunk(ctx, doc.ChunkID)
		require.NoError(t, err)
		require.Equal(t, int64(1), vecCount)
	}

	// no row under the bare document id, only the parts
	exists, err := docs.Exists(ctx, "doc-1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestIngestRejectsBadInput(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	index := NewIndexService(&stubEmbedder{}, docs, embeddings, testLimiter(), 100)
	ctx := context.Background()

	require.False(t, index.Ingest(ctx, "", "Title", "content", nil))
	require.False(t, index.Ingest(ctx, "doc-1", "Title", "", nil))
}

func TestIngestEmbedFailure(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	embedder := &stubEmbedder{err: errors.New("quota exhausted")}
	index := NewIndexService(embedder, docs, embeddings, testLimiter(), 100)
	ctx := context.Background()

	require.False(t, index.Ingest(ctx, "doc-1", "Title", "content", nil))

	// the document row lands first, but no vector may be stored
	count, err := embeddings.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}
