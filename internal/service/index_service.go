package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/askdoc/internal/ai"
	"github.com/xxxsen/askdoc/internal/chunker"
	"github.com/xxxsen/askdoc/internal/model"
	"github.com/xxxsen/askdoc/internal/pkg/timeutil"
	"github.com/xxxsen/askdoc/internal/repo"
)

// IndexService turns a raw document into stored chunk rows and embedding rows.
type IndexService struct {
	embedder      ai.IEmbedder
	docs          *repo.DocumentRepo
	embeddings    *repo.EmbeddingRepo
	limiter       *rate.Limiter
	maxChunkBytes int
}

func NewIndexService(embedder ai.IEmbedder, docs *repo.DocumentRepo, embeddings *repo.EmbeddingRepo, limiter *rate.Limiter, maxChunkBytes int) *IndexService {
	return &IndexService{
		embedder:      embedder,
		docs:          docs,
		embeddings:    embeddings,
		limiter:       limiter,
		maxChunkBytes: maxChunkBytes,
	}
}

// Ingest stores a document, splitting it when it exceeds the chunk limit.
// Derived chunks get ids docID_part_N, a "(Part N)" title marker and a
// chunk_index metadata field. The first failed chunk aborts the call; chunks
// already stored are not rolled back. Errors are logged, never returned.
func (s *IndexService) Ingest(ctx context.Context, docID, title, content string, metadata map[string]interface{}) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	if docID == "" || content == "" {
		logger.Error("ingest rejected", zap.Bool("empty_content", content == ""))
		return false
	}
	if len(content) <= s.maxChunkBytes {
		if err := s.ingestChunk(ctx, docID, title, content, metadata); err != nil {
			logger.Error("ingest failed", zap.Error(err))
			return false
		}
		return true
	}

	parts := chunker.Split(content, s.maxChunkBytes)
	logger.Info("document split for ingestion", zap.Int("size", len(content)), zap.Int("parts", len(parts)))
	for i, part := range parts {
		chunkID := fmt.Sprintf("%s_part_%d", docID, i+1)
		chunkTitle := fmt.Sprintf("%s (Part %d)", title, i+1)
		chunkMeta := cloneMetadata(metadata)
		chunkMeta["chunk_index"] = i + 1
		chunkMeta["original_doc_id"] = docID
		if err := s.ingestChunk(ctx, chunkID, chunkTitle, part, chunkMeta); err != nil {
			logger.Error("ingest failed", zap.String("chunk_id", chunkID), zap.Error(err))
			return false
		}
	}
	return true
}

// ingestChunk is the single-chunk step: document row first, then the vector.
// The two writes are not transactional; the repairer reconciles leftovers.
func (s *IndexService) ingestChunk(ctx context.Context, chunkID, title, content string, metadata map[string]interface{}) error {
	doc := &model.Chunk{
		ChunkID:   chunkID,
		Title:     title,
		Content:   content,
		Metadata:  marshalMetadata(metadata),
		CreatedAt: timeutil.NowUnix(),
	}
	if err := s.docs.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	vector, err := s.embedder.Embed(ctx, content, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	// Update is delete+insert so a re-ingested id keeps a single vector row.
	if err := s.embeddings.DeleteByChunk(ctx, chunkID); err != nil {
		return fmt.Errorf("clear old vectors: %w", err)
	}
	if err := s.embeddings.Insert(ctx, &model.Embedding{
		ChunkID:   chunkID,
		Vector:    vector,
		CreatedAt: timeutil.NowUnix(),
	}); err != nil {
		return fmt.Errorf("store vector: %w", err)
	}
	return nil
}

func cloneMetadata(metadata map[string]interface{}) map[string]interface{} {
	cloned := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		cloned[k] = v
	}
	return cloned
}

func marshalMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return "{}"
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}
