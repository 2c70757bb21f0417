package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/askdoc/internal/ai"
	"github.com/xxxsen/askdoc/internal/chunker"
	"github.com/xxxsen/askdoc/internal/model"
	"github.com/xxxsen/askdoc/internal/pkg/timeutil"
	"github.com/xxxsen/askdoc/internal/repo"
)

// Report is the narrative outcome of a repair run. Individual failures are
// recorded and processing continues; a repair never fails as a whole.
type Report struct {
	Lines   []string `json:"lines"`
	Added   int      `json:"added"`
	Removed int      `json:"removed"`
	Failed  int      `json:"failed"`
}

func (r *Report) logf(format string, args ...interface{}) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

func (r *Report) failf(format string, args ...interface{}) {
	r.Failed++
	r.logf(format, args...)
}

var (
	partMarkerRe  = regexp.MustCompile(`\s*\(Part \d+\)\s*$`)
	blockMarkerRe = regexp.MustCompile(`\s*\(塊 \d+\)\s*$`)
)

// baseTitle strips the part markers appended by chunked ingestion and
// chunked re-embedding, so sibling chunks group together.
func baseTitle(title string) string {
	title = blockMarkerRe.ReplaceAllString(title, "")
	return partMarkerRe.ReplaceAllString(title, "")
}

// RepairService is the offline maintenance path over the two stores: full
// re-embedding, averaged re-embedding, duplicate merging and orphan removal.
type RepairService struct {
	embedder      ai.IEmbedder
	docs          *repo.DocumentRepo
	embeddings    *repo.EmbeddingRepo
	limiter       *rate.Limiter
	maxChunkBytes int
}

func NewRepairService(embedder ai.IEmbedder, docs *repo.DocumentRepo, embeddings *repo.EmbeddingRepo, limiter *rate.Limiter, maxChunkBytes int) *RepairService {
	return &RepairService{
		embedder:      embedder,
		docs:          docs,
		embeddings:    embeddings,
		limiter:       limiter,
		maxChunkBytes: maxChunkBytes,
	}
}

// ReembedAll wipes every stored vector and regenerates them from the document
// rows. Oversized documents are split; the pieces become their own document
// rows (docID_chunk_N, "(塊 N)" titles) and the original row is removed once
// at least one piece landed.
func (s *RepairService) ReembedAll(ctx context.Context) *Report {
	logger := logutil.GetLogger(ctx)
	report := &Report{}

	if err := s.embeddings.DeleteAll(ctx); err != nil {
		report.failf("failed to clear old embeddings: %v", err)
		return report
	}
	report.logf("cleared old embeddings")

	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		report.failf("failed to list documents: %v", err)
		return report
	}
	report.logf("found %d documents to process", len(docs))

	for _, doc := range docs {
		if len(doc.Content) > s.maxChunkBytes {
			s.reembedOversized(ctx, doc, report)
			continue
		}
		if err := s.embedAndStore(ctx, doc.ChunkID, doc.Content); err != nil {
			report.failf("document %s: embedding failed: %v", doc.ChunkID, err)
			continue
		}
		report.Added++
		report.logf("document %s: embedding regenerated", doc.ChunkID)
	}

	total, err := s.embeddings.Count(ctx)
	if err == nil {
		report.logf("done, %d embeddings stored", total)
	}
	logger.Info("full re-embed finished", zap.Int("added", report.Added), zap.Int("failed", report.Failed))
	return report
}

func (s *RepairService) reembedOversized(ctx context.Context, doc model.Chunk, report *Report) {
	parts := chunker.Split(doc.Content, s.maxChunkBytes)
	report.logf("document %s (%d bytes) split into %d pieces", doc.ChunkID, len(doc.Content), len(parts))
	stored := 0
	for i, part := range parts {
		chunkID := fmt.Sprintf("%s_chunk_%d", doc.ChunkID, i)
		if err := s.embedAndStore(ctx, chunkID, part); err != nil {
			report.failf("document %s piece %d: embedding failed: %v", doc.ChunkID, i, err)
			continue
		}
		piece := &model.Chunk{
			ChunkID:   chunkID,
			Title:     fmt.Sprintf("%s (塊 %d)", doc.Title, i+1),
			Content:   part,
			Metadata:  marshalMetadata(map[string]interface{}{"original_doc_id": doc.ChunkID, "chunk_index": i}),
			CreatedAt: timeutil.NowUnix(),
		}
		if err := s.docs.Upsert(ctx, piece); err != nil {
			report.failf("document %s piece %d: store failed: %v", doc.ChunkID, i, err)
			continue
		}
		stored++
		report.Added++
	}
	if stored == 0 {
		return
	}
	// The pieces replace the oversized original.
	if err := s.docs.Delete(ctx, doc.ChunkID); err != nil {
		report.failf("document %s: failed to remove replaced original: %v", doc.ChunkID, err)
		return
	}
	report.Removed++
	report.logf("document %s replaced by %d pieces", doc.ChunkID, stored)
}

// ReembedAveraged fills in missing embeddings only. Oversized content is
// split, each piece embedded separately, and the element-wise mean stored as
// the single vector for the original chunk id.
func (s *RepairService) ReembedAveraged(ctx context.Context) *Report {
	report := &Report{}
	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		report.failf("failed to list documents: %v", err)
		return report
	}
	report.logf("found %d documents to process", len(docs))

	for _, doc := range docs {
		exists, err := s.embeddings.ExistsByChunk(ctx, doc.ChunkID)
		if err != nil {
			report.failf("document %s: lookup failed: %v", doc.ChunkID, err)
			continue
		}
		if exists {
			report.logf("document %s already has an embedding, skipped", doc.ChunkID)
			continue
		}
		if len(doc.Content) <= s.maxChunkBytes {
			if err := s.embedAndStore(ctx, doc.ChunkID, doc.Content); err != nil {
				report.failf("document %s: embedding failed: %v", doc.ChunkID, err)
				continue
			}
			report.Added++
			report.logf("document %s: embedding generated", doc.ChunkID)
			continue
		}

		parts := chunker.Split(doc.Content, s.maxChunkBytes)
		report.logf("document %s (%d bytes) split into %d pieces for averaging", doc.ChunkID, len(doc.Content), len(parts))
		mean, embedded := s.averageVectors(ctx, parts, doc.ChunkID, report)
		if embedded == 0 {
			report.failf("document %s: no piece could be embedded", doc.ChunkID)
			continue
		}
		if err := s.embeddings.Insert(ctx, &model.Embedding{
			ChunkID:   doc.ChunkID,
			Vector:    mean,
			CreatedAt: timeutil.NowUnix(),
		}); err != nil {
			report.failf("document %s: store failed: %v", doc.ChunkID, err)
			continue
		}
		report.Added++
		report.logf("document %s: averaged embedding stored from %d pieces", doc.ChunkID, embedded)
	}
	return report
}

func (s *RepairService) averageVectors(ctx context.Context, parts []string, chunkID string, report *Report) ([]float32, int) {
	var sum []float64
	embedded := 0
	for i, part := range parts {
		vector, err := s.embed(ctx, part)
		if err != nil {
			report.failf("document %s piece %d: embedding failed: %v", chunkID, i, err)
			continue
		}
		if sum == nil {
			sum = make([]float64, len(vector))
		}
		if len(vector) != len(sum) {
			report.failf("document %s piece %d: dimension mismatch", chunkID, i)
			continue
		}
		for j, v := range vector {
			sum[j] += float64(v)
		}
		embedded++
	}
	if embedded == 0 {
		return nil, 0
	}
	mean := make([]float32, len(sum))
	for j, v := range sum {
		mean[j] = float32(v / float64(embedded))
	}
	return mean, embedded
}

// MergeDuplicates groups documents by base title and keeps only the largest
// member of each group, deleting the other documents and their vectors.
func (s *RepairService) MergeDuplicates(ctx context.Context) *Report {
	report := &Report{}
	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		report.failf("failed to list documents: %v", err)
		return report
	}
	groups := make(map[string][]model.Chunk)
	for _, doc := range docs {
		key := baseTitle(doc.Title)
		groups[key] = append(groups[key], doc)
	}
	report.logf("found %d document groups", len(groups))

	for key, group := range groups {
		if len(group) <= 1 {
			continue
		}
		report.logf("duplicate group %q has %d members", key, len(group))
		largest := group[0]
		for _, doc := range group[1:] {
			if len(doc.Content) > len(largest.Content) {
				largest = doc
			}
		}
		for _, doc := range group {
			if doc.ChunkID == largest.ChunkID {
				continue
			}
			if err := s.docs.Delete(ctx, doc.ChunkID); err != nil {
				report.failf("document %s: delete failed: %v", doc.ChunkID, err)
				continue
			}
			if err := s.embeddings.DeleteByChunk(ctx, doc.ChunkID); err != nil {
				report.failf("document %s: vector delete failed: %v", doc.ChunkID, err)
				continue
			}
			report.Removed++
			report.logf("deleted duplicate %s (%s)", doc.ChunkID, doc.Title)
		}
		report.logf("kept %s (%s)", largest.ChunkID, largest.Title)
	}
	return report
}

// SweepOrphans deletes embeddings whose chunk id has no document row.
func (s *RepairService) SweepOrphans(ctx context.Context) *Report {
	report := &Report{}
	seen := make(map[string]struct{})
	var ids []string
	err := s.embeddings.Scan(ctx, func(chunkID string, _ []float32) error {
		if _, ok := seen[chunkID]; ok {
			return nil
		}
		seen[chunkID] = struct{}{}
		ids = append(ids, chunkID)
		return nil
	})
	if err != nil {
		report.failf("failed to scan embeddings: %v", err)
		return report
	}
	for _, chunkID := range ids {
		exists, err := s.docs.Exists(ctx, chunkID)
		if err != nil {
			report.failf("embedding %s: lookup failed: %v", chunkID, err)
			continue
		}
		if exists {
			continue
		}
		if err := s.embeddings.DeleteByChunk(ctx, chunkID); err != nil {
			report.failf("embedding %s: delete failed: %v", chunkID, err)
			continue
		}
		report.Removed++
		report.logf("deleted orphaned embedding %s", chunkID)
	}
	report.logf("orphan sweep done, %d removed", report.Removed)
	return report
}

func (s *RepairService) embed(ctx context.Context, content string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.embedder.Embed(ctx, content, "RETRIEVAL_DOCUMENT")
}

func (s *RepairService) embedAndStore(ctx context.Context, chunkID, content string) error {
	vector, err := s.embed(ctx, content)
	if err != nil {
		return err
	}
	return s.embeddings.Insert(ctx, &model.Embedding{
		ChunkID:   chunkID,
		Vector:    vector,
		CreatedAt: timeutil.NowUnix(),
	})
}
