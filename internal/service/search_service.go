package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/askdoc/internal/ai"
	"github.com/xxxsen/askdoc/internal/model"
	appErr "github.com/xxxsen/askdoc/internal/pkg/errors"
	"github.com/xxxsen/askdoc/internal/pkg/timeutil"
	"github.com/xxxsen/askdoc/internal/repo"
)

var ErrAIUnavailable = ai.ErrUnavailable

// NoInformationReply is returned when retrieval finds nothing to ground an
// answer on.
const NoInformationReply = "I could not find any relevant information to answer your question."

// SearchService answers queries: semantic retrieval over the stored vectors
// plus the generative call that turns retrieved chunks into an answer.
type SearchService struct {
	embedder   ai.IEmbedder
	generator  ai.IGenerator
	docs       *repo.DocumentRepo
	embeddings *repo.EmbeddingRepo
	queries    *repo.QueryRepo
	topK       int
	threshold  float64
	answers    *expirable.LRU[string, string]
}

func NewSearchService(embedder ai.IEmbedder, generator ai.IGenerator, docs *repo.DocumentRepo, embeddings *repo.EmbeddingRepo, queries *repo.QueryRepo, topK int, threshold float64) *SearchService {
	return &SearchService{
		embedder:   embedder,
		generator:  generator,
		docs:       docs,
		embeddings: embeddings,
		queries:    queries,
		topK:       topK,
		threshold:  threshold,
		answers:    expirable.NewLRU[string, string](10000, nil, 2*time.Hour),
	}
}

// Retrieve returns the chunks most similar to query, highest first. It scans
// every stored vector, filters by the configured similarity threshold, keeps
// the top k and joins against the document store, skipping ids that have no
// document row. It returns an empty slice, never an error: an embedding
// failure or an empty store both mean "nothing found".
func (s *SearchService) Retrieve(ctx context.Context, query string, k int) []model.ScoredChunk {
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))
	if k <= 0 {
		k = s.topK
	}
	queryVector, err := s.embedder.Embed(ctx, query, "RETRIEVAL_QUERY")
	if err != nil {
		logger.Error("failed to embed query", zap.Error(err))
		return nil
	}

	type match struct {
		chunkID string
		score   float64
	}
	var matches []match
	err = s.embeddings.Scan(ctx, func(chunkID string, vector []float32) error {
		score := cosineSimilarity(queryVector, vector)
		if s.threshold > 0 && score < s.threshold {
			return nil
		}
		matches = append(matches, match{chunkID: chunkID, score: score})
		return nil
	})
	if err != nil {
		logger.Error("failed to scan embeddings", zap.Error(err))
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if k > len(matches) {
		k = len(matches)
	}

	results := make([]model.ScoredChunk, 0, k)
	for _, m := range matches[:k] {
		doc, err := s.docs.Get(ctx, m.chunkID)
		if err != nil {
			if appErr.IsNotFound(err) {
				logger.Debug("skipping vector without document", zap.String("chunk_id", m.chunkID))
				continue
			}
			logger.Error("failed to load document", zap.String("chunk_id", m.chunkID), zap.Error(err))
			continue
		}
		results = append(results, model.ScoredChunk{Chunk: *doc, Similarity: m.score})
	}
	return results
}

type AskResult struct {
	Answer  string              `json:"answer"`
	Sources []model.ScoredChunk `json:"sources"`
}

// Ask runs the full question flow: retrieve, build a grounded prompt, call
// the generation model. Every question is appended to the query history with
// its origin identifier.
func (s *SearchService) Ask(ctx context.Context, question, origin string) (*AskResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("question", question))
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	s.recordQuery(ctx, question, origin)

	sources := s.Retrieve(ctx, question, s.topK)
	if len(sources) == 0 {
		logger.Info("no documents retrieved")
		return &AskResult{Answer: NoInformationReply}, nil
	}

	prompt := buildPrompt(question, sources)
	cacheKey := answerCacheKey(prompt)
	if cached, ok := s.answers.Get(cacheKey); ok {
		return &AskResult{Answer: cached, Sources: sources}, nil
	}
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Error("failed to generate answer", zap.Error(err))
		return nil, err
	}
	s.answers.Add(cacheKey, answer)
	return &AskResult{Answer: answer, Sources: sources}, nil
}

func (s *SearchService) recordQuery(ctx context.Context, question, origin string) {
	if s.queries == nil {
		return
	}
	err := s.queries.Append(ctx, &model.QueryRecord{
		QueryText: question,
		IPAddress: origin,
		CreatedAt: timeutil.NowUnix(),
	})
	if err != nil {
		logutil.GetLogger(ctx).Error("failed to record query", zap.Error(err))
	}
}

func buildPrompt(question string, sources []model.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Answer the question using only the information below. If the answer is not there, say you do not know; do not make one up.\n\n")
	sb.WriteString("Context:\n")
	for _, doc := range sources {
		fmt.Fprintf(&sb, "Title: %s\n", doc.Title)
		fmt.Fprintf(&sb, "Content: %s\n\n", doc.Content)
	}
	fmt.Fprintf(&sb, "Question: %s\n", question)
	sb.WriteString("Answer:")
	return sb.String()
}

func answerCacheKey(prompt string) string {
	hash := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(hash[:])
}

// cosineSimilarity is dot(a,b) / (|a|*|b|), 0 when either vector has zero
// magnitude or the dimensions disagree.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
