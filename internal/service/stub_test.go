package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

var errEmptyQueue = errors.New("no more vectors queued")

// stubEmbedder maps keywords to fixed vectors so similarity order in tests is
// fully deterministic.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	for keyword, vector := range s.vectors {
		if strings.Contains(text, keyword) {
			return append([]float32(nil), vector...), nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) ModelName() string {
	return "stub-embedding"
}

// seqEmbedder replays a fixed sequence of vectors, one per call.
type seqEmbedder struct {
	mu    sync.Mutex
	queue [][]float32
	errs  []error
}

func (s *seqEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(s.queue) == 0 {
		return nil, errEmptyQueue
	}
	vector := s.queue[0]
	s.queue = s.queue[1:]
	return append([]float32(nil), vector...), nil
}

func (s *seqEmbedder) ModelName() string {
	return "seq-embedding"
}

type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.prompts = append(s.prompts, prompt)
	return s.reply, nil
}

func testLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 0)
}
