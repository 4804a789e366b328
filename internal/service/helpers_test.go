package service

import (
	"context"
	"errors"
	"time"

	"kaikei/internal/models"

	"go.uber.org/zap"
)

var errLLMDown = errors.New("llm unavailable")

// stubGenerator returns a canned reply or a canned error.
type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// stubEmbedder produces a deterministic one-dimensional embedding per text so
// nearest-neighbor ordering is predictable in tests.
type stubEmbedder struct {
	err    error
	lookup map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.lookup[text]; ok {
			vectors[i] = v
			continue
		}
		vectors[i] = []float32{float32(len(text))}
	}
	return vectors, nil
}

type stubCorpus struct {
	texts []string
	err   error
}

func (s *stubCorpus) ReceiptTexts(ctx context.Context) ([]string, error) {
	return s.texts, s.err
}

type stubRateSource struct {
	rates       []*models.ExchangeRate
	lastUpdated time.Time
	upserts     []*models.ExchangeRate
}

func (s *stubRateSource) RatesByBase(ctx context.Context, base string) ([]*models.ExchangeRate, error) {
	var out []*models.ExchangeRate
	for _, r := range s.rates {
		if r.BaseCurrency == base {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRateSource) Upsert(ctx context.Context, rate *models.ExchangeRate) error {
	s.upserts = append(s.upserts, rate)
	return nil
}

func (s *stubRateSource) LastUpdated(ctx context.Context) (time.Time, error) {
	return s.lastUpdated, nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
