package service

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"kaikei/pkg/config"

	"go.uber.org/zap"
)

// CorpusSource supplies the historical receipt texts the retrieval index is
// built over.
type CorpusSource interface {
	ReceiptTexts(ctx context.Context) ([]string, error)
}

// RetrievalStore maintains a flat exact nearest-neighbor index (L2 distance)
// over sentence embeddings of historical receipt texts, used to enrich
// extraction prompts with similar receipts.
//
// The index is process-wide: lazily built once under a lock, read-mostly
// afterwards. Two artifacts are persisted at first build (the vector index
// and the parallel text array) and reloaded on later starts without
// re-embedding.
type RetrievalStore struct {
	embedder Embedder
	corpus   CorpusSource
	cfg      *config.RAGConfig
	logger   *zap.Logger

	initMu  sync.Mutex
	vectors [][]float32
	texts   []string
	ready   bool
}

func NewRetrievalStore(embedder Embedder, corpus CorpusSource, cfg *config.RAGConfig, logger *zap.Logger) *RetrievalStore {
	return &RetrievalStore{
		embedder: embedder,
		corpus:   corpus,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve returns up to k stored receipt texts most similar to query,
// nearest first. The store initializes itself on first use.
func (s *RetrievalStore) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize retrieval index: %w", err)
	}
	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	queryVectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	indices := nearestNeighbors(queryVectors[0], s.vectors, k)

	var results []string
	for _, idx := range indices {
		// A stale serialized index can reference texts that no longer
		// exist; drop those silently.
		if idx < len(s.texts) {
			results = append(results, s.texts[idx])
		}
	}
	return results, nil
}

// initialize is idempotent and guarded so concurrent first callers share one
// build. After it returns the index is treated as read-only.
func (s *RetrievalStore) initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready {
		return nil
	}

	if s.loadArtifacts() {
		s.ready = true
		s.logger.Info("retrieval index loaded from disk",
			zap.Int("texts", len(s.texts)),
		)
		return nil
	}

	if err := s.build(ctx); err != nil {
		return err
	}
	s.ready = true
	return nil
}

// Rebuild discards any persisted artifacts and re-embeds the corpus.
func (s *RetrievalStore) Rebuild(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	os.Remove(s.cfg.IndexPath)
	os.Remove(s.cfg.TextsPath)
	s.ready = false

	if err := s.build(ctx); err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *RetrievalStore) build(ctx context.Context) error {
	texts, err := s.corpus.ReceiptTexts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load receipt corpus: %w", err)
	}

	if len(texts) == 0 {
		s.vectors = nil
		s.texts = nil
		s.logger.Info("retrieval corpus is empty, index left blank")
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}

	s.vectors = vectors
	s.texts = texts
	s.saveArtifacts()

	s.logger.Info("retrieval index built",
		zap.Int("texts", len(texts)),
	)
	return nil
}

func (s *RetrievalStore) loadArtifacts() bool {
	indexFile, err := os.Open(s.cfg.IndexPath)
	if err != nil {
		return false
	}
	defer indexFile.Close()

	textsData, err := os.ReadFile(s.cfg.TextsPath)
	if err != nil {
		return false
	}

	var vectors [][]float32
	if err := gob.NewDecoder(indexFile).Decode(&vectors); err != nil {
		s.logger.Warn("failed to decode persisted index, rebuilding", zap.Error(err))
		return false
	}

	var texts []string
	if err := json.Unmarshal(textsData, &texts); err != nil {
		s.logger.Warn("failed to decode persisted texts, rebuilding", zap.Error(err))
		return false
	}

	s.vectors = vectors
	s.texts = texts
	return true
}

func (s *RetrievalStore) saveArtifacts() {
	indexFile, err := os.Create(s.cfg.IndexPath)
	if err != nil {
		s.logger.Warn("failed to persist retrieval index", zap.Error(err))
		return
	}
	defer indexFile.Close()

	if err := gob.NewEncoder(indexFile).Encode(s.vectors); err != nil {
		s.logger.Warn("failed to encode retrieval index", zap.Error(err))
		return
	}

	textsData, err := json.Marshal(s.texts)
	if err != nil {
		s.logger.Warn("failed to encode retrieval texts", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.cfg.TextsPath, textsData, 0644); err != nil {
		s.logger.Warn("failed to persist retrieval texts", zap.Error(err))
	}
}

// nearestNeighbors returns the indices of the k vectors closest to query by
// squared L2 distance, nearest first.
func nearestNeighbors(query []float32, vectors [][]float32, k int) []int {
	type scored struct {
		index    int
		distance float64
	}

	scores := make([]scored, 0, len(vectors))
	for i, v := range vectors {
		scores = append(scores, scored{index: i, distance: l2Squared(query, v)})
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].distance < scores[j].distance
	})

	if k > len(scores) {
		k = len(scores)
	}
	indices := make([]int, 0, k)
	for _, sc := range scores[:k] {
		indices = append(indices, sc.index)
	}
	return indices
}

func l2Squared(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	// Dimension mismatch penalizes the leftover components
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return sum
}
