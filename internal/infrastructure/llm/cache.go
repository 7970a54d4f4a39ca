package llm

import (
	"context"
	"fmt"

	"github.com/agentdock/backend/internal/core/ports"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 1024

// CachedEmbedder memoizes embeddings by exact text.
type CachedEmbedder struct {
	delegate ports.Embedder
	cache    *lru.Cache[string, []float32]
}

func NewCachedEmbedder(delegate ports.Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{delegate: delegate, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	vec, err := e.delegate.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, vec)
	return vec, nil
}
