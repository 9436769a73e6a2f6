package match

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// #region embedder-interface

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// #endregion embedder-interface

// #region fastembed

// modelDimensions maps supported local models to their output dimensions.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
	fastembed.AllMiniLML6V2: 384,
}

// FastEmbedder embeds observation and reference-step text with a local ONNX
// model, so matching works without any remote embedding service.
type FastEmbedder struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	dimension int
}

// NewFastEmbedder initializes the local embedding model. Model files are
// downloaded into cacheDir on first use.
func NewFastEmbedder(model string, cacheDir string) (*FastEmbedder, error) {
	m := fastembed.EmbeddingModel(model)
	if model == "" {
		m = fastembed.BGESmallENV15
	}
	dim, ok := modelDimensions[m]
	if !ok {
		return nil, fmt.Errorf("match: unsupported embedding model %q", model)
	}

	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                m,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("match: init fastembed: %w", err)
	}
	return &FastEmbedder{model: flag, dimension: dim}, nil
}

// EmbedQuery embeds one observation text with the query prefix.
func (f *FastEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	emb, err := f.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("match: query embed: %w", err)
	}
	return emb, nil
}

// EmbedDocuments embeds reference step texts with the passage prefix.
func (f *FastEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("match: no texts to embed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	embs, err := f.model.PassageEmbed(texts, 64)
	if err != nil {
		return nil, fmt.Errorf("match: passage embed: %w", err)
	}
	return embs, nil
}

// Dimension returns the embedding width of the configured model.
func (f *FastEmbedder) Dimension() int {
	return f.dimension
}

// Close releases the ONNX runtime resources.
func (f *FastEmbedder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model != nil {
		return f.model.Destroy()
	}
	return nil
}

// #endregion fastembed
