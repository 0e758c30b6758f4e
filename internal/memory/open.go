package memory

import (
	"fmt"
	"log/slog"

	"github.com/rcliao/memscope/internal/chunker"
	"github.com/rcliao/memscope/internal/compactor"
	"github.com/rcliao/memscope/internal/config"
	"github.com/rcliao/memscope/internal/embedding"
	"github.com/rcliao/memscope/internal/scorer"
	"github.com/rcliao/memscope/internal/store"
	"github.com/rcliao/memscope/internal/tenant"
)

// Open builds a Service from configuration. The caller must Close it.
func Open(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		st       store.Store
		registry tenant.Registry
	)
	switch cfg.Store {
	case "memory":
		st = store.NewMemoryStore()
		registry = tenant.NewMemoryRegistry()
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		st = s
		registry = s.Tenants()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	svc, err := build(cfg, st, registry, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return svc, nil
}

func build(cfg *config.Config, st store.Store, registry tenant.Registry, logger *slog.Logger) (*Service, error) {
	sc, err := newScorer(cfg, logger)
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(chunker.Options{
		Size:      cfg.Chunk.Size,
		Overlap:   cfg.Chunk.Overlap,
		Separator: cfg.Chunk.Separator,
	})
	if err != nil {
		return nil, err
	}

	sum, ok := compactor.ByName(cfg.Compaction.Summarizer)
	if !ok {
		return nil, fmt.Errorf("unknown summarizer %q", cfg.Compaction.Summarizer)
	}
	comp := compactor.New(st, sum, compactor.Config{
		Frequency: cfg.Compaction.Frequency,
		MaxChars:  cfg.Compaction.MaxChars,
		Replace:   cfg.Compaction.Replace,
	}, logger)

	return New(Options{
		Store:           st,
		Registry:        registry,
		Scorer:          sc,
		Chunker:         ch,
		Compactor:       comp,
		AutoCompact:     cfg.Compaction.Enabled,
		SearchLimit:     cfg.Search.Limit,
		SearchThreshold: cfg.Search.Threshold,
		Logger:          logger,
	})
}

// newScorer returns the configured scorer. The embedding scorer degrades to
// Jaccard when the provider is unreachable.
func newScorer(cfg *config.Config, logger *slog.Logger) (scorer.Scorer, error) {
	if cfg.Search.Scorer != "embedding" {
		sc, ok := scorer.ByName(cfg.Search.Scorer)
		if !ok {
			return nil, fmt.Errorf("unknown scorer %q", cfg.Search.Scorer)
		}
		return sc, nil
	}

	emb, err := embedding.New(embedding.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Dims:     cfg.Embedding.Dims,
	})
	if err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, fmt.Errorf("embedding scorer needs an embedding provider")
	}
	return &scorer.Fallback{
		Primary:   scorer.NewEmbedding(emb),
		Secondary: scorer.Jaccard{},
		Logger:    logger,
	}, nil
}
