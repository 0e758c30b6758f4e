// Package query ranks stored records against a query.
package query

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/rcliao/memscope/internal/model"
	"github.com/rcliao/memscope/internal/scorer"
	"github.com/rcliao/memscope/internal/store"
)

// DefaultLimit caps search results when SearchParams.Limit is not set.
const DefaultLimit = 10

// SearchParams holds search parameters.
type SearchParams struct {
	Query     string
	Scope     model.Scope
	Type      model.MemoryType
	Limit     int
	Threshold float64
}

// Result is a record with its relevance score.
type Result struct {
	model.Record `yaml:",inline"`
	Score        float64 `json:"score" yaml:"score"`
}

// Engine filters, scores and ranks records. It never mutates the store.
type Engine struct {
	store  store.Store
	scorer scorer.Scorer
	logger *slog.Logger
}

// NewEngine creates an engine over s. A nil scorer means Jaccard.
func NewEngine(s store.Store, sc scorer.Scorer, logger *slog.Logger) *Engine {
	if sc == nil {
		sc = scorer.Jaccard{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: s, scorer: sc, logger: logger}
}

// Search returns records in scope ordered by score desc, then CreatedAt
// desc, then ID desc. Records scoring below Threshold are dropped. A scorer
// failure fails the whole search.
func (e *Engine) Search(ctx context.Context, p SearchParams) ([]Result, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	candidates, err := e.store.GetAll(ctx, store.ListParams{Scope: p.Scope, Type: p.Type})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, r := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := e.scorer.Score(ctx, p.Query, r.Content)
		if err != nil {
			if !errors.Is(err, scorer.ErrScoreComputation) {
				err = scorer.Wrap(err, "query")
			}
			return nil, oops.With("record_id", r.ID).Wrap(err)
		}
		if score < p.Threshold {
			continue
		}
		results = append(results, Result{Record: r, Score: score})
	}

	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	e.logger.Debug("search",
		"scope", p.Scope.String(),
		"candidates", len(candidates),
		"results", len(results))
	return results, nil
}
