package query

import (
	"cmp"
	"context"
	"math"
	"slices"
	"time"

	"github.com/rcliao/memscope/internal/model"
)

const (
	// DefaultBudget is the context budget in tokens.
	DefaultBudget = 4000
	charsPerToken = 4

	contextCandidates = 50
	minExcerptChars   = 100

	weightRelevance  = 0.5
	weightRecency    = 0.25
	weightImportance = 0.25
)

// ContextParams holds parameters for context assembly.
type ContextParams struct {
	Query  string
	Scope  model.Scope
	Type   model.MemoryType
	Budget int // max tokens in output (rough proxy: 1 token ≈ 4 chars)
}

// ContextRecord is a scored record for context output.
type ContextRecord struct {
	ID          string `json:"id" yaml:"id"`
	model.Scope `yaml:",inline"`
	Type        model.MemoryType `json:"memory_type" yaml:"memory_type"`
	Content     string           `json:"content" yaml:"content"`
	Score       float64          `json:"score" yaml:"score"`
	Excerpt     bool             `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
}

// ContextResult is the assembled context response.
type ContextResult struct {
	Budget  int             `json:"budget" yaml:"budget"`
	Used    int             `json:"used" yaml:"used"`
	Records []ContextRecord `json:"records" yaml:"records"`
}

// Context assembles the most useful records in scope within a token budget.
// Candidates are ranked by a blend of relevance, recency and importance and
// packed greedily; the first record that only partly fits is excerpted.
func (e *Engine) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	charBudget := budget * charsPerToken

	results, err := e.Search(ctx, SearchParams{
		Query: p.Query,
		Scope: p.Scope,
		Type:  p.Type,
		Limit: contextCandidates,
	})
	if err != nil {
		return nil, err
	}

	out := &ContextResult{Budget: budget, Records: []ContextRecord{}}
	if len(results) == 0 {
		return out, nil
	}

	now := time.Now()
	type scored struct {
		rec   model.Record
		score float64
	}
	candidates := make([]scored, 0, len(results))
	for _, r := range results {
		days := now.Sub(r.CreatedAt).Hours() / 24
		recency := math.Exp(-0.1 * max(days, 0))
		score := r.Score*weightRelevance + recency*weightRecency + r.Importance*weightImportance
		candidates = append(candidates, scored{rec: r.Record, score: score})
	}
	slices.SortStableFunc(candidates, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	used := 0
	for _, c := range candidates {
		content := []rune(c.rec.Content)
		item := ContextRecord{
			ID:      c.rec.ID,
			Scope:   c.rec.Scope,
			Type:    c.rec.Type,
			Content: c.rec.Content,
			Score:   math.Round(c.score*100) / 100,
		}

		if used+len(content) <= charBudget {
			out.Records = append(out.Records, item)
			used += len(content)
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerptChars {
			item.Content = string(content[:remaining]) + "..."
			item.Excerpt = true
			out.Records = append(out.Records, item)
			used += remaining
		}
		break
	}

	out.Used = used / charsPerToken
	return out, nil
}
