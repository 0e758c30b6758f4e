package scorer

import (
	"context"
	"sync"

	"github.com/rcliao/memscope/internal/embedding"
)

// Embedding scores by cosine similarity of embedding vectors, clamped to
// [0, 1] so opposite vectors score as unrelated. The last query's vector is
// kept, so a search embeds its query once rather than once per candidate.
type Embedding struct {
	embedder embedding.Embedder

	mu        sync.Mutex
	lastQuery string
	lastVec   embedding.Vector
}

// NewEmbedding returns a scorer backed by e.
func NewEmbedding(e embedding.Embedder) *Embedding {
	return &Embedding{embedder: e}
}

func (s *Embedding) Score(ctx context.Context, query, content string) (float64, error) {
	q, err := s.queryVector(ctx, query)
	if err != nil {
		return 0, Wrap(err, "embedding")
	}
	c, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return 0, Wrap(err, "embedding")
	}
	return clamp(embedding.CosineSimilarity(q, c)), nil
}

func (s *Embedding) queryVector(ctx context.Context, query string) (embedding.Vector, error) {
	s.mu.Lock()
	if s.lastVec != nil && s.lastQuery == query {
		vec := s.lastVec
		s.mu.Unlock()
		return vec, nil
	}
	s.mu.Unlock()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastQuery, s.lastVec = query, vec
	s.mu.Unlock()
	return vec, nil
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
