// Package scorer rates how relevant a piece of content is to a query.
package scorer

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
)

// ErrScoreComputation is returned when a relevance score cannot be computed.
var ErrScoreComputation = errors.New("score computation failed")

// Scorer returns a relevance score in [0, 1] for content against query.
// Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, query, content string) (float64, error)
}

// Func adapts a plain function to Scorer.
type Func func(ctx context.Context, query, content string) (float64, error)

func (f Func) Score(ctx context.Context, query, content string) (float64, error) {
	return f(ctx, query, content)
}

// Jaccard scores the overlap of lower-cased whitespace-separated word sets:
// |A∩B| / |A∪B|, or 0 when either side has no words.
type Jaccard struct{}

func (Jaccard) Score(_ context.Context, query, content string) (float64, error) {
	return JaccardSimilarity(query, content), nil
}

// JaccardSimilarity is the word-set Jaccard index of a and b.
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Wrap tags err as a score computation failure.
func Wrap(err error, name string) error {
	if err == nil {
		return nil
	}
	return oops.Code("scorer.compute.failure").
		With("scorer", name).
		Wrapf(errors.Join(ErrScoreComputation, err), "%s scorer", name)
}

// ByName returns a built-in scorer that needs no external dependencies.
func ByName(name string) (Scorer, bool) {
	switch name {
	case "", "jaccard":
		return Jaccard{}, true
	default:
		return nil, false
	}
}
