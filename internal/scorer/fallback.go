package scorer

import (
	"context"
	"log/slog"
)

// Fallback scores with Primary and, when it fails, logs the failure and
// scores with Secondary instead.
type Fallback struct {
	Primary   Scorer
	Secondary Scorer
	Logger    *slog.Logger
}

func (f *Fallback) Score(ctx context.Context, query, content string) (float64, error) {
	score, err := f.Primary.Score(ctx, query, content)
	if err == nil {
		return score, nil
	}
	if ctx.Err() != nil {
		return 0, err
	}
	if f.Logger != nil {
		f.Logger.Warn("primary scorer failed, falling back", "error", err)
	}
	return f.Secondary.Score(ctx, query, content)
}
