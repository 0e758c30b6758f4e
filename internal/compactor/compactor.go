// Package compactor rolls up long-running scopes into summary records.
package compactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/rcliao/memscope/internal/model"
	"github.com/rcliao/memscope/internal/store"
)

const (
	DefaultFrequency = 10
	DefaultMaxChars  = 2000
	DefaultPrefix    = "Conversation Summary: "
)

// Config configures compaction.
type Config struct {
	Frequency int    // compact every Frequency observed adds
	MaxChars  int    // upper bound on summary length, prefix included
	Replace   bool   // delete the summarised records
	Prefix    string // prepended to every summary
}

func (c Config) withDefaults() Config {
	if c.Frequency <= 0 {
		c.Frequency = DefaultFrequency
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	return c
}

// Rollup is the outcome of one compaction.
type Rollup struct {
	Summary model.Record
	// Sources are the summarised records, newest first.
	Sources []model.Record
	// Replaced reports whether Sources were deleted from the store.
	Replaced bool
}

// Compactor counts adds per scope and writes a summary record every
// Frequency turns. Counters live in process memory and are seeded from the
// store the first time a scope is seen.
type Compactor struct {
	store      store.Store
	summarizer Summarizer
	cfg        Config
	logger     *slog.Logger

	mu     sync.Mutex
	scopes map[string]*counter
}

// counter is a scope's turn count. Records with IDs up to seenUpTo were
// included by seeding and do not advance it again.
type counter struct {
	turns    int
	seenUpTo string
}

// New creates a compactor. A nil summarizer means Concat.
func New(s store.Store, sum Summarizer, cfg Config, logger *slog.Logger) *Compactor {
	if sum == nil {
		sum = Concat{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compactor{
		store:      s,
		summarizer: sum,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		scopes:     make(map[string]*counter),
	}
}

// Config returns the effective configuration.
func (c *Compactor) Config() Config { return c.cfg }

// Observe counts rec, which must already be stored, as one turn of its
// scope. When the turn count reaches a multiple of Frequency it compacts the
// scope and returns the rollup; otherwise it returns nil.
func (c *Compactor) Observe(ctx context.Context, rec model.Record) (*Rollup, error) {
	turn, advanced, err := c.nextTurn(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !advanced || turn%c.cfg.Frequency != 0 {
		return nil, nil
	}
	return c.compact(ctx, rec.Scope, turn)
}

// Turns returns the current turn count for scope, or 0 if unseen.
func (c *Compactor) Turns(scope model.Scope) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ct, ok := c.scopes[scope.Key()]; ok {
		return ct.turns
	}
	return 0
}

// nextTurn advances the counter of rec's scope. advanced is false when rec
// was already counted by seeding.
func (c *Compactor) nextTurn(ctx context.Context, rec model.Record) (turn int, advanced bool, err error) {
	key := rec.Scope.Key()

	c.mu.Lock()
	if ct, ok := c.scopes[key]; ok {
		turn, advanced = ct.advance(rec.ID)
		c.mu.Unlock()
		return turn, advanced, nil
	}
	c.mu.Unlock()

	// Seed without holding the lock; the store already holds rec.
	seed, newest, err := c.countSources(ctx, rec.Scope)
	if err != nil {
		return 0, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ct, ok := c.scopes[key]; ok {
		// Another observer seeded first.
		turn, advanced = ct.advance(rec.ID)
		return turn, advanced, nil
	}
	ct := &counter{turns: seed, seenUpTo: newest}
	c.scopes[key] = ct
	if rec.ID > newest {
		ct.turns++
	}
	return ct.turns, true, nil
}

func (ct *counter) advance(id string) (int, bool) {
	if id <= ct.seenUpTo {
		return ct.turns, false
	}
	ct.turns++
	return ct.turns, true
}

// countSources counts the non-summary records in scope and returns the
// newest one's ID.
func (c *Compactor) countSources(ctx context.Context, scope model.Scope) (int, string, error) {
	records, err := c.store.GetAll(ctx, store.ListParams{Scope: scope})
	if err != nil {
		return 0, "", fmt.Errorf("count records: %w", err)
	}
	n, newest := 0, ""
	for _, r := range records {
		if r.IsSummary() {
			continue
		}
		n++
		newest = max(newest, r.ID)
	}
	return n, newest, nil
}

// Compact summarises the newest non-summary records in scope right away.
// It returns nil when there is nothing to summarise.
func (c *Compactor) Compact(ctx context.Context, scope model.Scope) (*Rollup, error) {
	return c.compact(ctx, scope, c.Turns(scope))
}

func (c *Compactor) compact(ctx context.Context, scope model.Scope, turn int) (*Rollup, error) {
	sources, err := c.sources(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, nil
	}

	budget := c.cfg.MaxChars - utf8.RuneCountInString(c.cfg.Prefix)
	body, err := c.summarizer.Summarize(ctx, sources, max(budget, 0))
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	params := store.AddParams{
		Content: c.cfg.Prefix + body,
		Scope:   scope,
		Metadata: map[string]any{
			model.MetaType:        model.MetaTypeSummary,
			model.MetaTurnCount:   turn,
			model.MetaSourceCount: len(sources),
		},
	}

	var summary *model.Record
	if c.cfg.Replace {
		ids := make([]string, len(sources))
		for i, r := range sources {
			ids[i] = r.ID
		}
		summary, err = c.store.Replace(ctx, ids, params)
	} else {
		summary, err = c.store.Add(ctx, params)
	}
	if err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}

	c.logger.Info("compacted scope",
		"scope", scope.String(),
		"turn", turn,
		"sources", len(sources),
		"replace", c.cfg.Replace)
	return &Rollup{Summary: *summary, Sources: sources, Replaced: c.cfg.Replace}, nil
}

// sources returns up to Frequency*2 of the newest non-summary records.
func (c *Compactor) sources(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	records, err := c.store.GetAll(ctx, store.ListParams{Scope: scope})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	window := c.cfg.Frequency * 2
	out := make([]model.Record, 0, min(window, len(records)))
	for _, r := range records {
		if r.IsSummary() {
			continue
		}
		out = append(out, r)
		if len(out) == window {
			break
		}
	}
	return out, nil
}
