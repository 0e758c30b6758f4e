// Package memory is the public surface of memscope: it ties the store,
// chunker, query engine, compactor and tenant registry into one service.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/rcliao/memscope/internal/chunker"
	"github.com/rcliao/memscope/internal/compactor"
	"github.com/rcliao/memscope/internal/model"
	"github.com/rcliao/memscope/internal/query"
	"github.com/rcliao/memscope/internal/scorer"
	"github.com/rcliao/memscope/internal/store"
	"github.com/rcliao/memscope/internal/tenant"
)

// Options wires a Service. Store is required; everything else has a default.
type Options struct {
	Store     store.Store
	Registry  tenant.Registry      // default: in-memory registry
	Scorer    scorer.Scorer        // default: Jaccard
	Chunker   *chunker.Chunker     // default: chunker.DefaultOptions
	Compactor *compactor.Compactor // default: compactor over Store with default config
	// AutoCompact runs the compactor after every stored chunk.
	AutoCompact bool
	SearchLimit int
	// SearchThreshold applies to searches that do not set their own.
	SearchThreshold float64
	Logger          *slog.Logger
}

// Service is safe for concurrent use; all shared state lives in the store,
// the registry and the compactor, which guard themselves.
type Service struct {
	store       store.Store
	registry    tenant.Registry
	engine      *query.Engine
	chunker     *chunker.Chunker
	compactor   *compactor.Compactor
	autoCompact bool
	searchLimit int
	threshold   float64
	logger      *slog.Logger
}

// New creates a service from opts.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("memory: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ch := opts.Chunker
	if ch == nil {
		var err error
		if ch, err = chunker.New(chunker.DefaultOptions()); err != nil {
			return nil, err
		}
	}
	registry := opts.Registry
	if registry == nil {
		registry = tenant.NewMemoryRegistry()
	}
	comp := opts.Compactor
	if comp == nil {
		comp = compactor.New(opts.Store, nil, compactor.Config{}, logger)
	}

	return &Service{
		store:       opts.Store,
		registry:    registry,
		engine:      query.NewEngine(opts.Store, opts.Scorer, logger),
		chunker:     ch,
		compactor:   comp,
		autoCompact: opts.AutoCompact,
		searchLimit: opts.SearchLimit,
		threshold:   opts.SearchThreshold,
		logger:      logger,
	}, nil
}

// AddResult reports what an Add stored.
type AddResult struct {
	Records   []model.Record `json:"records" yaml:"records"`
	Summaries []model.Record `json:"summaries,omitempty" yaml:"summaries,omitempty"`
}

// Add stores content, split into chunks when it exceeds the chunk size.
// Every chunk is validated before anything is written and the chunks land
// in one atomic batch. Chunks holding only whitespace are dropped and the
// rest renumbered.
func (s *Service) Add(ctx context.Context, p store.AddParams) (*AddResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	batch := s.chunkParams(p)
	recs, err := s.store.AddBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("store %d chunks: %w", len(batch), err)
	}
	res := &AddResult{Records: recs}
	s.recordUsage(ctx, p.Scope.UserID, int64(len(recs)))

	if s.autoCompact {
		for _, rec := range recs {
			rollup, err := s.compactor.Observe(ctx, rec)
			if err != nil {
				s.logger.Warn("compaction failed", "scope", p.Scope.String(), "error", err)
				continue
			}
			if rollup != nil {
				res.Summaries = append(res.Summaries, rollup.Summary)
				s.recordRollup(ctx, rollup)
			}
		}
	}

	s.logger.Debug("added memory",
		"scope", p.Scope.String(),
		"chunks", len(res.Records),
		"summaries", len(res.Summaries))
	return res, nil
}

// chunkParams splits p into one AddParams per non-blank chunk. Chunk
// metadata is only written when more than one chunk remains.
func (s *Service) chunkParams(p store.AddParams) []store.AddParams {
	var kept []model.Chunk
	for _, ch := range s.chunker.Split(p.Content, p.Metadata) {
		if strings.TrimSpace(ch.Content) != "" {
			kept = append(kept, ch)
		}
	}

	out := make([]store.AddParams, len(kept))
	for i, ch := range kept {
		cp := p
		cp.Content = ch.Content
		if len(kept) > 1 {
			cp.Metadata = maps.Clone(ch.Metadata)
			cp.Metadata[model.MetaChunkIndex] = i
			cp.Metadata[model.MetaTotalChunks] = len(kept)
		}
		out[i] = cp
	}
	return out
}

func (s *Service) Get(ctx context.Context, id string) (*model.Record, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, p store.UpdateParams) (*model.Record, error) {
	return s.store.Update(ctx, id, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.recordRemoved(ctx, []model.Record{*rec})
	return nil
}

func (s *Service) GetAll(ctx context.Context, p store.ListParams) ([]model.Record, error) {
	return s.store.GetAll(ctx, p)
}

// Recent returns the k newest records in scope, the buffer window used to
// replay a conversation.
func (s *Service) Recent(ctx context.Context, scope model.Scope, k int) ([]model.Record, error) {
	if k <= 0 {
		return []model.Record{}, nil
	}
	return s.store.GetAll(ctx, store.ListParams{Scope: scope, Limit: k})
}

// Search ranks records in scope. A zero Limit or Threshold takes the
// service default; a negative Threshold keeps every score.
func (s *Service) Search(ctx context.Context, p query.SearchParams) ([]query.Result, error) {
	if p.Limit <= 0 {
		p.Limit = s.searchLimit
	}
	if p.Threshold == 0 {
		p.Threshold = s.threshold
	}
	return s.engine.Search(ctx, p)
}

func (s *Service) Context(ctx context.Context, p query.ContextParams) (*query.ContextResult, error) {
	return s.engine.Context(ctx, p)
}

// Clear deletes every record matching scope.
func (s *Service) Clear(ctx context.Context, scope model.Scope) (int, error) {
	removed, err := s.store.Remove(ctx, scope)
	if err != nil {
		return 0, err
	}
	s.recordRemoved(ctx, removed)
	s.logger.Info("cleared scope", "scope", scope.String(), "deleted", len(removed))
	return len(removed), nil
}

// Compact summarises scope immediately. It returns nil when the scope holds
// nothing to summarise.
func (s *Service) Compact(ctx context.Context, scope model.Scope) (*model.Record, error) {
	rollup, err := s.compactor.Compact(ctx, scope)
	if err != nil || rollup == nil {
		return nil, err
	}
	s.recordRollup(ctx, rollup)
	return &rollup.Summary, nil
}

// RegisterUser returns the tenant called name, creating it on first use.
func (s *Service) RegisterUser(ctx context.Context, name string) (*model.Tenant, error) {
	return s.registry.CreateOrGet(ctx, name)
}

func (s *Service) Users(ctx context.Context) ([]model.Tenant, error) {
	return s.registry.List(ctx)
}

// User looks a tenant up by ID, then by name.
func (s *Service) User(ctx context.Context, idOrName string) (*model.Tenant, error) {
	tn, err := s.registry.Get(ctx, idOrName)
	if errors.Is(err, store.ErrNotFound) {
		return s.registry.GetByName(ctx, idOrName)
	}
	return tn, err
}

// DeleteUser removes a tenant and every record scoped to it, whether the
// records were scoped by tenant ID or by name.
func (s *Service) DeleteUser(ctx context.Context, idOrName string) (int, error) {
	tn, err := s.User(ctx, idOrName)
	if err != nil {
		return 0, err
	}
	if err := s.registry.Delete(ctx, tn.ID); err != nil {
		return 0, err
	}

	n, err := s.store.Clear(ctx, model.Scope{UserID: tn.ID})
	if err != nil {
		return 0, err
	}
	if tn.Name != "" && tn.Name != tn.ID {
		m, err := s.store.Clear(ctx, model.Scope{UserID: tn.Name})
		if err != nil {
			return n, err
		}
		n += m
	}
	s.logger.Info("deleted user", "user", tn.Name, "id", tn.ID, "records", n)
	return n, nil
}

// Stats reports store statistics when the backend supports them.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	sp, ok := s.store.(store.StatsProvider)
	if !ok {
		return nil, errors.New("store does not report statistics")
	}
	return sp.Stats(ctx)
}

// Store exposes the underlying store for bulk operations such as export.
func (s *Service) Store() store.Store { return s.store }

func (s *Service) Close() error {
	return s.store.Close()
}

// recordRollup releases the usage of sources a replacing compaction deleted.
func (s *Service) recordRollup(ctx context.Context, rollup *compactor.Rollup) {
	if rollup.Replaced {
		s.recordRemoved(ctx, rollup.Sources)
	}
}

// recordRemoved decrements usage per deleted record's user. Summaries were
// never counted.
func (s *Service) recordRemoved(ctx context.Context, removed []model.Record) {
	perUser := map[string]int64{}
	for _, r := range removed {
		if !r.IsSummary() {
			perUser[r.UserID]++
		}
	}
	for user, n := range perUser {
		s.recordUsage(ctx, user, -n)
	}
}

// recordUsage adjusts the counter of the tenant a scope's user axis refers
// to. Users that were never registered are not tracked.
func (s *Service) recordUsage(ctx context.Context, user string, delta int64) {
	if user == "" || delta == 0 {
		return
	}
	tn, err := s.User(ctx, user)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err == nil {
		err = s.registry.RecordUsage(ctx, tn.ID, delta)
	}
	if err != nil {
		s.logger.Warn("record tenant usage", "user", user, "error", err)
	}
}
