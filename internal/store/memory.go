package store

import (
	"context"
	"sync"
	"time"

	"github.com/rcliao/memscope/internal/model"
)

// MemoryStore implements Store in process memory. It is safe for concurrent
// use; records are cloned on the way in and out so callers never share
// state with the table.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.Record
	ids     *idSource
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.Record),
		ids:     newIDSource(),
	}
}

func (s *MemoryStore) Add(ctx context.Context, p AddParams) (*model.Record, error) {
	rec, err := newRecord(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.insertLocked(rec)
	return &out, nil
}

func (s *MemoryStore) AddBatch(ctx context.Context, ps []AddParams) ([]model.Record, error) {
	recs, err := newRecords(ps)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Record, len(recs))
	for i, rec := range recs {
		out[i] = s.insertLocked(rec)
	}
	return out, nil
}

// insertLocked stamps and stores rec; caller must hold the write lock.
func (s *MemoryStore) insertLocked(rec model.Record) model.Record {
	now := time.Now().UTC()
	rec.ID = s.ids.next(now)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	stored := rec.Clone()
	s.records[rec.ID] = &stored
	return rec.Clone()
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, NewNotFound("record", id)
	}
	out := r.Clone()
	return &out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, p UpdateParams) (*model.Record, error) {
	if err := checkUpdate(p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, NewNotFound("record", id)
	}
	applyUpdate(r, p)
	out := r.Clone()
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return NewNotFound("record", id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) GetAll(ctx context.Context, p ListParams) ([]model.Record, error) {
	s.mu.RLock()
	out := make([]model.Record, 0, len(s.records))
	for _, r := range s.records {
		if !p.Scope.Matches(r.Scope) {
			continue
		}
		if p.Type != "" && r.Type != p.Type {
			continue
		}
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, scope model.Scope) (int, error) {
	removed, err := s.Remove(ctx, scope)
	return len(removed), err
}

func (s *MemoryStore) Remove(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	s.mu.Lock()
	removed := []model.Record{}
	for id, r := range s.records {
		if scope.Matches(r.Scope) {
			removed = append(removed, *r)
			delete(s.records, id)
		}
	}
	s.mu.Unlock()

	sortNewestFirst(removed)
	return removed, nil
}

func (s *MemoryStore) Replace(ctx context.Context, ids []string, p AddParams) (*model.Record, error) {
	rec, err := newRecord(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	out := s.insertLocked(rec)
	return &out, nil
}

// Stats counts the records currently held.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := newStats()
	for _, r := range s.records {
		st.add(*r)
	}
	st.finish()
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }
