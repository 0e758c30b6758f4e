// Package tenant registers the users whose memories a store holds.
package tenant

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/memscope/internal/model"
	"github.com/rcliao/memscope/internal/store"
)

// Registry maps tenant names to stable IDs. CreateOrGet is idempotent:
// concurrent calls with one name create exactly one tenant.
type Registry interface {
	CreateOrGet(ctx context.Context, name string) (*model.Tenant, error)
	Get(ctx context.Context, id string) (*model.Tenant, error)
	GetByName(ctx context.Context, name string) (*model.Tenant, error)
	List(ctx context.Context) ([]model.Tenant, error)
	Delete(ctx context.Context, id string) error
	RecordUsage(ctx context.Context, id string, delta int64) error
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu     sync.Mutex
	byID   map[string]*model.Tenant
	byName map[string]string
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID:   make(map[string]*model.Tenant),
		byName: make(map[string]string),
	}
}

func (r *MemoryRegistry) CreateOrGet(_ context.Context, name string) (*model.Tenant, error) {
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		tn := *r.byID[id]
		return &tn, nil
	}

	tn := &model.Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	r.byID[tn.ID] = tn
	r.byName[name] = tn.ID
	out := *tn
	return &out, nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*model.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tn, ok := r.byID[id]
	if !ok {
		return nil, store.NewNotFound("tenant", id)
	}
	out := *tn
	return &out, nil
}

func (r *MemoryRegistry) GetByName(ctx context.Context, name string) (*model.Tenant, error) {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	id, ok := r.byName[name]
	r.mu.Unlock()
	if !ok {
		return nil, store.NewNotFound("tenant", name)
	}
	return r.Get(ctx, id)
}

func (r *MemoryRegistry) List(_ context.Context) ([]model.Tenant, error) {
	r.mu.Lock()
	out := make([]model.Tenant, 0, len(r.byID))
	for _, tn := range r.byID {
		out = append(out, *tn)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b model.Tenant) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tn, ok := r.byID[id]
	if !ok {
		return store.NewNotFound("tenant", id)
	}
	delete(r.byName, tn.Name)
	delete(r.byID, id)
	return nil
}

func (r *MemoryRegistry) RecordUsage(_ context.Context, id string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tn, ok := r.byID[id]
	if !ok {
		return store.NewNotFound("tenant", id)
	}
	tn.MemoryCount = max(tn.MemoryCount+delta, 0)
	return nil
}
