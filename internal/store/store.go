// Package store provides the memory record storage interface with in-memory
// and SQLite implementations.
package store

import (
	"context"

	"github.com/rcliao/memscope/internal/model"
)

// AddParams holds parameters for storing a record.
type AddParams struct {
	Content    string
	Scope      model.Scope
	Type       model.MemoryType
	Importance *float64 // nil means model.DefaultImportance
	Metadata   map[string]any
}

// UpdateParams holds the mutable fields of a record. Nil fields are left
// unchanged; scope and type cannot be updated.
type UpdateParams struct {
	Content    *string
	Importance *float64
	Metadata   map[string]any
}

// ListParams holds parameters for listing records.
type ListParams struct {
	Scope model.Scope
	Type  model.MemoryType // empty means any type
	Limit int              // <= 0 means no limit
}

// Store defines the record storage interface.
type Store interface {
	// Add validates and inserts a new record. The returned record carries
	// the assigned ID and timestamps.
	Add(ctx context.Context, p AddParams) (*model.Record, error)

	// AddBatch validates every entry, then inserts them all or none. Records
	// are returned in input order.
	AddBatch(ctx context.Context, ps []AddParams) ([]model.Record, error)

	// Get retrieves a record by ID. Metadata comes back in its stored form,
	// which for SQLite means JSON numbers decode as float64. Add, AddBatch,
	// Update and Replace return that same form.
	Get(ctx context.Context, id string) (*model.Record, error)

	// Update changes content, importance or metadata of an existing record.
	Update(ctx context.Context, id string, p UpdateParams) (*model.Record, error)

	// Delete removes a single record.
	Delete(ctx context.Context, id string) error

	// GetAll lists records matching the scope filter, newest first.
	GetAll(ctx context.Context, p ListParams) ([]model.Record, error)

	// Clear removes every record matching the scope filter and returns how
	// many were deleted.
	Clear(ctx context.Context, scope model.Scope) (int, error)

	// Remove is Clear that also returns the deleted records.
	Remove(ctx context.Context, scope model.Scope) ([]model.Record, error)

	// Replace atomically deletes ids and adds a new record in their place.
	// Unknown ids are ignored.
	Replace(ctx context.Context, ids []string, p AddParams) (*model.Record, error)

	// Close releases the store.
	Close() error
}

// StatsProvider is implemented by stores that can report statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (*Stats, error)
}
