// Package model defines the core memory data types.
package model

import (
	"maps"
	"time"
)

// MemoryType classifies a record. Records without a type are untyped.
type MemoryType string

const (
	Episodic   MemoryType = "episodic"
	Semantic   MemoryType = "semantic"
	Procedural MemoryType = "procedural"
	Untyped    MemoryType = "untyped"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	Episodic:   true,
	Semantic:   true,
	Procedural: true,
	Untyped:    true,
}

// ParseMemoryType normalises s to a MemoryType. The empty string maps to
// Untyped; unknown values report ok=false.
func ParseMemoryType(s string) (MemoryType, bool) {
	if s == "" {
		return Untyped, true
	}
	t := MemoryType(s)
	return t, ValidTypes[t]
}

// DefaultImportance is assigned when a caller does not supply one.
const DefaultImportance = 0.5

// Metadata keys written by the chunker and the compactor.
const (
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaType        = "type"
	MetaTurnCount   = "turn_count"
	MetaSourceCount = "source_count"

	// MetaTypeSummary marks rollup records created by compaction.
	MetaTypeSummary = "summary"
)

// Record represents a stored memory entry.
type Record struct {
	ID         string         `json:"id" yaml:"id"`
	Content    string         `json:"content" yaml:"content"`
	Scope      `yaml:",inline"`
	Type       MemoryType     `json:"memory_type" yaml:"memory_type"`
	Importance float64        `json:"importance" yaml:"importance"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a copy whose metadata map is not shared with r.
func (r Record) Clone() Record {
	if r.Metadata != nil {
		r.Metadata = maps.Clone(r.Metadata)
	}
	return r
}

// IsSummary reports whether the record was produced by compaction.
func (r Record) IsSummary() bool {
	v, ok := r.Metadata[MetaType].(string)
	return ok && v == MetaTypeSummary
}

// Chunk is a bounded slice of a longer document prior to ingestion. Start
// and End are rune offsets into the parent text.
type Chunk struct {
	Content  string         `json:"content"`
	Index    int            `json:"chunk_index"`
	Total    int            `json:"total_chunks"`
	Start    int            `json:"start"`
	End      int            `json:"end"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Tenant is a registered user of the store.
type Tenant struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	MemoryCount int64     `json:"memory_count" yaml:"memory_count"`
}
