package store

import (
	"fmt"
	"io"
	"maps"
	"math"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/memscope/internal/model"
)

// newRecord validates p and builds an unsaved record. ID and timestamps are
// assigned by the caller.
func newRecord(p AddParams) (model.Record, error) {
	if strings.TrimSpace(p.Content) == "" {
		return model.Record{}, NewInvalidArgument("content is required")
	}
	typ, ok := model.ParseMemoryType(string(p.Type))
	if !ok {
		return model.Record{}, NewInvalidArgument("unknown memory type %q", p.Type)
	}
	importance := model.DefaultImportance
	if p.Importance != nil {
		if err := checkImportance(*p.Importance); err != nil {
			return model.Record{}, err
		}
		importance = *p.Importance
	}
	var meta map[string]any
	if p.Metadata != nil {
		meta = maps.Clone(p.Metadata)
	}
	return model.Record{
		Content:    p.Content,
		Scope:      p.Scope,
		Type:       typ,
		Importance: importance,
		Metadata:   meta,
	}, nil
}

// newRecords validates every entry before any is built into the store.
func newRecords(ps []AddParams) ([]model.Record, error) {
	recs := make([]model.Record, len(ps))
	for i, p := range ps {
		rec, err := newRecord(p)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		recs[i] = rec
	}
	return recs, nil
}

func checkImportance(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return NewInvalidArgument("importance %v outside [0, 1]", v)
	}
	return nil
}

func checkUpdate(p UpdateParams) error {
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return NewInvalidArgument("content cannot be empty")
	}
	if p.Importance != nil {
		return checkImportance(*p.Importance)
	}
	return nil
}

// applyUpdate mutates r in place and refreshes UpdatedAt.
func applyUpdate(r *model.Record, p UpdateParams) {
	if p.Content != nil {
		r.Content = *p.Content
	}
	if p.Importance != nil {
		r.Importance = *p.Importance
	}
	if p.Metadata != nil {
		r.Metadata = maps.Clone(p.Metadata)
	}
	r.UpdatedAt = nextStamp(r.UpdatedAt)
}

// nextStamp returns the current time, nudged forward so it is strictly after prev.
func nextStamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

// sortNewestFirst orders by CreatedAt desc, then ID desc.
func sortNewestFirst(recs []model.Record) {
	slices.SortFunc(recs, func(a, b model.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// idSource hands out monotonic ULIDs.
type idSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newIDSource() *idSource {
	return &idSource{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (g *idSource) next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

// Validate reports whether p would be accepted by Add.
func (p AddParams) Validate() error {
	_, err := newRecord(p)
	return err
}
