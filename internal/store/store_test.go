package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memscope/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "create store")
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newTestSQLiteStore(t))
	})
}

func ptr[T any](v T) *T { return &v }

func TestAddAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		rec, err := s.Add(ctx, AddParams{
			Content:  "User prefers Go",
			Scope:    model.Scope{AgentID: "a1", UserID: "alice", SessionID: "s1"},
			Type:     model.Semantic,
			Metadata: map[string]any{"source": "chat"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, model.DefaultImportance, rec.Importance)
		assert.False(t, rec.CreatedAt.IsZero())
		assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "User prefers Go", got.Content)
		assert.Equal(t, rec.Scope, got.Scope)
		assert.Equal(t, model.Semantic, got.Type)
		assert.Equal(t, "chat", got.Metadata["source"])
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	})
}

func TestAdd_DefaultsToUntyped(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		rec, err := s.Add(context.Background(), AddParams{Content: "plain"})
		require.NoError(t, err)
		assert.Equal(t, model.Untyped, rec.Type)
	})
}

func TestAdd_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		p    AddParams
	}{
		{"empty content", AddParams{Content: ""}},
		{"blank content", AddParams{Content: "   "}},
		{"importance above one", AddParams{Content: "x", Importance: ptr(1.5)}},
		{"negative importance", AddParams{Content: "x", Importance: ptr(-0.1)}},
		{"unknown type", AddParams{Content: "x", Type: "dreams"}},
	}

	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.Add(ctx, tt.p)
				assert.ErrorIs(t, err, ErrInvalidArgument)
			})
		}

		all, err := s.GetAll(ctx, ListParams{})
		require.NoError(t, err)
		assert.Empty(t, all, "rejected adds must not leave records behind")
	})
}

func TestAdd_ImportanceBounds(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, v := range []float64{0, 1} {
			rec, err := s.Add(ctx, AddParams{Content: "edge", Importance: ptr(v)})
			require.NoError(t, err)
			assert.Equal(t, v, rec.Importance)
		}
	})
}

func TestGet_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdatePreservesIdentity(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		scope := model.Scope{UserID: "alice"}
		rec, err := s.Add(ctx, AddParams{Content: "old", Scope: scope, Type: model.Episodic})
		require.NoError(t, err)

		updated, err := s.Update(ctx, rec.ID, UpdateParams{Content: ptr("X")})
		require.NoError(t, err)
		assert.Equal(t, "X", updated.Content)

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "X", got.Content)
		assert.True(t, got.CreatedAt.Equal(rec.CreatedAt), "created_at must not change")
		assert.True(t, got.UpdatedAt.After(rec.UpdatedAt), "updated_at must move forward")
		assert.Equal(t, scope, got.Scope)
		assert.Equal(t, model.Episodic, got.Type)
	})
}

func TestUpdate_PartialFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec, err := s.Add(ctx, AddParams{Content: "keep", Metadata: map[string]any{"a": "b"}})
		require.NoError(t, err)

		got, err := s.Update(ctx, rec.ID, UpdateParams{Importance: ptr(0.9)})
		require.NoError(t, err)
		assert.Equal(t, "keep", got.Content)
		assert.Equal(t, 0.9, got.Importance)
		assert.Equal(t, "b", got.Metadata["a"])

		got, err = s.Update(ctx, rec.ID, UpdateParams{Metadata: map[string]any{"c": "d"}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"c": "d"}, got.Metadata)
	})
}

func TestUpdate_Errors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Update(ctx, "missing", UpdateParams{Content: ptr("x")})
		assert.ErrorIs(t, err, ErrNotFound)

		rec, err := s.Add(ctx, AddParams{Content: "v"})
		require.NoError(t, err)
		_, err = s.Update(ctx, rec.ID, UpdateParams{Importance: ptr(2.0)})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultImportance, got.Importance)
	})
}

func TestDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec, err := s.Add(ctx, AddParams{Content: "bye"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, rec.ID))
		_, err = s.Get(ctx, rec.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, rec.ID), ErrNotFound)
	})
}

func TestGetAll_NewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var ids []string
		for _, c := range []string{"first", "second", "third"} {
			rec, err := s.Add(ctx, AddParams{Content: c})
			require.NoError(t, err)
			ids = append(ids, rec.ID)
		}

		all, err := s.GetAll(ctx, ListParams{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, ids[2], all[0].ID)
		assert.Equal(t, ids[1], all[1].ID)
		assert.Equal(t, ids[0], all[2].ID)

		limited, err := s.GetAll(ctx, ListParams{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, ids[2], limited[0].ID)
	})
}

func TestGetAll_TypeFilter(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Add(ctx, AddParams{Content: "fact", Type: model.Semantic})
		s.Add(ctx, AddParams{Content: "event", Type: model.Episodic})
		s.Add(ctx, AddParams{Content: "how-to", Type: model.Procedural})

		got, err := s.GetAll(ctx, ListParams{Type: model.Episodic})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "event", got[0].Content)
	})
}

func TestIsolationScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, agent := range []string{"a1", "a2", "a1"} {
			_, err := s.Add(ctx, AddParams{
				Content: "alice memory " + string(rune('A'+i)),
				Scope:   model.Scope{AgentID: agent, UserID: "alice"},
			})
			require.NoError(t, err)
		}
		for _, agent := range []string{"a1", "a2"} {
			_, err := s.Add(ctx, AddParams{Content: "bob memory", Scope: model.Scope{AgentID: agent, UserID: "bob"}})
			require.NoError(t, err)
		}

		alice, err := s.GetAll(ctx, ListParams{Scope: model.Scope{UserID: "alice"}})
		require.NoError(t, err)
		assert.Len(t, alice, 3)
		for _, r := range alice {
			assert.Equal(t, "alice", r.UserID)
		}

		n, err := s.Clear(ctx, model.Scope{UserID: "bob"})
		require.NoError(t, err)
		assert.Equal(t, 2, n, "clear by user ignores agent")

		bob, err := s.GetAll(ctx, ListParams{Scope: model.Scope{UserID: "bob"}})
		require.NoError(t, err)
		assert.Empty(t, bob)

		alice, err = s.GetAll(ctx, ListParams{Scope: model.Scope{UserID: "alice"}})
		require.NoError(t, err)
		assert.Len(t, alice, 3)
	})
}

func TestClear_NarrowScope(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Add(ctx, AddParams{Content: "one", Scope: model.Scope{AgentID: "a1", UserID: "alice"}})
		s.Add(ctx, AddParams{Content: "two", Scope: model.Scope{AgentID: "a2", UserID: "alice"}})

		n, err := s.Clear(ctx, model.Scope{AgentID: "a1", UserID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.Clear(ctx, model.Scope{UserID: "nobody"})
		require.NoError(t, err)
		assert.Zero(t, n)

		rest, err := s.GetAll(ctx, ListParams{})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "two", rest[0].Content)
	})
}

func TestReplace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		scope := model.Scope{SessionID: "s1"}
		a, _ := s.Add(ctx, AddParams{Content: "a", Scope: scope})
		b, _ := s.Add(ctx, AddParams{Content: "b", Scope: scope})
		keep, _ := s.Add(ctx, AddParams{Content: "keep", Scope: scope})

		rollup, err := s.Replace(ctx, []string{a.ID, b.ID, "unknown"}, AddParams{Content: "a\nb", Scope: scope})
		require.NoError(t, err)

		all, err := s.GetAll(ctx, ListParams{Scope: scope})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, rollup.ID, all[0].ID)
		assert.Equal(t, keep.ID, all[1].ID)
	})
}

func TestReplace_InvalidLeavesSources(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a, _ := s.Add(ctx, AddParams{Content: "a"})

		_, err := s.Replace(ctx, []string{a.ID}, AddParams{Content: ""})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = s.Get(ctx, a.ID)
		assert.NoError(t, err)
	})
}

func TestMemoryStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(ctx, AddParams{Content: "parallel", Scope: model.Scope{UserID: "alice"}})
			assert.NoError(t, err)
			_, err = s.GetAll(ctx, ListParams{Scope: model.Scope{UserID: "alice"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.GetAll(ctx, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all, 50)

	seen := map[string]bool{}
	for _, r := range all {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	meta := map[string]any{"k": "v"}
	rec, err := s.Add(ctx, AddParams{Content: "c", Metadata: meta})
	require.NoError(t, err)

	meta["k"] = "caller mutation"
	rec.Metadata["k"] = "result mutation"

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestErrorsCarryContext(t *testing.T) {
	err := NewNotFound("record", "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "abc")
}

func TestNextStampStrictlyIncreases(t *testing.T) {
	future := time.Now().Add(time.Hour)
	assert.True(t, nextStamp(future).After(future))
}

func TestAddBatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		scope := model.Scope{UserID: "alice"}

		recs, err := s.AddBatch(ctx, []AddParams{
			{Content: "part one", Scope: scope},
			{Content: "part two", Scope: scope, Type: model.Semantic},
		})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "part one", recs[0].Content)
		assert.Equal(t, model.Semantic, recs[1].Type)
		assert.NotEqual(t, recs[0].ID, recs[1].ID)

		all, err := s.GetAll(ctx, ListParams{Scope: scope})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, recs[1].ID, all[0].ID, "later entries are newer")
	})
}

func TestAddBatch_AllOrNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AddBatch(ctx, []AddParams{
			{Content: "fine", Scope: model.Scope{UserID: "alice"}},
			{Content: "   ", Scope: model.Scope{UserID: "alice"}},
		})
		require.ErrorIs(t, err, ErrInvalidArgument)

		all, err := s.GetAll(ctx, ListParams{})
		require.NoError(t, err)
		assert.Empty(t, all, "a rejected batch writes nothing")
	})
}

func TestRemove_ReturnsDeletedRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a, err := s.Add(ctx, AddParams{Content: "one", Scope: model.Scope{AgentID: "a1", UserID: "alice"}})
		require.NoError(t, err)
		b, err := s.Add(ctx, AddParams{Content: "two", Scope: model.Scope{AgentID: "a1", UserID: "bob"}})
		require.NoError(t, err)
		_, err = s.Add(ctx, AddParams{Content: "three", Scope: model.Scope{AgentID: "a2", UserID: "bob"}})
		require.NoError(t, err)

		removed, err := s.Remove(ctx, model.Scope{AgentID: "a1"})
		require.NoError(t, err)
		require.Len(t, removed, 2)
		assert.Equal(t, b.ID, removed[0].ID)
		assert.Equal(t, a.ID, removed[1].ID)
		assert.Equal(t, "alice", removed[1].UserID)

		left, err := s.GetAll(ctx, ListParams{})
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, "three", left[0].Content)
	})
}

func TestReturnedMetadataMatchesStored(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		rec, err := s.Add(ctx, AddParams{Content: "x", Metadata: map[string]any{"chunk_index": 2, "tag": "y"}})
		require.NoError(t, err)
		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, got.Metadata, rec.Metadata)

		updated, err := s.Update(ctx, rec.ID, UpdateParams{Metadata: map[string]any{"n": 7}})
		require.NoError(t, err)
		got, err = s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, got.Metadata, updated.Metadata)

		batch, err := s.AddBatch(ctx, []AddParams{{Content: "z", Metadata: map[string]any{"total_chunks": 1}}})
		require.NoError(t, err)
		got, err = s.Get(ctx, batch[0].ID)
		require.NoError(t, err)
		assert.Equal(t, got.Metadata, batch[0].Metadata)
	})
}
