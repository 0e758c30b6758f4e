package compactor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memscope/internal/model"
	"github.com/rcliao/memscope/internal/store"
)

var session = model.Scope{AgentID: "a1", UserID: "alice", SessionID: "s1"}

// turn stores one record and observes it, the way the service does.
func turn(t *testing.T, c *Compactor, s store.Store, content string) *model.Record {
	t.Helper()
	ctx := context.Background()
	rec, err := s.Add(ctx, store.AddParams{Content: content, Scope: session})
	require.NoError(t, err)
	rollup, err := c.Observe(ctx, *rec)
	require.NoError(t, err)
	if rollup == nil {
		return nil
	}
	return &rollup.Summary
}

func summaries(t *testing.T, s store.Store) []model.Record {
	t.Helper()
	all, err := s.GetAll(context.Background(), store.ListParams{Scope: session})
	require.NoError(t, err)
	var out []model.Record
	for _, r := range all {
		if r.IsSummary() {
			out = append(out, r)
		}
	}
	return out
}

func TestObserve_TriggersEveryFrequency(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 3}, nil)

	for i := 1; i <= 7; i++ {
		summary := turn(t, c, s, fmt.Sprintf("message %d", i))
		if i%3 == 0 {
			require.NotNil(t, summary, "turn %d should compact", i)
			assert.Equal(t, i, summary.Metadata[model.MetaTurnCount])
		} else {
			assert.Nil(t, summary, "turn %d should not compact", i)
		}
	}

	sums := summaries(t, s)
	require.Len(t, sums, 2)
	assert.Equal(t, 7, c.Turns(session))
}

func TestObserve_AppendKeepsSources(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 2}, nil)

	turn(t, c, s, "first")
	summary := turn(t, c, s, "second")
	require.NotNil(t, summary)

	assert.True(t, strings.HasPrefix(summary.Content, DefaultPrefix))
	assert.Equal(t, DefaultPrefix+"second\nfirst", summary.Content)
	assert.Equal(t, 2, summary.Metadata[model.MetaSourceCount])
	assert.Equal(t, session, summary.Scope)

	all, err := s.GetAll(context.Background(), store.ListParams{Scope: session})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestObserve_ReplaceRemovesSources(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 2, Replace: true}, nil)

	turn(t, c, s, "first")
	summary := turn(t, c, s, "second")
	require.NotNil(t, summary)

	all, err := s.GetAll(context.Background(), store.ListParams{Scope: session})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, summary.ID, all[0].ID)
}

func TestObserve_SeedsFromStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	for i := range 4 {
		_, err := s.Add(ctx, store.AddParams{Content: fmt.Sprintf("earlier %d", i), Scope: session})
		require.NoError(t, err)
	}

	// A fresh compactor, as in a new process, picks up the existing count.
	c := New(s, nil, Config{Frequency: 5}, nil)
	summary := turn(t, c, s, "fifth")
	require.NotNil(t, summary)
	assert.Equal(t, 5, summary.Metadata[model.MetaTurnCount])
}

func TestObserve_SeededRecordsCountOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 2}, nil)

	// Both records are stored before either is observed, so seeding on the
	// first observation already counts the second.
	first, err := s.Add(ctx, store.AddParams{Content: "first", Scope: session})
	require.NoError(t, err)
	second, err := s.Add(ctx, store.AddParams{Content: "second", Scope: session})
	require.NoError(t, err)

	rollup, err := c.Observe(ctx, *first)
	require.NoError(t, err)
	require.NotNil(t, rollup, "the seeded count reaches the frequency")

	rollup, err = c.Observe(ctx, *second)
	require.NoError(t, err)
	assert.Nil(t, rollup)
	assert.Equal(t, 2, c.Turns(session))
}

func TestObserve_ConcurrentFirstObservations(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 100}, nil)

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.Add(ctx, store.AddParams{Content: fmt.Sprintf("message %d", i), Scope: session})
			if !assert.NoError(t, err) {
				return
			}
			_, err = c.Observe(ctx, *rec)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, c.Turns(session))
}

func TestCompact_ReplaceReportsSources(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 5, Replace: true}, nil)
	for i := range 3 {
		_, err := s.Add(ctx, store.AddParams{Content: fmt.Sprintf("note %d", i), Scope: session})
		require.NoError(t, err)
	}

	rollup, err := c.Compact(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, rollup)
	assert.True(t, rollup.Replaced)
	require.Len(t, rollup.Sources, 3)
	assert.Equal(t, "note 2", rollup.Sources[0].Content)
}

func TestCompact_RespectsBudgetAndWindow(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 2, MaxChars: 60}, nil)
	ctx := context.Background()

	for i := range 10 {
		_, err := s.Add(ctx, store.AddParams{Content: strings.Repeat("x", 20) + fmt.Sprint(i), Scope: session})
		require.NoError(t, err)
	}

	rollup, err := c.Compact(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, rollup)
	assert.LessOrEqual(t, utf8.RuneCountInString(rollup.Summary.Content), 60)
	assert.Equal(t, 4, rollup.Summary.Metadata[model.MetaSourceCount], "window is twice the frequency")
	assert.Len(t, rollup.Sources, 4)
	assert.False(t, rollup.Replaced)
}

func TestCompact_IgnoresEarlierSummaries(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 2}, nil)
	ctx := context.Background()

	turn(t, c, s, "one")
	turn(t, c, s, "two")
	turn(t, c, s, "three")
	summary := turn(t, c, s, "four")
	require.NotNil(t, summary)
	assert.NotContains(t, summary.Content, DefaultPrefix+DefaultPrefix)
	assert.Equal(t, 4, summary.Metadata[model.MetaSourceCount])

	empty, err := c.Compact(ctx, model.Scope{UserID: "nobody"})
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestCompact_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := New(s, nil, Config{Frequency: 2}, nil)
	other := model.Scope{UserID: "bob"}

	turn(t, c, s, "alice one")
	rec, err := s.Add(ctx, store.AddParams{Content: "bob one", Scope: other})
	require.NoError(t, err)
	sum, err := c.Observe(ctx, *rec)
	require.NoError(t, err)
	assert.Nil(t, sum)

	assert.Equal(t, 1, c.Turns(session))
	assert.Equal(t, 1, c.Turns(other))
}

func TestConcat_TruncatesRuneSafe(t *testing.T) {
	got, err := Concat{}.Summarize(context.Background(), []model.Record{
		{Content: "ünïcödé"}, {Content: "text"},
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, "ünïcö", got)
}

func TestFrequency_PicksCentralSentences(t *testing.T) {
	records := []model.Record{ // newest first
		{Content: "The weather was cloudy. Deploys run on Fridays."},
		{Content: "Deploys use the staging cluster first. Deploys need approval."},
		{Content: "Lunch was pasta."},
	}
	got, err := NewFrequency().Summarize(context.Background(), records, 65)
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 65)
	assert.Contains(t, got, "Deploys")
	assert.NotContains(t, got, "pasta")
}

func TestFrequency_Empty(t *testing.T) {
	got, err := NewFrequency().Summarize(context.Background(), nil, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestByName(t *testing.T) {
	_, ok := ByName("frequency")
	assert.True(t, ok)
	_, ok = ByName("llm")
	assert.False(t, ok)
}
