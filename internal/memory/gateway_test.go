package memory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newGateway(t *testing.T) (*Gateway, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)}
	return NewGateway(NewInMemoryStore(), WithClock(clk.now), WithCollection("test")), clk
}

func TestStoreTagsTypeAndTimestamp(t *testing.T) {
	ctx := context.Background()
	g, clk := newGateway(t)

	id, err := g.Store(ctx, "The user likes green tea", map[string]string{"type": "spoofed", "source": "cli"}, TypePreference)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "preference_"), id)

	all, err := g.Backend().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, TypePreference, all[0].Metadata[KeyType])
	assert.Equal(t, clk.t.Format(time.RFC3339Nano), all[0].Metadata[KeyTimestamp])
	assert.Equal(t, "cli", all[0].Metadata["source"])
}

func TestStoreDefaultsToConversation(t *testing.T) {
	g, _ := newGateway(t)
	id, err := g.Store(context.Background(), "hello there", nil, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "conversation_"), id)
}

func TestStoreIDsAreUnique(t *testing.T) {
	g, _ := newGateway(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := g.StoreFact(context.Background(), "same fact", "")
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestQueryFiltersByType(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t)
	_, err := g.StoreFact(ctx, "Paris is the capital of France", "geo")
	require.NoError(t, err)
	_, err = g.StorePreference(ctx, "I prefer Paris in spring", "travel")
	require.NoError(t, err)
	_, err = g.StoreConversation(ctx, "Tell me about Paris", "Paris is lovely")
	require.NoError(t, err)

	all, err := g.Query(ctx, "paris", 10, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	facts, err := g.SearchFacts(ctx, "paris", 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, TypeFact, facts[0].Metadata[KeyType])
	assert.Equal(t, "geo", facts[0].Metadata["category"])

	prefs, err := g.SearchPreferences(ctx, "paris", 10)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "travel", prefs[0].Metadata["key"])
}

func TestQueryRespectsK(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t)
	for i := 0; i < 8; i++ {
		_, err := g.StoreFact(ctx, "coffee note", "")
		require.NoError(t, err)
	}
	hits, err := g.Query(ctx, "coffee", 3, "")
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = g.Query(ctx, "coffee", 0, "")
	require.NoError(t, err)
	assert.Len(t, hits, 5)
}

func TestQueryRanksCloserFirst(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t)
	_, err := g.StoreFact(ctx, "blue is a color", "")
	require.NoError(t, err)
	_, err = g.StorePreference(ctx, "my favorite color is blue", "")
	require.NoError(t, err)

	hits, err := g.Query(ctx, "favorite color blue", 5, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Contains(t, hits[0].Content, "favorite")
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestCleanupRemovesOnlyOldRecords(t *testing.T) {
	ctx := context.Background()
	g, clk := newGateway(t)
	now := clk.t

	clk.t = now.Add(-40 * 24 * time.Hour)
	_, err := g.StoreConversation(ctx, "old question", "old answer")
	require.NoError(t, err)
	clk.t = now.Add(-10 * 24 * time.Hour)
	_, err = g.StoreConversation(ctx, "recent question", "recent answer")
	require.NoError(t, err)
	clk.t = now

	deleted, err := g.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	all, err := g.Backend().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Contains(t, all[0].Content, "recent")
}

func TestCleanupSkipsUnparseableTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Add(ctx, Record{ID: "a", Content: "no ts", Metadata: map[string]string{"type": "fact"}}))
	require.NoError(t, store.Add(ctx, Record{ID: "b", Content: "bad ts", Metadata: map[string]string{"timestamp": "yesterday"}}))
	require.NoError(t, store.Add(ctx, Record{ID: "c", Content: "naive ts", Metadata: map[string]string{"timestamp": "2020-01-01T10:00:00.123456"}}))

	g := NewGateway(store)
	deleted, err := g.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	n, _ := store.Count(ctx)
	assert.Equal(t, 2, n)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t)
	_, _ = g.StoreFact(ctx, "water boils at 100C", "")
	_, _ = g.StoreFact(ctx, "ice melts at 0C", "")
	_, _ = g.StorePreference(ctx, "likes jazz", "")
	require.NoError(t, g.Backend().Add(ctx, Record{ID: "raw", Content: "untyped"}))

	st, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, map[string]int{"fact": 2, "preference": 1, "unknown": 1}, st.ByType)
	assert.Equal(t, "test", st.Collection)
}

func TestRecentConversations(t *testing.T) {
	ctx := context.Background()
	g, clk := newGateway(t)
	for i, q := range []string{"first", "second", "third"} {
		clk.t = clk.t.Add(time.Duration(i+1) * time.Minute)
		_, err := g.StoreConversation(ctx, q, "ok")
		require.NoError(t, err)
	}
	_, _ = g.StoreFact(ctx, "not a conversation", "")

	recent, err := g.RecentConversations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Metadata["user_message"])
	assert.Equal(t, "second", recent[1].Metadata["user_message"])
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t)
	id, err := g.StoreFact(ctx, "temporary", "")
	require.NoError(t, err)
	assert.True(t, g.Delete(ctx, id))
	n, _ := g.Backend().Count(ctx)
	assert.Zero(t, n)
}

func TestGatewayOverSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mem", "memory.db"), "jarvis_memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g := NewGateway(store)
	_, err = g.StorePreference(ctx, "Remember that my favorite color is blue", "")
	require.NoError(t, err)
	_, err = g.StoreFact(ctx, "The office sits on the third floor", "")
	require.NoError(t, err)

	hits, err := g.Query(ctx, "what is my favorite color?", 5, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Content, "blue")
	assert.Equal(t, TypePreference, hits[0].Metadata[KeyType])

	st, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
}
